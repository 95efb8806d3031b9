package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aspireabroad/visa-portal-api/internal/handler"
	"github.com/aspireabroad/visa-portal-api/internal/middleware"
	"github.com/aspireabroad/visa-portal-api/internal/models"
	"github.com/aspireabroad/visa-portal-api/internal/notify"
	"github.com/aspireabroad/visa-portal-api/internal/ratelimit"
	"github.com/aspireabroad/visa-portal-api/internal/repository"
	"github.com/aspireabroad/visa-portal-api/internal/router"
	"github.com/aspireabroad/visa-portal-api/internal/service"
	"github.com/aspireabroad/visa-portal-api/internal/session"
	"github.com/aspireabroad/visa-portal-api/pkg/cloudinary"
)

const testJWTSecret = "test-secret"

type testStorage struct {
	content map[string][]byte
	counter int
}

func (s *testStorage) Upload(_ context.Context, name string, reader io.Reader) (cloudinary.Asset, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return cloudinary.Asset{}, err
	}
	s.counter++
	asset := cloudinary.Asset{
		URL:      fmt.Sprintf("https://blobs.test/%s/%d", name, s.counter),
		PublicID: fmt.Sprintf("blob-%d", s.counter),
	}
	s.content[asset.URL] = data
	return asset, nil
}

func (s *testStorage) Delete(_ context.Context, _ string) error { return nil }

func (s *testStorage) Open(_ context.Context, url string) (io.ReadCloser, error) {
	data, ok := s.content[url]
	if !ok {
		return nil, fmt.Errorf("unknown blob %s", url)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type testEnv struct {
	app      *fiber.App
	db       *gorm.DB
	sessions *session.Store
}

func setupApp(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.StudentProfile{},
		&models.Document{},
		&models.Notification{},
		&models.PasswordResetAuditLog{},
	))

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	logger := zerolog.New(io.Discard)
	validate := validator.New(validator.WithRequiredStructEnabled())
	storage := &testStorage{content: map[string][]byte{}}

	sessions := session.NewStore(redisClient, 0)
	limiter := ratelimit.New(redisClient, "test")
	dispatcher := notify.NewDispatcher(notify.NewLogEmailSender(logger), notify.NewLogSMSSender(logger), true, false, logger)
	issueToken := func(sess session.Session) (string, error) {
		return middleware.IssueToken(testJWTSecret, sess, session.EmailVerifiedTTL)
	}

	userRepo := repository.NewUserRepository(db)
	profileRepo := repository.NewStudentProfileRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	auditRepo := repository.NewResetAuditRepository(db)

	authService := service.NewAuthService(userRepo, auditRepo, limiter, sessions, dispatcher, issueToken, validate, service.AuthConfig{}, logger)
	documentService := service.NewDocumentService(documentRepo, profileRepo, notificationRepo, storage, validate, 10, logger)
	studentService := service.NewStudentService(profileRepo, documentRepo, notificationRepo, storage, validate, logger)
	adminService := service.NewAdminStudentService(userRepo, profileRepo, documentRepo, notificationRepo, sessions, storage, validate, logger)

	app := fiber.New()
	router.Setup(app, router.Handlers{
		Health:   handler.NewHealthHandler(db, redisClient),
		Auth:     handler.NewAuthHandler(authService, logger),
		Student:  handler.NewStudentHandler(studentService, logger),
		Document: handler.NewDocumentHandler(documentService, logger),
		Admin:    handler.NewAdminStudentHandler(adminService, logger),
	}, testJWTSecret, sessions)

	return &testEnv{app: app, db: db, sessions: sessions}
}

func (e *testEnv) createUser(t *testing.T, username string, role models.Role) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("str0ng-pass"), bcrypt.MinCost)
	require.NoError(t, err)

	user := models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: string(hash),
		Role:         role,
	}
	require.NoError(t, e.db.Create(&user).Error)
	return user
}

func (e *testEnv) tokenFor(t *testing.T, user models.User, mustChange bool) string {
	t.Helper()
	sess, err := e.sessions.Create(context.Background(), user.ID, user.Role, mustChange)
	require.NoError(t, err)
	token, err := middleware.IssueToken(testJWTSecret, sess, session.EmailVerifiedTTL)
	require.NoError(t, err)
	return token
}

func jsonRequest(method, target string, payload interface{}) *http.Request {
	var body io.Reader
	if payload != nil {
		data, _ := json.Marshal(payload)
		body = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	return req
}

func decodeEnvelope(t *testing.T, resp *http.Response) (bool, string, json.RawMessage) {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return envelope.Success, envelope.Message, envelope.Data
}

func TestHealthEndpoint(t *testing.T) {
	env := setupApp(t)

	resp, err := env.app.Test(httptest.NewRequest("GET", "/api/v1/health", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	success, message, _ := decodeEnvelope(t, resp)
	require.True(t, success)
	require.Equal(t, "healthy", message)
}

func TestLoginEndpoint(t *testing.T) {
	env := setupApp(t)
	env.createUser(t, "alice", models.RoleStudent)

	resp, err := env.app.Test(jsonRequest("POST", "/api/v1/auth/login", fiber.Map{
		"username": "alice",
		"password": "str0ng-pass",
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	success, _, data := decodeEnvelope(t, resp)
	require.True(t, success)

	var loginData struct {
		Token string `json:"token"`
		Role  string `json:"role"`
	}
	require.NoError(t, json.Unmarshal(data, &loginData))
	require.NotEmpty(t, loginData.Token)
	require.Equal(t, "STUDENT", loginData.Role)

	resp, err = env.app.Test(jsonRequest("POST", "/api/v1/auth/login", fiber.Map{
		"username": "alice",
		"password": "wrong",
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestForgotPasswordAlwaysGeneric(t *testing.T) {
	env := setupApp(t)
	env.createUser(t, "bob", models.RoleStudent)

	for _, identifier := range []string{"bob", "ghost"} {
		resp, err := env.app.Test(jsonRequest("POST", "/api/v1/auth/forgot-password", fiber.Map{
			"identifier": identifier,
		}))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)

		success, message, _ := decodeEnvelope(t, resp)
		require.True(t, success)
		require.Equal(t, service.GenericResetMessage(), message)
	}
}

func TestAuthenticationRequired(t *testing.T) {
	env := setupApp(t)

	resp, err := env.app.Test(httptest.NewRequest("GET", "/api/v1/student/dashboard", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest("GET", "/api/v1/student/dashboard", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err = env.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestForcedChangeGateBlocksEverythingButTheChange(t *testing.T) {
	env := setupApp(t)
	user := env.createUser(t, "carol", models.RoleStudent)
	token := env.tokenFor(t, user, true)

	req := httptest.NewRequest("GET", "/api/v1/student/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := env.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	req = jsonRequest("POST", "/api/v1/auth/force-change-password", fiber.Map{
		"new_password":     "brand-new-pass",
		"confirm_password": "brand-new-pass",
	})
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = env.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// Gate lifts once the change is done.
	req = httptest.NewRequest("GET", "/api/v1/student/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = env.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestStudentRoutesRejectAdmins(t *testing.T) {
	env := setupApp(t)
	admin := env.createUser(t, "boss", models.RoleAdmin)
	token := env.tokenFor(t, admin, false)

	req := httptest.NewRequest("GET", "/api/v1/student/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := env.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestAdminRoutesRejectStudents(t *testing.T) {
	env := setupApp(t)
	student := env.createUser(t, "dave", models.RoleStudent)
	token := env.tokenFor(t, student, false)

	req := httptest.NewRequest("GET", "/api/v1/admin/students", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := env.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func multipartUpload(t *testing.T, target, token, docType, title, fileName string, data []byte) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("document_type", docType))
	require.NoError(t, writer.WriteField("title", title))
	part, err := writer.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", target, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func pdfPayload() []byte {
	return []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n%%EOF\n")
}

func TestDocumentLifecycleOverHTTP(t *testing.T) {
	env := setupApp(t)
	student := env.createUser(t, "erin", models.RoleStudent)
	token := env.tokenFor(t, student, false)

	resp, err := env.app.Test(multipartUpload(t, "/api/v1/documents", token, "PAN", "My PAN", "pan.pdf", pdfPayload()))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	success, _, data := decodeEnvelope(t, resp)
	require.True(t, success)

	var doc struct {
		ID       uint   `json:"id"`
		FileName string `json:"file_name"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Equal(t, "pan.pdf", doc.FileName)

	// Dashboard reflects the upload and the status transition.
	req := httptest.NewRequest("GET", "/api/v1/student/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = env.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	_, _, data = decodeEnvelope(t, resp)
	var dashboard struct {
		TotalDocuments int64 `json:"total_documents"`
		Profile        struct {
			VisaStatus string `json:"visa_status"`
		} `json:"profile"`
	}
	require.NoError(t, json.Unmarshal(data, &dashboard))
	require.Equal(t, int64(1), dashboard.TotalDocuments)
	require.Equal(t, "DOCUMENTS_SUBMITTED", dashboard.Profile.VisaStatus)

	// Download streams the original bytes as an attachment.
	req = httptest.NewRequest("GET", fmt.Sprintf("/api/v1/documents/%d/download", doc.ID), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = env.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "application/pdf", resp.Header.Get(fiber.HeaderContentType))
	require.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "attachment")

	downloaded, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, pdfPayload(), downloaded)

	// Another student cannot touch it.
	other := env.createUser(t, "frank", models.RoleStudent)
	otherToken := env.tokenFor(t, other, false)
	req = httptest.NewRequest("DELETE", fmt.Sprintf("/api/v1/documents/%d", doc.ID), nil)
	req.Header.Set("Authorization", "Bearer "+otherToken)
	resp, err = env.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// The owner can.
	req = httptest.NewRequest("DELETE", fmt.Sprintf("/api/v1/documents/%d", doc.ID), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = env.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestDocumentViewIsAdminOnly(t *testing.T) {
	env := setupApp(t)
	student := env.createUser(t, "grace", models.RoleStudent)
	admin := env.createUser(t, "boss", models.RoleAdmin)
	studentToken := env.tokenFor(t, student, false)
	adminToken := env.tokenFor(t, admin, false)

	resp, err := env.app.Test(multipartUpload(t, "/api/v1/documents", studentToken, "AADHAAR", "Front", "card.pdf", pdfPayload()))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	_, _, data := decodeEnvelope(t, resp)
	var doc struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))

	req := httptest.NewRequest("GET", fmt.Sprintf("/api/v1/documents/%d/view", doc.ID), nil)
	req.Header.Set("Authorization", "Bearer "+studentToken)
	resp, err = env.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest("GET", fmt.Sprintf("/api/v1/documents/%d/view", doc.ID), nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	resp, err = env.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	_, _, data = decodeEnvelope(t, resp)
	var view struct {
		Previewable bool `json:"previewable"`
		IsPDF       bool `json:"is_pdf"`
	}
	require.NoError(t, json.Unmarshal(data, &view))
	require.True(t, view.Previewable)
	require.True(t, view.IsPDF)
}

func TestAdminUploadForStudent(t *testing.T) {
	env := setupApp(t)
	student := env.createUser(t, "henry", models.RoleStudent)
	admin := env.createUser(t, "boss", models.RoleAdmin)
	adminToken := env.tokenFor(t, admin, false)

	target := fmt.Sprintf("/api/v1/admin/students/%d/documents", student.ID)
	resp, err := env.app.Test(multipartUpload(t, target, adminToken, "PAN", "", "pan.pdf", pdfPayload()))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	_, _, data := decodeEnvelope(t, resp)
	var doc struct {
		StudentID    uint  `json:"student_id"`
		UploadedByID *uint `json:"uploaded_by_id"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Equal(t, student.ID, doc.StudentID)
	require.NotNil(t, doc.UploadedByID)
	require.Equal(t, admin.ID, *doc.UploadedByID)
}

func TestAdminTwoStepWorkflowsOverHTTP(t *testing.T) {
	env := setupApp(t)
	student := env.createUser(t, "iris", models.RoleStudent)
	admin := env.createUser(t, "boss", models.RoleAdmin)
	token := env.tokenFor(t, admin, false)

	// Stage and confirm an edit.
	req := jsonRequest("POST", fmt.Sprintf("/api/v1/admin/students/%d/edit", student.ID), fiber.Map{
		"first_name": "Irina",
	})
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := env.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	req = jsonRequest("POST", fmt.Sprintf("/api/v1/admin/students/%d/edit/confirm", student.ID), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = env.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var user models.User
	require.NoError(t, env.db.First(&user, student.ID).Error)
	require.Equal(t, "Irina", user.FirstName)

	// Confirming a deletion that was never staged fails.
	req = jsonRequest("POST", fmt.Sprintf("/api/v1/admin/students/%d/delete/confirm", student.ID), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = env.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	// Stage then confirm.
	req = jsonRequest("POST", fmt.Sprintf("/api/v1/admin/students/%d/delete", student.ID), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = env.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	req = jsonRequest("POST", fmt.Sprintf("/api/v1/admin/students/%d/delete/confirm", student.ID), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = env.app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	err = env.db.First(&user, student.ID).Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRegistrationRequiresVerifiedEmail(t *testing.T) {
	env := setupApp(t)

	resp, err := env.app.Test(jsonRequest("POST", "/api/v1/auth/register", fiber.Map{
		"username":         "newbie",
		"email":            "newbie@example.com",
		"password":         "str0ng-pass",
		"confirm_password": "str0ng-pass",
	}))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
