package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"

	"github.com/aspireabroad/visa-portal-api/internal/models"
	"github.com/aspireabroad/visa-portal-api/internal/notify"
	"github.com/aspireabroad/visa-portal-api/internal/ratelimit"
	"github.com/aspireabroad/visa-portal-api/internal/repository"
	"github.com/aspireabroad/visa-portal-api/internal/session"
	"github.com/aspireabroad/visa-portal-api/pkg/cloudinary"
)

type capturedEmail struct {
	To      string
	Subject string
	Body    string
}

type capturingEmailSender struct {
	mu       sync.Mutex
	fail     bool
	messages []capturedEmail
}

func (c *capturingEmailSender) Send(_ context.Context, to, subject, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return fmt.Errorf("smtp unavailable")
	}
	c.messages = append(c.messages, capturedEmail{To: to, Subject: subject, Body: body})
	return nil
}

func (c *capturingEmailSender) last(t *testing.T) capturedEmail {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.messages, "expected at least one email")
	return c.messages[len(c.messages)-1]
}

func (c *capturingEmailSender) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

type fakeStorage struct {
	mu      sync.Mutex
	counter int
	deleted []string
	content map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{content: map[string][]byte{}}
}

func (f *fakeStorage) Upload(_ context.Context, name string, reader io.Reader) (cloudinary.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := io.ReadAll(reader)
	if err != nil {
		return cloudinary.Asset{}, err
	}

	f.counter++
	asset := cloudinary.Asset{
		URL:      fmt.Sprintf("https://blobs.test/%s/%d", name, f.counter),
		PublicID: fmt.Sprintf("blob-%d", f.counter),
	}
	f.content[asset.URL] = data
	return asset, nil
}

func (f *fakeStorage) Delete(_ context.Context, publicID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, publicID)
	return nil
}

func (f *fakeStorage) Open(_ context.Context, url string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.content[url]
	if !ok {
		return nil, fmt.Errorf("unknown blob %s", url)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStorage) deletedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

type fixture struct {
	db            *gorm.DB
	redis         *miniredis.Miniredis
	users         repository.UserRepository
	profiles      repository.StudentProfileRepository
	documents     repository.DocumentRepository
	notifications repository.NotificationRepository
	audit         repository.ResetAuditRepository
	sessions      *session.Store
	limiter       *ratelimit.Limiter
	email         *capturingEmailSender
	storage       *fakeStorage

	auth     AuthService
	docs     DocumentService
	students StudentService
	admin    AdminStudentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: glogger.Default.LogMode(glogger.Info)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.StudentProfile{},
		&models.Document{},
		&models.Notification{},
		&models.PasswordResetAuditLog{},
	))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := zerolog.Nop()
	validate := validator.New()
	email := &capturingEmailSender{}
	storage := newFakeStorage()

	f := &fixture{
		db:            db,
		redis:         mr,
		users:         repository.NewUserRepository(db),
		profiles:      repository.NewStudentProfileRepository(db),
		documents:     repository.NewDocumentRepository(db),
		notifications: repository.NewNotificationRepository(db),
		audit:         repository.NewResetAuditRepository(db),
		sessions:      session.NewStore(client, 0),
		limiter:       ratelimit.New(client, "test"),
		email:         email,
		storage:       storage,
	}

	dispatcher := notify.NewDispatcher(email, notify.NewLogSMSSender(logger), true, false, logger)
	issuer := func(sess session.Session) (string, error) {
		return "token-" + sess.ID, nil
	}

	f.auth = NewAuthService(f.users, f.audit, f.limiter, f.sessions, dispatcher, issuer, validate, AuthConfig{}, logger)
	f.docs = NewDocumentService(f.documents, f.profiles, f.notifications, storage, validate, 10, logger)
	f.students = NewStudentService(f.profiles, f.documents, f.notifications, storage, validate, logger)
	f.admin = NewAdminStudentService(f.users, f.profiles, f.documents, f.notifications, f.sessions, storage, validate, logger)

	return f
}

func (f *fixture) createStudent(t *testing.T, username, email, password string) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	user := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.RoleStudent,
		FirstName:    "Test",
		LastName:     "Student",
	}
	require.NoError(t, f.db.Create(&user).Error)
	return user
}

func (f *fixture) createAdmin(t *testing.T, username string) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("admin-secret-1"), bcrypt.MinCost)
	require.NoError(t, err)

	user := models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
	}
	require.NoError(t, f.db.Create(&user).Error)
	return user
}

// Minimal but valid file payloads for content sniffing.
func pdfBytes() []byte {
	return []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")
}

func pngBytes() []byte {
	return []byte{
		0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a,
		0x00, 0x00, 0x00, 0x0d, 'I', 'H', 'D', 'R',
		0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
		0x08, 0x02, 0x00, 0x00, 0x00,
	}
}

func uploadInput(studentID uint, docType, title, fileName string, data []byte) UploadDocumentInput {
	return UploadDocumentInput{
		StudentUserID: studentID,
		DocumentType:  docType,
		Title:         title,
		FileName:      fileName,
		FileSize:      int64(len(data)),
		File:          bytes.NewReader(data),
	}
}
