package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aspireabroad/visa-portal-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
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
	return db
}

func createStudent(t *testing.T, db *gorm.DB, username, email string) models.User {
	t.Helper()
	user := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: "x",
		Role:         models.RoleStudent,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func TestUserRepositoryFindStudentByIdentifier(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	student := createStudent(t, db, "Alice", "Alice@Example.com")
	admin := models.User{Username: "boss", Email: "boss@example.com", PasswordHash: "x", Role: models.RoleAdmin}
	require.NoError(t, db.Create(&admin).Error)

	found, err := repo.FindStudentByIdentifier(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, student.ID, found.ID)

	found, err = repo.FindStudentByIdentifier(ctx, "ALICE@EXAMPLE.COM")
	require.NoError(t, err)
	require.Equal(t, student.ID, found.ID)

	_, err = repo.FindStudentByIdentifier(ctx, "boss")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound, "admins are not resolvable through forgot-password")

	_, err = repo.FindStudentByIdentifier(ctx, "nobody")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUserRepositoryUpdateCredentialClearsExpiry(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	student := createStudent(t, db, "bob", "bob@example.com")
	expiry := time.Now().Add(15 * time.Minute)
	require.NoError(t, repo.UpdateCredential(ctx, student.ID, "temp-hash", &expiry))

	loaded, err := repo.GetByID(ctx, student.ID)
	require.NoError(t, err)
	require.Equal(t, "temp-hash", loaded.PasswordHash)
	require.NotNil(t, loaded.TempPasswordExpiresAt)

	require.NoError(t, repo.UpdateCredential(ctx, student.ID, "final-hash", nil))

	loaded, err = repo.GetByID(ctx, student.ID)
	require.NoError(t, err)
	require.Equal(t, "final-hash", loaded.PasswordHash)
	require.Nil(t, loaded.TempPasswordExpiresAt, "expiry column must be cleared")
}

func TestStudentProfileRepositoryGetOrCreate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStudentProfileRepository(db)
	ctx := context.Background()

	student := createStudent(t, db, "carol", "carol@example.com")

	profile, err := repo.GetOrCreate(ctx, student.ID)
	require.NoError(t, err)
	require.Equal(t, models.VisaStatusRegistered, profile.VisaStatus)
	require.Equal(t, "carol", profile.User.Username)

	again, err := repo.GetOrCreate(ctx, student.ID)
	require.NoError(t, err)
	require.Equal(t, profile.ID, again.ID, "second call must not create a duplicate")
}

func TestStudentProfilePassportNormalizedToNull(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStudentProfileRepository(db)
	ctx := context.Background()

	first := createStudent(t, db, "dave", "dave@example.com")
	second := createStudent(t, db, "erin", "erin@example.com")

	empty := "   "
	p1, err := repo.GetOrCreate(ctx, first.ID)
	require.NoError(t, err)
	p1.PassportNumber = &empty
	require.NoError(t, repo.Update(ctx, &p1))

	p2, err := repo.GetOrCreate(ctx, second.ID)
	require.NoError(t, err)
	p2.PassportNumber = &empty
	require.NoError(t, repo.Update(ctx, &p2), "two empty passports must not collide on the unique index")

	loaded, err := repo.GetByUserID(ctx, first.ID)
	require.NoError(t, err)
	require.Nil(t, loaded.PassportNumber)
}

func TestStudentProfileStatusCounts(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStudentProfileRepository(db)
	ctx := context.Background()

	for i, status := range []models.VisaStatus{
		models.VisaStatusRegistered,
		models.VisaStatusRegistered,
		models.VisaStatusApproved,
	} {
		user := createStudent(t, db, fmt.Sprintf("user%d", i), fmt.Sprintf("user%d@example.com", i))
		profile, err := repo.GetOrCreate(ctx, user.ID)
		require.NoError(t, err)
		profile.VisaStatus = status
		require.NoError(t, repo.Update(ctx, &profile))
	}

	counts, err := repo.StatusCounts(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), counts[models.VisaStatusRegistered])
	require.Equal(t, int64(1), counts[models.VisaStatusApproved])
}

func TestDocumentRepositoryFindByKey(t *testing.T) {
	db := setupTestDB(t)
	repo := NewDocumentRepository(db)
	ctx := context.Background()

	student := createStudent(t, db, "frank", "frank@example.com")
	doc := models.Document{
		StudentID:    student.ID,
		DocumentType: models.DocumentTypeAadhaar,
		Title:        "front",
		FileURL:      "https://cdn.example.com/a.pdf",
		FilePublicID: "a",
		FileName:     "aadhaar.pdf",
	}
	require.NoError(t, repo.Create(ctx, &doc))

	found, err := repo.FindByKey(ctx, student.ID, models.DocumentTypeAadhaar, "front")
	require.NoError(t, err)
	require.Equal(t, doc.ID, found.ID)

	_, err = repo.FindByKey(ctx, student.ID, models.DocumentTypeAadhaar, "back")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	counts, err := repo.CountByTypeForStudent(ctx, student.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), counts[models.DocumentTypeAadhaar])
}

func TestNotificationRepositoryMarkAllRead(t *testing.T) {
	db := setupTestDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	student := createStudent(t, db, "grace", "grace@example.com")
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, &models.Notification{UserID: student.ID, Message: "re-upload"}))
	}

	count, err := repo.CountUnreadByUser(ctx, student.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3), count)

	require.NoError(t, repo.MarkAllRead(ctx, student.ID))

	count, err = repo.CountUnreadByUser(ctx, student.ID)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestResetAuditRepositoryAppend(t *testing.T) {
	db := setupTestDB(t)
	repo := NewResetAuditRepository(db)
	ctx := context.Background()

	student := createStudent(t, db, "henry", "henry@example.com")
	require.NoError(t, repo.Create(ctx, &models.PasswordResetAuditLog{
		UserID:         &student.ID,
		EmailAttempted: true,
		EmailSuccess:   true,
		IPAddress:      "203.0.113.9",
		Result:         models.ResetResultSent,
	}))
	require.NoError(t, repo.Create(ctx, &models.PasswordResetAuditLog{
		Result: models.ResetResultNoMatch,
	}))

	entries, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}
