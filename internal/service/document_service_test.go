package service

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aspireabroad/visa-portal-api/internal/models"
)

func TestUploadAdvancesVisaStatusOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	student := f.createStudent(t, "alice", "alice@example.com", "str0ng-pass")
	actor := Actor{UserID: student.ID}

	resp, err := f.docs.Upload(ctx, actor, uploadInput(student.ID, "AADHAAR", "Front", "aadhaar.pdf", pdfBytes()))
	require.NoError(t, err)
	require.Equal(t, "AADHAAR", resp.DocumentType)
	require.Equal(t, "Front", resp.Title)
	require.Nil(t, resp.UploadedByID, "student self-uploads carry no uploader")

	profile, err := f.profiles.GetByUserID(ctx, student.ID)
	require.NoError(t, err)
	require.Equal(t, models.VisaStatusDocumentsSubmitted, profile.VisaStatus)

	// A later upload must not regress or re-trigger the transition.
	profile.VisaStatus = models.VisaStatusUnderReview
	require.NoError(t, f.profiles.Update(ctx, &profile))

	_, err = f.docs.Upload(ctx, actor, uploadInput(student.ID, "PAN", "", "pan.png", pngBytes()))
	require.NoError(t, err)

	profile, err = f.profiles.GetByUserID(ctx, student.ID)
	require.NoError(t, err)
	require.Equal(t, models.VisaStatusUnderReview, profile.VisaStatus)
}

func TestUploadDefaultsTitleToTypeLabel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	student := f.createStudent(t, "bob", "bob@example.com", "str0ng-pass")

	resp, err := f.docs.Upload(ctx, Actor{UserID: student.ID}, uploadInput(student.ID, "pan", "  ", "pan.pdf", pdfBytes()))
	require.NoError(t, err)
	require.Equal(t, "PAN", resp.DocumentType)
	require.Equal(t, "PAN Card", resp.Title)
}

func TestUploadValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	student := f.createStudent(t, "carol", "carol@example.com", "str0ng-pass")
	actor := Actor{UserID: student.ID}

	_, err := f.docs.Upload(ctx, actor, uploadInput(student.ID, "DIPLOMA", "x", "d.pdf", pdfBytes()))
	require.ErrorIs(t, err, ErrDocumentTypeInvalid)

	_, err = f.docs.Upload(ctx, actor, uploadInput(student.ID, "PAN", "x", "notes.txt", []byte("plain text")))
	require.ErrorIs(t, err, ErrFileTypeNotAllowed)

	// Extension says image, bytes say PDF.
	_, err = f.docs.Upload(ctx, actor, uploadInput(student.ID, "PAN", "x", "sneaky.png", pdfBytes()))
	require.ErrorIs(t, err, ErrFileContentMismatch)

	oversized := uploadInput(student.ID, "PAN", "x", "big.pdf", pdfBytes())
	oversized.FileSize = 11 << 20
	_, err = f.docs.Upload(ctx, actor, oversized)
	require.ErrorIs(t, err, ErrFileTooLarge)
}

func TestUploadReplaceReleasesOldBlob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	student := f.createStudent(t, "dave", "dave@example.com", "str0ng-pass")
	actor := Actor{UserID: student.ID}

	first, err := f.docs.Upload(ctx, actor, uploadInput(student.ID, "AADHAAR", "Front", "v1.pdf", pdfBytes()))
	require.NoError(t, err)

	firstRow, err := f.documents.GetByID(ctx, first.ID)
	require.NoError(t, err)
	oldPublicID := firstRow.FilePublicID

	second, err := f.docs.Upload(ctx, actor, uploadInput(student.ID, "AADHAAR", "Front", "v2.pdf", pdfBytes()))
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID, "replace must keep the row identity")
	require.Equal(t, "v2.pdf", second.FileName)

	count, err := f.documents.CountByStudent(ctx, student.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	require.Contains(t, f.storage.deletedIDs(), oldPublicID)
}

func TestUploadAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.createStudent(t, "erin", "erin@example.com", "str0ng-pass")
	other := f.createStudent(t, "frank", "frank@example.com", "str0ng-pass")
	admin := f.createAdmin(t, "boss")

	_, err := f.docs.Upload(ctx, Actor{UserID: other.ID}, uploadInput(owner.ID, "PAN", "x", "pan.pdf", pdfBytes()))
	require.ErrorIs(t, err, ErrDocumentForbidden)

	resp, err := f.docs.Upload(ctx, Actor{UserID: admin.ID, IsAdmin: true}, uploadInput(owner.ID, "PAN", "x", "pan.pdf", pdfBytes()))
	require.NoError(t, err)
	require.NotNil(t, resp.UploadedByID)
	require.Equal(t, admin.ID, *resp.UploadedByID)
	require.Equal(t, owner.ID, resp.StudentID)
}

func TestDownloadStreamsContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owner := f.createStudent(t, "grace", "grace@example.com", "str0ng-pass")
	other := f.createStudent(t, "henry", "henry@example.com", "str0ng-pass")

	uploaded, err := f.docs.Upload(ctx, Actor{UserID: owner.ID}, uploadInput(owner.ID, "PAN", "x", "pan.pdf", pdfBytes()))
	require.NoError(t, err)

	result, err := f.docs.Download(ctx, Actor{UserID: owner.ID}, uploaded.ID)
	require.NoError(t, err)
	defer result.Content.Close()

	require.Equal(t, "pan.pdf", result.FileName)
	require.Equal(t, "application/pdf", result.ContentType)

	data, err := io.ReadAll(result.Content)
	require.NoError(t, err)
	require.True(t, bytes.Equal(pdfBytes(), data))

	_, err = f.docs.Download(ctx, Actor{UserID: other.ID}, uploaded.ID)
	require.ErrorIs(t, err, ErrDocumentForbidden)

	_, err = f.docs.Download(ctx, Actor{UserID: owner.ID}, 9999)
	require.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestViewDescribesPreviewability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	student := f.createStudent(t, "iris", "iris@example.com", "str0ng-pass")
	admin := f.createAdmin(t, "boss")

	pdf, err := f.docs.Upload(ctx, Actor{UserID: student.ID}, uploadInput(student.ID, "PAN", "doc", "pan.pdf", pdfBytes()))
	require.NoError(t, err)
	png, err := f.docs.Upload(ctx, Actor{UserID: student.ID}, uploadInput(student.ID, "AADHAAR", "img", "card.png", pngBytes()))
	require.NoError(t, err)

	view, err := f.docs.View(ctx, Actor{UserID: admin.ID, IsAdmin: true}, pdf.ID)
	require.NoError(t, err)
	require.True(t, view.Previewable)
	require.True(t, view.IsPDF)

	view, err = f.docs.View(ctx, Actor{UserID: admin.ID, IsAdmin: true}, png.ID)
	require.NoError(t, err)
	require.True(t, view.Previewable)
	require.False(t, view.IsPDF)
}

func TestDeleteByAdminNotifiesStudent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	student := f.createStudent(t, "judy", "judy@example.com", "str0ng-pass")
	admin := f.createAdmin(t, "boss")

	uploaded, err := f.docs.Upload(ctx, Actor{UserID: student.ID}, uploadInput(student.ID, "PAN", "x", "pan.pdf", pdfBytes()))
	require.NoError(t, err)

	row, err := f.documents.GetByID(ctx, uploaded.ID)
	require.NoError(t, err)
	publicID := row.FilePublicID

	require.NoError(t, f.docs.Delete(ctx, Actor{UserID: admin.ID, IsAdmin: true}, uploaded.ID))

	_, err = f.documents.GetByID(ctx, uploaded.ID)
	require.Error(t, err)
	require.Contains(t, f.storage.deletedIDs(), publicID)

	unread, err := f.notifications.ListUnreadByUser(ctx, student.ID, 10)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	require.Contains(t, unread[0].Message, "removed by an administrator")
}

func TestDeleteOwnDocumentIsSilent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	student := f.createStudent(t, "kate", "kate@example.com", "str0ng-pass")
	other := f.createStudent(t, "liam", "liam@example.com", "str0ng-pass")

	uploaded, err := f.docs.Upload(ctx, Actor{UserID: student.ID}, uploadInput(student.ID, "PAN", "x", "pan.pdf", pdfBytes()))
	require.NoError(t, err)

	require.ErrorIs(t, f.docs.Delete(ctx, Actor{UserID: other.ID}, uploaded.ID), ErrDocumentForbidden)
	require.NoError(t, f.docs.Delete(ctx, Actor{UserID: student.ID}, uploaded.ID))

	count, err := f.notifications.CountUnreadByUser(ctx, student.ID)
	require.NoError(t, err)
	require.Zero(t, count, "self-deletion must not notify")
}
