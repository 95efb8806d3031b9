package dto

import (
	"time"

	"github.com/aspireabroad/visa-portal-api/internal/models"
)

// DocumentResponse is the API shape of a stored document.
type DocumentResponse struct {
	ID            uint      `json:"id"`
	StudentID     uint      `json:"student_id"`
	DocumentType  string    `json:"document_type"`
	TypeLabel     string    `json:"type_label"`
	Title         string    `json:"title"`
	FileName      string    `json:"file_name"`
	FileSizeBytes int64     `json:"file_size_bytes"`
	UploadedByID  *uint     `json:"uploaded_by_id"`
	UploadedAt    time.Time `json:"uploaded_at"`
}

// NewDocumentResponse maps a model to its API shape.
func NewDocumentResponse(d models.Document) DocumentResponse {
	return DocumentResponse{
		ID:            d.ID,
		StudentID:     d.StudentID,
		DocumentType:  string(d.DocumentType),
		TypeLabel:     d.DocumentType.DisplayName(),
		Title:         d.Title,
		FileName:      d.FileName,
		FileSizeBytes: d.FileSizeBytes,
		UploadedByID:  d.UploadedByID,
		UploadedAt:    d.UploadedAt,
	}
}

// NewDocumentResponseSlice maps a slice of models.
func NewDocumentResponseSlice(documents []models.Document) []DocumentResponse {
	responses := make([]DocumentResponse, 0, len(documents))
	for _, d := range documents {
		responses = append(responses, NewDocumentResponse(d))
	}
	return responses
}

// DocumentViewResponse is the admin preview descriptor: whether the browser
// can render the file inline or must download it.
type DocumentViewResponse struct {
	Document    DocumentResponse `json:"document"`
	FileURL     string           `json:"file_url"`
	Previewable bool             `json:"previewable"`
	IsPDF       bool             `json:"is_pdf"`
}
