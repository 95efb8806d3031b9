package models

import "time"

// DocumentType classifies an uploaded visa document.
type DocumentType string

// Document types accepted by the portal.
const (
	DocumentTypeTenthMarksheet   DocumentType = "10TH_MARKSHEET"
	DocumentTypeTwelfthMarksheet DocumentType = "12TH_MARKSHEET"
	DocumentTypeAadhaar          DocumentType = "AADHAAR"
	DocumentTypePAN              DocumentType = "PAN"
	DocumentTypeAdditional       DocumentType = "ADDITIONAL"
)

// ValidDocumentType reports whether the value is a known document type.
func ValidDocumentType(t DocumentType) bool {
	switch t {
	case DocumentTypeTenthMarksheet, DocumentTypeTwelfthMarksheet, DocumentTypeAadhaar, DocumentTypePAN, DocumentTypeAdditional:
		return true
	default:
		return false
	}
}

// DisplayName returns a human readable label for the document type.
func (t DocumentType) DisplayName() string {
	switch t {
	case DocumentTypeTenthMarksheet:
		return "10th Marksheet"
	case DocumentTypeTwelfthMarksheet:
		return "12th Marksheet"
	case DocumentTypeAadhaar:
		return "Aadhaar Card"
	case DocumentTypePAN:
		return "PAN Card"
	case DocumentTypeAdditional:
		return "Additional Document"
	default:
		return string(t)
	}
}

// Document is an uploaded file belonging to exactly one student. The row
// exclusively owns its blob: deleting the row or replacing the file removes
// the previously stored blob. (student, document_type, title) is unique.
type Document struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	StudentID     uint         `gorm:"not null;index;uniqueIndex:idx_documents_student_type_title" json:"student_id"`
	Student       User         `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE" json:"-"`
	DocumentType  DocumentType `gorm:"size:20;not null;uniqueIndex:idx_documents_student_type_title" json:"document_type"`
	Title         string       `gorm:"size:255;uniqueIndex:idx_documents_student_type_title" json:"title"`
	FileURL       string       `gorm:"size:512;not null" json:"file_url"`
	FilePublicID  string       `gorm:"size:255;not null" json:"-"`
	FileName      string       `gorm:"size:255;not null" json:"file_name"`
	FileSizeBytes int64        `json:"file_size_bytes"`
	UploadedByID  *uint        `gorm:"index" json:"uploaded_by_id"`
	UploadedBy    *User        `gorm:"foreignKey:UploadedByID;constraint:OnDelete:SET NULL" json:"-"`
	UploadedAt    time.Time    `gorm:"autoCreateTime" json:"uploaded_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}
