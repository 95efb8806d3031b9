package dto

// PaginationMeta describes the page window of a listing.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// AdminStudentListRequest narrows the admin student listing.
type AdminStudentListRequest struct {
	Search   string `json:"search"`
	Status   string `json:"status"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

// AdminStudentListItem is one row of the admin listing.
type AdminStudentListItem struct {
	ProfileResponse
	DocumentCount int64 `json:"document_count"`
}

// AdminStudentListResponse is the paginated listing plus status analytics.
type AdminStudentListResponse struct {
	Items           []AdminStudentListItem `json:"items"`
	Pagination      PaginationMeta         `json:"pagination"`
	StatusBreakdown map[string]int64       `json:"status_breakdown"`
	TotalStudents   int64                  `json:"total_students"`
	ApprovedCount   int64                  `json:"approved_count"`
	PendingCount    int64                  `json:"pending_count"`
	RejectedCount   int64                  `json:"rejected_count"`
}

// AdminStudentDetailResponse is the drill-down view of one student.
type AdminStudentDetailResponse struct {
	Profile   ProfileResponse    `json:"profile"`
	Documents []DocumentResponse `json:"documents"`
}

// VisaStatusUpdateRequest sets a student's visa status. Any status may be set
// from any other; the workflow is deliberately not a strict state machine.
type VisaStatusUpdateRequest struct {
	Status string `json:"status" validate:"required"`
}

// AdminStudentEditRequest stages changes to a student record. Nil fields are
// left unchanged.
type AdminStudentEditRequest struct {
	FirstName      *string `json:"first_name" validate:"omitempty,max=150"`
	LastName       *string `json:"last_name" validate:"omitempty,max=150"`
	Email          *string `json:"email" validate:"omitempty,email"`
	Phone          *string `json:"phone" validate:"omitempty,min=10,max=15"`
	PassportNumber *string `json:"passport_number" validate:"omitempty,max=20"`
	Address        *string `json:"address" validate:"omitempty,max=2000"`
}

// PendingEditResponse echoes a staged edit back for confirmation.
type PendingEditResponse struct {
	StudentID      uint    `json:"student_id"`
	FirstName      *string `json:"first_name,omitempty"`
	LastName       *string `json:"last_name,omitempty"`
	Email          *string `json:"email,omitempty"`
	Phone          *string `json:"phone,omitempty"`
	PassportNumber *string `json:"passport_number,omitempty"`
	Address        *string `json:"address,omitempty"`
}
