package models

import "time"

// DocumentStatus is the lifecycle state of a document version.
type DocumentStatus string

const (
	DocumentStatusDraft           DocumentStatus = "DRAFT"
	DocumentStatusPendingApproval DocumentStatus = "PENDING_APPROVAL"
	DocumentStatusApproving       DocumentStatus = "APPROVING"
	DocumentStatusApproved        DocumentStatus = "APPROVED"
	DocumentStatusRejected        DocumentStatus = "REJECTED"
	DocumentStatusRecalled        DocumentStatus = "RECALLED"
	DocumentStatusObsolete        DocumentStatus = "OBSOLETE"
)

// Valid reports whether s is a known status.
func (s DocumentStatus) Valid() bool {
	switch s {
	case DocumentStatusDraft, DocumentStatusPendingApproval, DocumentStatusApproving,
		DocumentStatusApproved, DocumentStatusRejected, DocumentStatusRecalled, DocumentStatusObsolete:
		return true
	}
	return false
}

// InApproval reports whether an approval round is in flight.
func (s DocumentStatus) InApproval() bool {
	return s == DocumentStatusPendingApproval || s == DocumentStatusApproving
}

// Document is one version of a controlled file. Versions sharing a file number
// form a lineage; at most one of them is current.
type Document struct {
	ID                    string         `db:"id" json:"id"`
	FileNumber            string         `db:"file_number" json:"file_number"`
	FileName              string         `db:"file_name" json:"file_name"`
	OriginalName          string         `db:"original_name" json:"original_name"`
	ProductModel          string         `db:"product_model" json:"product_model"`
	Version               string         `db:"version" json:"version"`
	FileType              string         `db:"file_type" json:"file_type"`
	Importance            string         `db:"importance" json:"importance,omitempty"`
	FileSize              int64          `db:"file_size" json:"file_size"`
	ObjectKey             string         `db:"object_key" json:"object_key"`
	ThumbnailKey          *string        `db:"thumbnail_key" json:"thumbnail_key,omitempty"`
	ContentType           string         `db:"content_type" json:"content_type"`
	Description           string         `db:"description" json:"description,omitempty"`
	CompilerID            string         `db:"compiler_id" json:"compiler_id"`
	CompilerName          string         `db:"compiler_name" json:"compiler_name"`
	CompileDate           *time.Time     `db:"compile_date" json:"compile_date,omitempty"`
	Status                DocumentStatus `db:"status" json:"status"`
	IsCurrentVersion      bool           `db:"is_current_version" json:"is_current_version"`
	ParentVersionID       *string        `db:"parent_version_id" json:"parent_version_id,omitempty"`
	CurrentApprovalFlowID *string        `db:"current_approval_flow_id" json:"current_approval_flow_id,omitempty"`
	ApprovalRound         int            `db:"approval_round" json:"approval_round"`
	CreatedBy             string         `db:"created_by" json:"created_by"`
	UpdatedBy             string         `db:"updated_by" json:"updated_by"`
	CreatedAt             time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time      `db:"updated_at" json:"updated_at"`
}

// DocumentFilter constrains document searches.
type DocumentFilter struct {
	FileNumber   string
	FileName     string
	ProductModel string
	Status       DocumentStatus
	CompilerID   string
	CurrentOnly  bool
	Page         int
	PageSize     int
}
