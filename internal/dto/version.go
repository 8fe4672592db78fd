package dto

import "time"

// CreateVersionRequest derives a new version from an existing document. When
// UploadID is set the new version points at the freshly uploaded object.
type CreateVersionRequest struct {
	NewVersion        string     `json:"new_version" validate:"required,max=32"`
	ChangeDescription string     `json:"change_description" validate:"omitempty,max=2000"`
	ChangeReason      string     `json:"change_reason" validate:"omitempty,max=1000"`
	ChangeDate        *time.Time `json:"change_date"`
	UploadID          string     `json:"upload_id" validate:"omitempty,startswith=upl_"`
}
