package models

import "time"

// Upload session states.
const (
	UploadStatusInit      = "INIT"
	UploadStatusCompleted = "COMPLETED"
)

// UploadSession tracks a presigned upload until the client registers it.
type UploadSession struct {
	UploadID    string    `json:"upload_id"`
	UserID      string    `json:"user_id"`
	ObjectKey   string    `json:"object_key"`
	BizType     string    `json:"biz_type"`
	FileName    string    `json:"file_name"`
	FileSize    int64     `json:"file_size"`
	ContentType string    `json:"content_type"`
	FileType    string    `json:"file_type"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}
