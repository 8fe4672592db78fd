package dto

import (
	"time"

	"github.com/noah-isme/doc-control-api/internal/models"
	"github.com/noah-isme/doc-control-api/pkg/storage"
)

// UploadInitRequest asks for a presigned upload slot.
type UploadInitRequest struct {
	FileName    string `json:"file_name" validate:"required,max=255"`
	FileSize    int64  `json:"file_size" validate:"required,gt=0"`
	ContentType string `json:"content_type" validate:"omitempty,max=128"`
	BizType     string `json:"biz_type" validate:"omitempty,alphanum,max=32"`
}

// UploadInitResponse carries the presigned URL the client uploads to.
type UploadInitResponse struct {
	UploadID  string    `json:"upload_id"`
	ObjectKey string    `json:"object_key"`
	UploadURL string    `json:"upload_url"`
	Method    string    `json:"method"`
	FileType  string    `json:"file_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CompleteUploadRequest registers the uploaded object as a document.
type CompleteUploadRequest struct {
	FileNumber   string     `json:"file_number" validate:"required,max=64"`
	FileName     string     `json:"file_name" validate:"omitempty,max=255"`
	ProductModel string     `json:"product_model" validate:"omitempty,max=128"`
	Version      string     `json:"version" validate:"required,max=32"`
	Importance   string     `json:"importance" validate:"omitempty,oneof=LOW NORMAL HIGH CRITICAL"`
	Description  string     `json:"description" validate:"omitempty,max=2000"`
	CompileDate  *time.Time `json:"compile_date"`
}

// DocumentQuery mirrors supported document listing filters.
type DocumentQuery struct {
	FileNumber   string `form:"file_number"`
	FileName     string `form:"file_name"`
	ProductModel string `form:"product_model"`
	Status       string `form:"status"`
	CompilerID   string `form:"compiler_id"`
	CurrentOnly  bool   `form:"current_only"`
	Page         int    `form:"page"`
	PageSize     int    `form:"page_size"`
}

// DocumentDetail enriches a document with a short-lived download link.
type DocumentDetail struct {
	models.Document
	DownloadURL *storage.PresignedURL `json:"download_url,omitempty"`
}
