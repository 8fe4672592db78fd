package dto

import (
	"time"

	"github.com/noah-isme/doc-control-api/internal/models"
	"github.com/noah-isme/doc-control-api/pkg/storage"
)

// DistributeRequest sends approved documents to a set of targets.
type DistributeRequest struct {
	DocumentIDs   []string          `json:"document_ids" validate:"required,min=1,dive,required"`
	TargetType    models.TargetType `json:"target_type" validate:"required,oneof=USER DEPARTMENT POSITION USER_GROUP"`
	TargetIDs     []string          `json:"target_ids" validate:"required,min=1,dive,required"`
	TargetNames   []string          `json:"target_names"`
	Note          string            `json:"note" validate:"omitempty,max=1000"`
	EffectiveDate *time.Time        `json:"effective_date"`
}

// DocumentIDsRequest names documents for recall or obsolescence.
type DocumentIDsRequest struct {
	DocumentIDs []string `json:"document_ids" validate:"required,min=1,dive,required"`
}

// DownloadTicket acknowledges a download and carries the link to fetch it.
type DownloadTicket struct {
	Receipt     models.DistributionReceiver `json:"receipt"`
	DownloadURL *storage.PresignedURL       `json:"download_url,omitempty"`
}
