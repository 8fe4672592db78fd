package dto

import "github.com/noah-isme/doc-control-api/internal/models"

// DecisionRequest captures an approver decision and optional reason.
type DecisionRequest struct {
	Decision models.ApprovalStatus `json:"decision" validate:"required,oneof=APPROVED REJECTED MODIFY_REQUIRED"`
	Comment  string                `json:"comment" validate:"omitempty,max=1000"`
}
