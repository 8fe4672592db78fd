package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ApprovalStatus is the state of a single approval record.
type ApprovalStatus string

const (
	ApprovalStatusPending        ApprovalStatus = "PENDING"
	ApprovalStatusApproved       ApprovalStatus = "APPROVED"
	ApprovalStatusRejected       ApprovalStatus = "REJECTED"
	ApprovalStatusModifyRequired ApprovalStatus = "MODIFY_REQUIRED"
)

// IsDecision reports whether s is a valid approver decision.
func (s ApprovalStatus) IsDecision() bool {
	return s == ApprovalStatusApproved || s == ApprovalStatusRejected || s == ApprovalStatusModifyRequired
}

// Applicability match modes.
const (
	MatchAll = "ALL"
	MatchAny = "ANY"
)

// ApprovalStep is one ordered role in a flow.
type ApprovalStep struct {
	Order    int    `json:"order" yaml:"order"`
	RoleID   string `json:"role_id" yaml:"role_id"`
	RoleName string `json:"role_name" yaml:"role_name"`
}

// ApprovalSteps is persisted as JSONB.
type ApprovalSteps []ApprovalStep

// Value implements driver.Valuer.
func (s ApprovalSteps) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner.
func (s *ApprovalSteps) Scan(src interface{}) error {
	return scanJSON(src, s)
}

// FlowApplicability limits which documents a flow accepts. Empty criteria
// accept every document.
type FlowApplicability struct {
	FileTypes     []string `json:"file_types,omitempty" yaml:"file_types"`
	ProductModels []string `json:"product_models,omitempty" yaml:"product_models"`
	Importance    []string `json:"importance,omitempty" yaml:"importance"`
	Match         string   `json:"match,omitempty" yaml:"match"`
}

// Empty reports whether no criteria are configured.
func (a FlowApplicability) Empty() bool {
	return len(a.FileTypes) == 0 && len(a.ProductModels) == 0 && len(a.Importance) == 0
}

// Value implements driver.Valuer.
func (a FlowApplicability) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan implements sql.Scanner.
func (a *FlowApplicability) Scan(src interface{}) error {
	return scanJSON(src, a)
}

// ApprovalFlow is a configured sequence of approval steps.
type ApprovalFlow struct {
	ID            string            `db:"id" json:"id"`
	Code          string            `db:"code" json:"code"`
	Name          string            `db:"name" json:"name"`
	Steps         ApprovalSteps     `db:"steps" json:"steps"`
	Applicability FlowApplicability `db:"applicability" json:"applicability"`
	Enabled       bool              `db:"enabled" json:"enabled"`
	Position      int               `db:"position" json:"position"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time         `db:"updated_at" json:"updated_at"`
}

// ApprovalRecord is one step of one approval round of a document.
type ApprovalRecord struct {
	ID               string         `db:"id" json:"id"`
	DocumentID       string         `db:"document_id" json:"document_id"`
	ApprovalFlowID   string         `db:"approval_flow_id" json:"approval_flow_id"`
	Round            int            `db:"round" json:"round"`
	StepOrder        int            `db:"step_order" json:"step_order"`
	ApproverRoleID   string         `db:"approver_role_id" json:"approver_role_id"`
	ApproverRoleName string         `db:"approver_role_name" json:"approver_role_name"`
	ApproverID       *string        `db:"approver_id" json:"approver_id,omitempty"`
	ApproverName     *string        `db:"approver_name" json:"approver_name,omitempty"`
	Status           ApprovalStatus `db:"status" json:"status"`
	Comment          *string        `db:"comment" json:"comment,omitempty"`
	ApproveTime      *time.Time     `db:"approve_time" json:"approve_time,omitempty"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
}

// Assigned reports whether an approver has been resolved for the record.
func (r *ApprovalRecord) Assigned() bool {
	return r.ApproverID != nil && *r.ApproverID != ""
}

// ApprovalProgress summarises the current round of a document.
type ApprovalProgress struct {
	DocumentID  string           `json:"document_id"`
	Status      DocumentStatus   `json:"status"`
	Round       int              `json:"round"`
	FlowID      *string          `json:"flow_id,omitempty"`
	CurrentStep *ApprovalRecord  `json:"current_step,omitempty"`
	Records     []ApprovalRecord `json:"records"`
}

// ApprovalTask is a pending record assigned to the caller together with its document.
type ApprovalTask struct {
	Record   ApprovalRecord `json:"record"`
	Document Document       `json:"document"`
}

func scanJSON(src interface{}, dest interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported json column type %T", src)
	}
}
