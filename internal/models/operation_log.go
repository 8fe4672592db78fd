package models

import "time"

// OperationType classifies operation log entries.
type OperationType string

const (
	OperationLogin          OperationType = "LOGIN"
	OperationLogout         OperationType = "LOGOUT"
	OperationUpload         OperationType = "UPLOAD"
	OperationSubmit         OperationType = "SUBMIT"
	OperationApprove        OperationType = "APPROVE"
	OperationReject         OperationType = "REJECT"
	OperationDistribute     OperationType = "DISTRIBUTE"
	OperationRecall         OperationType = "RECALL"
	OperationObsolete       OperationType = "OBSOLETE"
	OperationCreateVersion  OperationType = "CREATE_VERSION"
	OperationRestoreVersion OperationType = "RESTORE_VERSION"
	OperationRevise         OperationType = "REVISE"
	OperationView           OperationType = "VIEW"
	OperationDownload       OperationType = "DOWNLOAD"
)

// Operation results.
const (
	OperationResultSuccess = "SUCCESS"
	OperationResultFailure = "FAILURE"
)

// Object types referenced by operation logs.
const (
	ObjectTypeDocument     = "DOCUMENT"
	ObjectTypeDistribution = "DISTRIBUTION"
	ObjectTypeUser         = "USER"
)

// OperationLog is an append-only audit record of a user action.
type OperationLog struct {
	ID            string        `db:"id" json:"id"`
	UserID        string        `db:"user_id" json:"user_id"`
	UserName      string        `db:"user_name" json:"user_name"`
	OperationType OperationType `db:"operation_type" json:"operation_type"`
	Content       string        `db:"content" json:"content"`
	ObjectType    string        `db:"object_type" json:"object_type,omitempty"`
	ObjectID      *string       `db:"object_id" json:"object_id,omitempty"`
	Result        string        `db:"result" json:"result"`
	ErrorMessage  *string       `db:"error_message" json:"error_message,omitempty"`
	IPAddress     string        `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent     string        `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
}

// OperationLogFilter constrains log searches and exports.
type OperationLogFilter struct {
	UserID        string
	OperationType OperationType
	ObjectID      string
	From          *time.Time
	To            *time.Time
	Page          int
	PageSize      int
}
