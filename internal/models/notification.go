package models

// NotificationKind names the message template sent to a recipient.
type NotificationKind string

const (
	NotifyApprovalPending  NotificationKind = "APPROVAL_PENDING"
	NotifyApprovalPassed   NotificationKind = "APPROVAL_PASSED"
	NotifyApprovalRejected NotificationKind = "APPROVAL_REJECTED"
	NotifyDistribution     NotificationKind = "DISTRIBUTION"
)

// Notification is one message to one recipient.
type Notification struct {
	Kind        NotificationKind  `json:"kind"`
	RecipientID string            `json:"recipient_id"`
	DocumentID  string            `json:"document_id"`
	Payload     map[string]string `json:"payload,omitempty"`
}
