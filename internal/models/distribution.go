package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// TargetType selects how distribution targets expand into receivers.
type TargetType string

const (
	TargetTypeUser       TargetType = "USER"
	TargetTypeDepartment TargetType = "DEPARTMENT"
	TargetTypePosition   TargetType = "POSITION"
	TargetTypeUserGroup  TargetType = "USER_GROUP"
)

// Valid reports whether t is a known target type.
func (t TargetType) Valid() bool {
	switch t {
	case TargetTypeUser, TargetTypeDepartment, TargetTypePosition, TargetTypeUserGroup:
		return true
	}
	return false
}

// StringList is a JSON encoded list column.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src interface{}) error {
	return scanJSON(src, l)
}

// DocumentDistribution records one distribution of an approved document.
type DocumentDistribution struct {
	ID              string     `db:"id" json:"id"`
	DocumentID      string     `db:"document_id" json:"document_id"`
	DistributorID   string     `db:"distributor_id" json:"distributor_id"`
	DistributorName string     `db:"distributor_name" json:"distributor_name"`
	Note            string     `db:"note" json:"note,omitempty"`
	EffectiveDate   *time.Time `db:"effective_date" json:"effective_date,omitempty"`
	TargetType      TargetType `db:"target_type" json:"target_type"`
	TargetIDs       StringList `db:"target_ids" json:"target_ids"`
	TargetNames     StringList `db:"target_names" json:"target_names"`
	DistributedAt   time.Time  `db:"distributed_at" json:"distributed_at"`
}

// DistributionReceiver tracks one user's view and download of a distribution.
type DistributionReceiver struct {
	ID             string     `db:"id" json:"id"`
	DistributionID string     `db:"distribution_id" json:"distribution_id"`
	ReceiverID     string     `db:"receiver_id" json:"receiver_id"`
	ReceiverName   string     `db:"receiver_name" json:"receiver_name"`
	Viewed         bool       `db:"viewed" json:"viewed"`
	ViewTime       *time.Time `db:"view_time" json:"view_time,omitempty"`
	Downloaded     bool       `db:"downloaded" json:"downloaded"`
	DownloadTime   *time.Time `db:"download_time" json:"download_time,omitempty"`
}

// InboxItem is a distribution received by a user, with its document.
type InboxItem struct {
	Distribution DocumentDistribution `db:"distribution" json:"distribution"`
	Receipt      DistributionReceiver `db:"receipt" json:"receipt"`
	Document     Document             `db:"document" json:"document"`
}
