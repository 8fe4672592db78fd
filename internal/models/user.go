package models

import "time"

// Role codes with built-in meaning for route guards.
const (
	RoleAdmin       = "ADMIN"
	RoleDocAdmin    = "DOC_ADMIN"
	RoleAuditor     = "AUDITOR"
	RoleDistributor = "DISTRIBUTOR"
)

// User is a directory entry. Approvers and receivers are users.
type User struct {
	ID             string    `db:"id" json:"id"`
	Username       string    `db:"username" json:"username"`
	PasswordHash   string    `db:"password_hash" json:"-"`
	FullName       string    `db:"full_name" json:"full_name"`
	Email          string    `db:"email" json:"email,omitempty"`
	Phone          string    `db:"phone" json:"phone,omitempty"`
	DepartmentID   *string   `db:"department_id" json:"department_id,omitempty"`
	DepartmentName *string   `db:"department_name" json:"department_name,omitempty"`
	Position       *string   `db:"position" json:"position,omitempty"`
	Enabled        bool      `db:"enabled" json:"enabled"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Role groups users that may act as approvers for a step.
type Role struct {
	ID          string `db:"id" json:"id"`
	Code        string `db:"code" json:"code"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description,omitempty"`
}

// Department is an organisational unit used as a distribution target.
type Department struct {
	ID   string `db:"id" json:"id"`
	Code string `db:"code" json:"code"`
	Name string `db:"name" json:"name"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// NormalizePage clamps page and size to sane bounds.
func NormalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}
