package service

import (
	"context"
	"fmt"

	"github.com/noah-isme/doc-control-api/internal/models"
	appErrors "github.com/noah-isme/doc-control-api/pkg/errors"
)

type roleDirectory interface {
	UsersWithRole(ctx context.Context, roleID string) ([]models.User, error)
}

// RoleResolver maps an approval step role to the user who acts on it.
type RoleResolver struct {
	dir roleDirectory
}

// NewRoleResolver constructs a RoleResolver.
func NewRoleResolver(dir roleDirectory) *RoleResolver {
	return &RoleResolver{dir: dir}
}

// Resolve returns the first enabled holder of roleID, ordered by user id.
func (r *RoleResolver) Resolve(ctx context.Context, roleID string) (*models.User, error) {
	if roleID == "" {
		return nil, appErrors.Clone(appErrors.ErrApprovalFlowConfig, "approval step has no role")
	}
	users, err := r.dir.UsersWithRole(ctx, roleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load role members")
	}
	for i := range users {
		if users[i].Enabled {
			return &users[i], nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrApproverNotFound, fmt.Sprintf("no enabled approver for role %s", roleID))
}
