package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/mutamba/erp-backend/internal/metrics"
)

var (
	// ErrEntryNotFound is returned by a DirectoryReader when the uid has no entry.
	ErrEntryNotFound = errors.New("directory entry not found")
	ErrResolveFailed = errors.New("role resolution failed")
)

// DirectoryReader reads the decoded role stored in a directory entry.
type DirectoryReader interface {
	GetRole(ctx context.Context, uid string) (Role, error)
}

// Resolver determines the effective role of an identity: the configured
// super-admin email is always admin, everyone else gets the role of their
// directory entry, defaulting to user.
type Resolver struct {
	directory       DirectoryReader
	superAdminEmail string
}

func NewResolver(directory DirectoryReader, superAdminEmail string) *Resolver {
	return &Resolver{directory: directory, superAdminEmail: superAdminEmail}
}

// Resolve never returns RoleAdmin together with an error. A failed directory
// read yields RoleNone and an error wrapping ErrResolveFailed; the caller
// decides how to degrade.
func (r *Resolver) Resolve(ctx context.Context, id *Identity) (Role, error) {
	if id == nil {
		return RoleNone, nil
	}

	if r.IsSuperAdmin(id.Email) {
		metrics.RoleResolutions.WithLabelValues("super_admin").Inc()
		return RoleAdmin, nil
	}

	role, err := r.directory.GetRole(ctx, id.UID)
	switch {
	case errors.Is(err, ErrEntryNotFound):
		metrics.RoleResolutions.WithLabelValues("no_entry").Inc()
		return RoleUser, nil
	case err != nil:
		metrics.RoleResolutions.WithLabelValues("error").Inc()
		return RoleNone, fmt.Errorf("%w: uid %s: %w", ErrResolveFailed, id.UID, err)
	}

	// Readers are expected to decode already; re-check so an open string
	// never grants admin.
	if role != RoleAdmin {
		role = RoleUser
	}
	metrics.RoleResolutions.WithLabelValues(string(role)).Inc()
	return role, nil
}

func (r *Resolver) IsSuperAdmin(email string) bool {
	return r.superAdminEmail != "" && email == r.superAdminEmail
}

func (r *Resolver) SuperAdminEmail() string { return r.superAdminEmail }
