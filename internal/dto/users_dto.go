package dto

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/mutamba/erp-backend/internal/access"
)

// CreateUserRequest is the payload of the createUser callable.
type CreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Nome     string `json:"nome"`
	Role     string `json:"role,omitempty"`
}

// ValidateRequired checks the fields that must be present.
func (r CreateUserRequest) ValidateRequired() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
		validation.Field(&r.Nome, validation.Required),
	)
}

// ValidateFormat checks the shape of fields that are present.
func (r CreateUserRequest) ValidateFormat() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, is.Email),
		validation.Field(&r.Nome, validation.Length(1, 255)),
		validation.Field(&r.Role, validation.In(string(access.RoleAdmin), string(access.RoleUser))),
	)
}

type CreateUserResponse struct {
	Result string `json:"result"`
	UID    string `json:"uid"`
}

// SetUserRoleRequest is the payload of the setUserRole callable.
type SetUserRoleRequest struct {
	UID  string `json:"uid"`
	Role string `json:"role"`
}

func (r SetUserRoleRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UID, validation.Required),
		validation.Field(&r.Role, validation.Required, validation.In(string(access.RoleAdmin), string(access.RoleUser))),
	)
}

type SetUserRoleResponse struct {
	Result string      `json:"result"`
	UID    string      `json:"uid"`
	Role   access.Role `json:"role"`
}

type ReconcileResponse struct {
	Result   string   `json:"result"`
	Repaired []string `json:"repaired"`
}

// DirectoryEntryResponse is the public form of a directory entry.
type DirectoryEntryResponse struct {
	UID         string      `json:"uid"`
	Nome        string      `json:"nome"`
	Email       string      `json:"email"`
	Role        access.Role `json:"role"`
	DataCriacao time.Time   `json:"dataCriacao"`
}
