// Package provisioner creates users and changes roles on behalf of an
// administrator. Every operation re-resolves the caller's role server-side;
// nothing the client believes about itself is trusted.
package provisioner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/mutamba/erp-backend/internal/access"
	"github.com/mutamba/erp-backend/internal/authctx"
	"github.com/mutamba/erp-backend/internal/callable"
	"github.com/mutamba/erp-backend/internal/directory"
	"github.com/mutamba/erp-backend/internal/dto"
	"github.com/mutamba/erp-backend/internal/identity"
	"github.com/mutamba/erp-backend/internal/metrics"
)

const (
	msgRequiredFields = "Nome, e-mail e senha são obrigatórios."
	msgInvalidFields  = "Dados do usuário inválidos."
	msgEmailInUse     = "Este e-mail já está em uso por outro usuário."
	msgCreateFailed   = "Ocorreu um erro ao criar o usuário."
	msgNotAdmin       = "Apenas administradores podem executar esta operação."
	msgUnauthed       = "É necessário estar autenticado."
	msgSelfRole       = "Você não pode alterar sua própria permissão."
	msgUserNotFound   = "Usuário não encontrado."
	msgRoleFailed     = "Ocorreu um erro ao alterar a permissão."
	msgResolveFailed  = "Não foi possível verificar suas permissões."
)

type Identities interface {
	CreateIdentity(ctx context.Context, email, password, displayName string) (*access.Identity, error)
	DeleteIdentity(ctx context.Context, uid string) error
	ListIdentities(ctx context.Context) ([]access.Identity, error)
}

type Directory interface {
	Get(ctx context.Context, uid string) (*directory.Entry, error)
	Set(ctx context.Context, e directory.Entry) error
	UpdateRole(ctx context.Context, uid string, role access.Role) error
}

type RoleResolver interface {
	Resolve(ctx context.Context, id *access.Identity) (access.Role, error)
}

type CreateUserResult struct {
	UID     string
	Message string
}

type Service struct {
	identities Identities
	directory  Directory
	resolver   RoleResolver
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(identities Identities, dir Directory, resolver RoleResolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		identities: identities,
		directory:  dir,
		resolver:   resolver,
		logger:     logger,
		now:        time.Now,
	}
}

// requireAdmin fails unless the caller is authenticated and currently
// resolves to admin. A resolution error denies.
func (s *Service) requireAdmin(ctx context.Context, caller *authctx.Caller) error {
	if caller == nil {
		return callable.NewError(callable.Unauthenticated, msgUnauthed)
	}
	role, err := s.resolver.Resolve(ctx, caller.Identity())
	if err != nil {
		return callable.Wrap(callable.Internal, msgResolveFailed, err)
	}
	if !role.IsAdmin() {
		s.logger.Warn("privileged call denied", "uid", caller.UID, "role", role.String())
		return callable.NewError(callable.PermissionDenied, msgNotAdmin)
	}
	return nil
}

// CreateUser creates the identity and then its directory entry. If the entry
// cannot be written the identity is deleted again so that no identity exists
// without an entry.
func (s *Service) CreateUser(ctx context.Context, caller *authctx.Caller, req dto.CreateUserRequest) (*CreateUserResult, error) {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return nil, err
	}

	if err := req.ValidateRequired(); err != nil {
		return nil, callable.Wrap(callable.InvalidArgument, msgRequiredFields, err)
	}
	if err := req.ValidateFormat(); err != nil {
		return nil, callable.Wrap(callable.InvalidArgument, msgInvalidFields, err)
	}
	role := access.RoleUser
	if req.Role != "" {
		r, ok := access.LookupRole(req.Role)
		if !ok {
			return nil, callable.NewError(callable.InvalidArgument, msgInvalidFields)
		}
		role = r
	}

	created, err := s.identities.CreateIdentity(ctx, req.Email, req.Password, req.Nome)
	switch {
	case errors.Is(err, identity.ErrEmailAlreadyExists):
		return nil, callable.Wrap(callable.AlreadyExists, msgEmailInUse, err)
	case errors.Is(err, identity.ErrWeakPassword):
		return nil, callable.Wrap(callable.InvalidArgument,
			fmt.Sprintf("A senha deve ter pelo menos %d caracteres.", identity.MinPasswordLength), err)
	case err != nil:
		return nil, callable.Wrap(callable.Internal, msgCreateFailed, err)
	}

	entry := directory.Entry{
		UID:         created.UID,
		Nome:        req.Nome,
		Email:       created.Email,
		Role:        role,
		DataCriacao: s.now().UTC(),
	}
	if err := s.directory.Set(ctx, entry); err != nil {
		s.compensate(ctx, created, err)
		return nil, callable.Wrap(callable.Internal, msgCreateFailed, err)
	}

	s.logger.Info("user provisioned",
		"uid", created.UID,
		"email", created.Email,
		"role", string(role),
		"by", caller.UID,
	)

	return &CreateUserResult{
		UID:     created.UID,
		Message: fmt.Sprintf("Usuário %s (%s) criado com sucesso.", req.Nome, created.Email),
	}, nil
}

func (s *Service) compensate(ctx context.Context, created *access.Identity, cause error) {
	// The request context may already be done; the rollback must still run.
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	err := s.identities.DeleteIdentity(cctx, created.UID)
	if err == nil {
		s.logger.Warn("directory write failed, identity rolled back", "uid", created.UID, "error", cause)
		return
	}

	metrics.OrphanedIdentities.Inc()
	s.logger.Error("identity left without directory entry",
		"uid", created.UID,
		"email", created.Email,
		"error", errors.Join(cause, err),
	)
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("uid", created.UID)
		scope.SetTag("function", "createUser")
		sentry.CaptureException(fmt.Errorf("orphaned identity %s: %w", created.UID, errors.Join(cause, err)))
	})
}

// SetUserRole changes another user's role. Concurrent changes to the same
// entry are last-write-wins.
func (s *Service) SetUserRole(ctx context.Context, caller *authctx.Caller, req dto.SetUserRoleRequest) (access.Role, error) {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return access.RoleNone, err
	}
	if err := req.Validate(); err != nil {
		return access.RoleNone, callable.Wrap(callable.InvalidArgument, "Usuário e permissão válidos são obrigatórios.", err)
	}
	role, _ := access.LookupRole(req.Role)

	if req.UID == caller.UID {
		return access.RoleNone, callable.NewError(callable.FailedPrecondition, msgSelfRole)
	}

	if _, err := s.directory.Get(ctx, req.UID); err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return access.RoleNone, callable.Wrap(callable.NotFound, msgUserNotFound, err)
		}
		return access.RoleNone, callable.Wrap(callable.Internal, msgRoleFailed, err)
	}

	if err := s.directory.UpdateRole(ctx, req.UID, role); err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return access.RoleNone, callable.Wrap(callable.NotFound, msgUserNotFound, err)
		}
		return access.RoleNone, callable.Wrap(callable.Internal, msgRoleFailed, err)
	}

	s.logger.Info("role changed", "uid", req.UID, "role", string(role), "by", caller.UID)
	return role, nil
}

// Reconcile creates a user entry for every identity that has none and
// returns the repaired uids. Running it twice repairs nothing the second time.
func (s *Service) Reconcile(ctx context.Context, caller *authctx.Caller) ([]string, error) {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return nil, err
	}

	ids, err := s.identities.ListIdentities(ctx)
	if err != nil {
		return nil, callable.Wrap(callable.Internal, "", err)
	}

	repaired := []string{}
	for _, id := range ids {
		_, err := s.directory.Get(ctx, id.UID)
		if err == nil {
			continue
		}
		if !errors.Is(err, directory.ErrNotFound) {
			return repaired, callable.Wrap(callable.Internal, "", err)
		}

		entry := directory.Entry{
			UID:         id.UID,
			Nome:        id.DisplayName,
			Email:       id.Email,
			Role:        access.RoleUser,
			DataCriacao: s.now().UTC(),
		}
		if err := s.directory.Set(ctx, entry); err != nil {
			return repaired, callable.Wrap(callable.Internal, "", err)
		}
		repaired = append(repaired, id.UID)
	}

	if len(repaired) > 0 {
		s.logger.Info("directory reconciled", "repaired", len(repaired), "by", caller.UID)
	}
	return repaired, nil
}
