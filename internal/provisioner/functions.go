package provisioner

import (
	"context"
	"encoding/json"

	"github.com/mutamba/erp-backend/internal/authctx"
	"github.com/mutamba/erp-backend/internal/callable"
	"github.com/mutamba/erp-backend/internal/dto"
)

const (
	FuncCreateUser     = "createUser"
	FuncSetUserRole    = "setUserRole"
	FuncReconcileUsers = "reconcileUsers"
)

// Register exposes the service's operations as callable functions.
func (s *Service) Register(r *callable.Registry) {
	r.Register(FuncCreateUser, s.createUserFunc)
	r.Register(FuncSetUserRole, s.setUserRoleFunc)
	r.Register(FuncReconcileUsers, s.reconcileFunc)
}

// The caller is checked before the payload is decoded, so an unauthorized
// caller never learns anything about the expected payload.
func (s *Service) createUserFunc(ctx context.Context, caller *authctx.Caller, data json.RawMessage) (any, error) {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	req, err := callable.Decode[dto.CreateUserRequest](data)
	if err != nil {
		return nil, err
	}
	res, err := s.CreateUser(ctx, caller, req)
	if err != nil {
		return nil, err
	}
	return dto.CreateUserResponse{Result: res.Message, UID: res.UID}, nil
}

func (s *Service) setUserRoleFunc(ctx context.Context, caller *authctx.Caller, data json.RawMessage) (any, error) {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	req, err := callable.Decode[dto.SetUserRoleRequest](data)
	if err != nil {
		return nil, err
	}
	role, err := s.SetUserRole(ctx, caller, req)
	if err != nil {
		return nil, err
	}
	return dto.SetUserRoleResponse{Result: "Permissão atualizada.", UID: req.UID, Role: role}, nil
}

func (s *Service) reconcileFunc(ctx context.Context, caller *authctx.Caller, _ json.RawMessage) (any, error) {
	repaired, err := s.Reconcile(ctx, caller)
	if err != nil {
		return nil, err
	}
	return dto.ReconcileResponse{Result: "Diretório reconciliado.", Repaired: repaired}, nil
}
