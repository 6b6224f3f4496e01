package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mutamba/erp-backend/internal/callable"
	"github.com/mutamba/erp-backend/internal/dto"
)

// Call invokes a callable function. Failures come back as *callable.Error,
// so callers can switch on callable.KindOf.
func (c *Client) Call(ctx context.Context, name string, data, out any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s data: %w", name, err)
	}

	resp, err := c.send(ctx, http.MethodPost, "/api/functions/"+url.PathEscape(name), callable.Request{Data: payload})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env struct {
		Result json.RawMessage     `json:"result"`
		Error  *callable.ErrorBody `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return callable.Wrap(callable.Internal, "", fmt.Errorf("decode %s response (http %d): %w", name, resp.StatusCode, err))
	}
	if env.Error != nil {
		kind := env.Error.Code
		if kind == "" {
			kind = callable.KindFromStatus(env.Error.Status)
		}
		return callable.NewError(kind, env.Error.Message)
	}
	if resp.StatusCode >= 300 {
		return callable.NewError(callable.Internal, http.StatusText(resp.StatusCode))
	}
	if out == nil || len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", name, err)
	}
	return nil
}

func (c *Client) CreateUser(ctx context.Context, req dto.CreateUserRequest) (*dto.CreateUserResponse, error) {
	var out dto.CreateUserResponse
	if err := c.Call(ctx, "createUser", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SetUserRole(ctx context.Context, req dto.SetUserRoleRequest) (*dto.SetUserRoleResponse, error) {
	var out dto.SetUserRoleResponse
	if err := c.Call(ctx, "setUserRole", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ReconcileUsers(ctx context.Context) (*dto.ReconcileResponse, error) {
	var out dto.ReconcileResponse
	if err := c.Call(ctx, "reconcileUsers", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
