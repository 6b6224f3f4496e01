package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mutamba/erp-backend/internal/access"
	"github.com/mutamba/erp-backend/internal/apps/materiasprimas"
	"github.com/mutamba/erp-backend/internal/apps/produtos"
	"github.com/mutamba/erp-backend/internal/dto"
)

func decodeInto(resp *http.Response, out any) error {
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// GetEntry reads one directory entry. A missing entry is access.ErrEntryNotFound.
func (c *Client) GetEntry(ctx context.Context, uid string) (*dto.DirectoryEntryResponse, error) {
	var e dto.DirectoryEntryResponse
	err := c.doJSON(ctx, http.MethodGet, "/api/directory/"+url.PathEscape(uid), nil, &e)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", access.ErrEntryNotFound, uid)
		}
		return nil, err
	}
	return &e, nil
}

// GetRole implements access.DirectoryReader. The role is decoded again here
// so an unexpected value can only ever become user.
func (c *Client) GetRole(ctx context.Context, uid string) (access.Role, error) {
	e, err := c.GetEntry(ctx, uid)
	if err != nil {
		return access.RoleNone, err
	}
	return access.ParseRole(string(e.Role)), nil
}

func (c *Client) ListUsers(ctx context.Context) ([]dto.DirectoryEntryResponse, error) {
	var out []dto.DirectoryEntryResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/usuarios", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Navigation(ctx context.Context) (*dto.NavigationResponse, error) {
	var nav dto.NavigationResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/navigation", nil, &nav); err != nil {
		return nil, err
	}
	return &nav, nil
}

func (c *Client) ListMaterials(ctx context.Context, q string, lowStock bool) (*materiasprimas.ListResponse, error) {
	params := map[string]string{"q": q}
	if lowStock {
		params["abaixo_minimo"] = "true"
	}
	var out materiasprimas.ListResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/p/materias-primas"+query(params), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListProducts(ctx context.Context, q string, includeInactive bool) (*produtos.ListResponse, error) {
	params := map[string]string{"q": q}
	if includeInactive {
		params["inativos"] = "true"
	}
	var out produtos.ListResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/p/produtos"+query(params), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Health(ctx context.Context) (*dto.HealthResponse, error) {
	resp, err := c.send(ctx, http.MethodGet, "/api/health", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var h dto.HealthResponse
	if err := decodeInto(resp, &h); err != nil {
		return nil, err
	}
	return &h, nil
}
