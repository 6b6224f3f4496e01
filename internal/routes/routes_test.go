package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mutamba/erp-backend/internal/access"
	"github.com/mutamba/erp-backend/internal/callable"
	"github.com/mutamba/erp-backend/internal/config"
	"github.com/mutamba/erp-backend/internal/directory"
	"github.com/mutamba/erp-backend/internal/dto"
	"github.com/mutamba/erp-backend/internal/handlers"
	"github.com/mutamba/erp-backend/internal/identity"
	"github.com/mutamba/erp-backend/internal/provisioner"
)

const secret = "routes-secret"

type memIdentities struct {
	mu  sync.Mutex
	ids map[string]access.Identity
}

func (m *memIdentities) CreateIdentity(_ context.Context, email, _, name string) (*access.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.ids {
		if id.Email == email {
			return nil, identity.ErrEmailAlreadyExists
		}
	}
	id := access.Identity{UID: uuid.NewString(), Email: email, DisplayName: name}
	m.ids[id.UID] = id
	return &id, nil
}

func (m *memIdentities) DeleteIdentity(_ context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ids, uid)
	return nil
}

func (m *memIdentities) ListIdentities(context.Context) ([]access.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []access.Identity
	for _, id := range m.ids {
		out = append(out, id)
	}
	return out, nil
}

func (m *memIdentities) SignIn(context.Context, string, string) (*dto.AuthResponse, error) {
	return nil, identity.ErrInvalidCredentials
}

func (m *memIdentities) Refresh(context.Context, string) (*dto.AuthResponse, error) {
	return nil, identity.ErrInvalidToken
}

func (m *memIdentities) SignOut(context.Context, string) error { return nil }

type memDirectory struct {
	mu      sync.Mutex
	entries map[string]directory.Entry
}

func (m *memDirectory) Get(_ context.Context, uid string) (*directory.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[uid]
	if !ok {
		return nil, directory.ErrNotFound
	}
	return &e, nil
}

func (m *memDirectory) GetRole(ctx context.Context, uid string) (access.Role, error) {
	e, err := m.Get(ctx, uid)
	if err != nil {
		return access.RoleNone, err
	}
	return e.Role, nil
}

func (m *memDirectory) Set(_ context.Context, e directory.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.UID] = e
	return nil
}

func (m *memDirectory) UpdateRole(_ context.Context, uid string, role access.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[uid]
	if !ok {
		return directory.ErrNotFound
	}
	e.Role = role
	m.entries[uid] = e
	return nil
}

func (m *memDirectory) List(_ context.Context, exclude string) ([]directory.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []directory.Entry
	for _, e := range m.entries {
		if e.Email != exclude {
			out = append(out, e)
		}
	}
	return out, nil
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	cfg := &config.Config{JWTSecret: secret}
	dir := &memDirectory{entries: map[string]directory.Entry{
		"adm": {UID: "adm", Nome: "Ana", Email: "ana@mutamba.com", Role: access.RoleAdmin},
		"usr": {UID: "usr", Nome: "Bia", Email: "bia@mutamba.com", Role: access.RoleUser},
	}}
	ids := &memIdentities{ids: map[string]access.Identity{}}
	resolver := access.NewResolver(dir, "yuri@teste.com")
	policy := access.MustNewPolicy()

	functions := callable.NewRegistry()
	provisioner.NewService(ids, dir, resolver, nil).Register(functions)

	app := fiber.New()
	Setup(app, cfg, nil, resolver, policy,
		handlers.NewAuthHandler(ids),
		handlers.NewDirectoryHandler(dir, resolver, policy),
		handlers.NewHealthHandler(func() error { return nil }, "southamerica-east1"),
		functions,
		nil,
	)
	return app
}

func bearer(t *testing.T, uid, email string) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   uid,
		"email": email,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return "Bearer " + raw
}

func call(t *testing.T, app *fiber.App, name, auth, data string) (int, callable.Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/functions/"+name, strings.NewReader(`{"data":`+data+`}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if auth != "" {
		req.Header.Set(fiber.HeaderAuthorization, auth)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)

	var out callable.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestCreateUserCallable(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)
	payload := `{"email":"carla@mutamba.com","password":"secret1","nome":"Carla"}`

	status, out := call(t, app, "createUser", "", payload)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, callable.Unauthenticated, out.Error.Code)
	require.Equal(t, "UNAUTHENTICATED", out.Error.Status)

	status, out = call(t, app, "createUser", bearer(t, "usr", "bia@mutamba.com"), payload)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, callable.PermissionDenied, out.Error.Code)

	status, out = call(t, app, "createUser", bearer(t, "usr", "bia@mutamba.com"), `{"email":5}`)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, callable.PermissionDenied, out.Error.Code)

	status, out = call(t, app, "createUser", bearer(t, "adm", "ana@mutamba.com"), `{"email":"x@mutamba.com"}`)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "Nome, e-mail e senha são obrigatórios.", out.Error.Message)

	status, out = call(t, app, "createUser", bearer(t, "adm", "ana@mutamba.com"), payload)
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, out.Error)
	result, ok := out.Result.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "Usuário Carla (carla@mutamba.com) criado com sucesso.", result["result"])

	status, out = call(t, app, "createUser", bearer(t, "adm", "ana@mutamba.com"), payload)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "Este e-mail já está em uso por outro usuário.", out.Error.Message)
}

func TestUnknownFunction(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)

	status, out := call(t, app, "dropTables", bearer(t, "adm", "ana@mutamba.com"), `{}`)
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, callable.NotFound, out.Error.Code)
}

func TestUsuariosRequiresAdmin(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)

	get := func(auth string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/usuarios", nil)
		if auth != "" {
			req.Header.Set(fiber.HeaderAuthorization, auth)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	require.Equal(t, http.StatusUnauthorized, get(""))
	require.Equal(t, http.StatusForbidden, get(bearer(t, "usr", "bia@mutamba.com")))
	require.Equal(t, http.StatusOK, get(bearer(t, "adm", "ana@mutamba.com")))
	require.Equal(t, http.StatusOK, get(bearer(t, "root", "yuri@teste.com")))
}
