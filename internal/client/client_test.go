package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mutamba/erp-backend/internal/access"
	"github.com/mutamba/erp-backend/internal/callable"
	"github.com/mutamba/erp-backend/internal/dto"
	"github.com/mutamba/erp-backend/internal/session"
)

type fakeServer struct {
	*httptest.Server
	refreshes atomic.Int32
	expired   atomic.Bool
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{}
	mux := http.NewServeMux()

	authed := func(w http.ResponseWriter, r *http.Request) bool {
		if r.Header.Get(apiKeyHeader) != "key" {
			writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: true, Message: "Chave de API inválida."})
			return false
		}
		want := "Bearer at-1"
		if fs.refreshes.Load() > 0 {
			want = "Bearer at-2"
		}
		if fs.expired.Load() || r.Header.Get("Authorization") != want {
			fs.expired.Store(false)
			writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: true, Message: "Sessão inválida ou expirada."})
			return false
		}
		return true
	}

	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req dto.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "secret1" {
			writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: true, Message: "Falha ao fazer login. Verifique suas credenciais."})
			return
		}
		writeJSON(w, http.StatusOK, dto.AuthResponse{
			AccessToken: "at-1", RefreshToken: "rt-1",
			User: access.Identity{UID: "adm", Email: req.Email},
		})
	})
	mux.HandleFunc("POST /api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		fs.refreshes.Add(1)
		writeJSON(w, http.StatusOK, dto.AuthResponse{
			AccessToken: "at-2", RefreshToken: "rt-2",
			User: access.Identity{UID: "adm", Email: "ana@mutamba.com"},
		})
	})
	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	})
	mux.HandleFunc("GET /api/directory/{uid}", func(w http.ResponseWriter, r *http.Request) {
		if !authed(w, r) {
			return
		}
		switch r.PathValue("uid") {
		case "adm":
			writeJSON(w, http.StatusOK, dto.DirectoryEntryResponse{UID: "adm", Role: access.RoleAdmin})
		case "odd":
			writeJSON(w, http.StatusOK, map[string]string{"uid": "odd", "role": "owner"})
		default:
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: true, Message: "Usuário não encontrado."})
		}
	})
	mux.HandleFunc("POST /api/functions/{name}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("name") == "createUser" {
			writeJSON(w, http.StatusConflict, callable.Response{Error: &callable.ErrorBody{
				Status: "ALREADY_EXISTS", Code: callable.AlreadyExists, Message: "Este e-mail já está em uso por outro usuário.",
			}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"result": dto.ReconcileResponse{Result: "ok", Repaired: []string{"u9"}}})
	})

	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

func TestSignInNotifiesAndResolves(t *testing.T) {
	t.Parallel()
	srv := newFakeServer(t)
	c := New(srv.URL, "key")

	sc := session.New(c, access.NewResolver(c, ""))
	defer sc.Close()
	sc.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	s, err := sc.WaitReady(ctx)
	require.NoError(t, err)
	require.Nil(t, s.Identity)

	_, err = c.SignIn(ctx, "ana@mutamba.com", "secret1")
	require.NoError(t, err)

	s, err = sc.WaitFor(ctx, func(s session.State) bool { return s.Identity != nil && !s.Loading })
	require.NoError(t, err)
	require.Equal(t, access.RoleAdmin, s.Role)
	require.NoError(t, s.Err)

	require.NoError(t, sc.SignOut(ctx))
	s, err = sc.WaitFor(ctx, func(s session.State) bool { return s.Identity == nil })
	require.NoError(t, err)
	require.Equal(t, access.RoleNone, s.Role)
}

func TestSignInFailure(t *testing.T) {
	t.Parallel()
	srv := newFakeServer(t)
	c := New(srv.URL, "key")

	_, err := c.SignIn(context.Background(), "ana@mutamba.com", "wrong")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	require.Equal(t, "Falha ao fazer login. Verifique suas credenciais.", apiErr.Message)
}

func TestGetRole(t *testing.T) {
	t.Parallel()
	srv := newFakeServer(t)
	c := New(srv.URL, "key")
	ctx := context.Background()
	_, err := c.SignIn(ctx, "ana@mutamba.com", "secret1")
	require.NoError(t, err)

	role, err := c.GetRole(ctx, "adm")
	require.NoError(t, err)
	require.Equal(t, access.RoleAdmin, role)

	role, err = c.GetRole(ctx, "odd")
	require.NoError(t, err)
	require.Equal(t, access.RoleUser, role)

	_, err = c.GetRole(ctx, "missing")
	require.ErrorIs(t, err, access.ErrEntryNotFound)
}

func TestExpiredTokenRefreshesOnce(t *testing.T) {
	t.Parallel()
	srv := newFakeServer(t)
	c := New(srv.URL, "key")
	ctx := context.Background()
	_, err := c.SignIn(ctx, "ana@mutamba.com", "secret1")
	require.NoError(t, err)

	srv.expired.Store(true)
	role, err := c.GetRole(ctx, "adm")
	require.NoError(t, err)
	require.Equal(t, access.RoleAdmin, role)
	require.EqualValues(t, 1, srv.refreshes.Load())
	require.Equal(t, "rt-2", c.RefreshToken())
}

func TestCallDecodesErrorKinds(t *testing.T) {
	t.Parallel()
	srv := newFakeServer(t)
	c := New(srv.URL, "key")
	ctx := context.Background()

	_, err := c.CreateUser(ctx, dto.CreateUserRequest{Email: "a@mutamba.com", Password: "secret1", Nome: "A"})
	require.Equal(t, callable.AlreadyExists, callable.KindOf(err))
	var ce *callable.Error
	require.True(t, errors.As(err, &ce))
	require.Equal(t, "Este e-mail já está em uso por outro usuário.", ce.Message)

	res, err := c.ReconcileUsers(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"u9"}, res.Repaired)
}

func TestNotificationsInOrder(t *testing.T) {
	t.Parallel()
	c := New("http://unused", "")

	got := make(chan session.Notification, 8)
	unsubscribe := c.OnAuthStateChanged(func(n session.Notification) { got <- n })
	defer unsubscribe()

	c.setSession(&dto.AuthResponse{User: access.Identity{UID: "a"}})
	c.setSession(&dto.AuthResponse{User: access.Identity{UID: "a"}})
	c.setSession(&dto.AuthResponse{User: access.Identity{UID: "b"}})
	c.setSession(nil)

	var seqs []uint64
	var uids []string
	for i := 0; i < 4; i++ {
		n := <-got
		seqs = append(seqs, n.Seq)
		if n.Identity == nil {
			uids = append(uids, "")
		} else {
			uids = append(uids, n.Identity.UID)
		}
	}
	require.Equal(t, []uint64{0, 1, 2, 3}, seqs)
	require.Equal(t, []string{"", "a", "b", ""}, uids)
}
