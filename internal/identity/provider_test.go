package identity

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mutamba/erp-backend/internal/config"
	"github.com/mutamba/erp-backend/internal/database/dbtest"
	"github.com/mutamba/erp-backend/internal/models"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:        "test-secret",
		JWTAccessExpiry:  15 * time.Minute,
		JWTRefreshExpiry: time.Hour,
	}
}

func TestGenerateAccessToken(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p := &Provider{cfg: testConfig(), now: func() time.Time { return now }}

	raw, err := p.generateAccessToken(&models.Identity{UID: "uid-1", Email: "ana@mutamba.com", DisplayName: "Ana"})
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte("test-secret"), nil
	}, jwt.WithoutClaimsValidation())
	require.NoError(t, err)

	require.Equal(t, "uid-1", claims["sub"])
	require.Equal(t, "ana@mutamba.com", claims["email"])
	require.Equal(t, "Ana", claims["name"])
	require.EqualValues(t, now.Add(15*time.Minute).Unix(), claims["exp"])
}

func TestHashTokenAndNormalize(t *testing.T) {
	t.Parallel()

	require.Len(t, hashToken("abc"), 64)
	require.Equal(t, hashToken("abc"), hashToken("abc"))
	require.NotEqual(t, hashToken("abc"), hashToken("abd"))
	require.Equal(t, "ana@mutamba.com", normalizeEmail("  Ana@Mutamba.com "))
}

func TestProvider_Integration(t *testing.T) {
	db := dbtest.New(t)
	p := NewProvider(db, testConfig())
	ctx := context.Background()

	id, err := p.CreateIdentity(ctx, "Ana@Mutamba.com", "secret1", "Ana")
	require.NoError(t, err)
	require.NotEmpty(t, id.UID)
	require.Equal(t, "ana@mutamba.com", id.Email)

	t.Run("duplicate email", func(t *testing.T) {
		_, err := p.CreateIdentity(ctx, "ana@mutamba.com", "another1", "Ana 2")
		require.ErrorIs(t, err, ErrEmailAlreadyExists)
	})

	t.Run("weak password", func(t *testing.T) {
		_, err := p.CreateIdentity(ctx, "bia@mutamba.com", "123", "Bia")
		require.ErrorIs(t, err, ErrWeakPassword)
	})

	t.Run("sign in", func(t *testing.T) {
		resp, err := p.SignIn(ctx, "ana@mutamba.com", "secret1")
		require.NoError(t, err)
		require.Equal(t, id.UID, resp.User.UID)
		require.NotEmpty(t, resp.AccessToken)

		_, err = p.SignIn(ctx, "ana@mutamba.com", "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials)
		_, err = p.SignIn(ctx, "nobody@mutamba.com", "secret1")
		require.ErrorIs(t, err, ErrInvalidCredentials)

		rotated, err := p.Refresh(ctx, resp.RefreshToken)
		require.NoError(t, err)
		require.NotEqual(t, resp.RefreshToken, rotated.RefreshToken)

		_, err = p.Refresh(ctx, resp.RefreshToken)
		require.ErrorIs(t, err, ErrInvalidToken)

		require.NoError(t, p.SignOut(ctx, rotated.RefreshToken))
		_, err = p.Refresh(ctx, rotated.RefreshToken)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("concurrent refresh with one token", func(t *testing.T) {
		resp, err := p.SignIn(ctx, "ana@mutamba.com", "secret1")
		require.NoError(t, err)

		const n = 8
		var wg sync.WaitGroup
		var ok atomic.Int32
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := p.Refresh(ctx, resp.RefreshToken); err == nil {
					ok.Add(1)
				} else {
					assert.ErrorIs(t, err, ErrInvalidToken)
				}
			}()
		}
		wg.Wait()
		require.EqualValues(t, 1, ok.Load())
	})

	t.Run("delete", func(t *testing.T) {
		other, err := p.CreateIdentity(ctx, "carla@mutamba.com", "secret1", "Carla")
		require.NoError(t, err)

		require.NoError(t, p.DeleteIdentity(ctx, other.UID))
		_, err = p.GetIdentity(ctx, other.UID)
		require.ErrorIs(t, err, ErrIdentityNotFound)
		require.ErrorIs(t, p.DeleteIdentity(ctx, other.UID), ErrIdentityNotFound)

		all, err := p.ListIdentities(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
	})
}
