// Package identity is the identity provider: it owns credentials, signs
// session tokens and creates or deletes identities for the provisioner.
package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/mutamba/erp-backend/internal/access"
	"github.com/mutamba/erp-backend/internal/config"
	"github.com/mutamba/erp-backend/internal/dto"
	"github.com/mutamba/erp-backend/internal/models"
)

const MinPasswordLength = 6

var (
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired refresh token")
	ErrIdentityNotFound   = errors.New("identity not found")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
)

type Provider struct {
	db  *gorm.DB
	cfg *config.Config
	now func() time.Time
}

func NewProvider(db *gorm.DB, cfg *config.Config) *Provider {
	return &Provider{db: db, cfg: cfg, now: time.Now}
}

// SignIn checks email/password and issues a token pair. Every failure that
// is not a storage error is reported as ErrInvalidCredentials.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*dto.AuthResponse, error) {
	var rec models.Identity
	err := p.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup identity: %w", err)
	}

	if rec.Disabled {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return p.generateTokenPair(ctx, &rec)
}

func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*dto.AuthResponse, error) {
	tokenHash := hashToken(refreshToken)
	db := p.db.WithContext(ctx)

	var stored models.RefreshToken
	if err := db.Where("token_hash = ? AND revoked = false", tokenHash).First(&stored).Error; err != nil {
		return nil, ErrInvalidToken
	}

	// Rotation: a refresh token is good for one use. Only the request that
	// flips revoked may continue.
	res := db.Model(&models.RefreshToken{}).
		Where("id = ? AND revoked = false", stored.ID).
		Updates(map[string]any{"revoked": true})
	if res.Error != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", res.Error)
	}
	if res.RowsAffected != 1 {
		return nil, ErrInvalidToken
	}
	if p.now().After(stored.ExpiresAt) {
		return nil, ErrInvalidToken
	}

	var rec models.Identity
	if err := db.First(&rec, "uid = ?", stored.UID).Error; err != nil {
		return nil, ErrInvalidToken
	}
	if rec.Disabled {
		return nil, ErrInvalidToken
	}

	return p.generateTokenPair(ctx, &rec)
}

// SignOut revokes the refresh token. Access tokens stay valid until expiry.
func (p *Provider) SignOut(ctx context.Context, refreshToken string) error {
	return p.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("token_hash = ?", hashToken(refreshToken)).
		Update("revoked", true).Error
}

// CreateIdentity registers a new identity. An email already registered
// yields ErrEmailAlreadyExists.
func (p *Provider) CreateIdentity(ctx context.Context, email, password, displayName string) (*access.Identity, error) {
	email = normalizeEmail(email)
	if len(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	db := p.db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.Identity{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if count > 0 {
		return nil, ErrEmailAlreadyExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	rec := models.Identity{
		UID:          uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  displayName,
	}
	if err := db.Create(&rec).Error; err != nil {
		// Lost a race with a concurrent create for the same email.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}

	return rec.ToIdentity(), nil
}

// DeleteIdentity removes an identity and its refresh tokens.
func (p *Provider) DeleteIdentity(ctx context.Context, uid string) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("uid = ?", uid).Delete(&models.RefreshToken{}).Error; err != nil {
			return err
		}
		res := tx.Where("uid = ?", uid).Delete(&models.Identity{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrIdentityNotFound
		}
		return nil
	})
}

func (p *Provider) GetIdentity(ctx context.Context, uid string) (*access.Identity, error) {
	var rec models.Identity
	if err := p.db.WithContext(ctx).First(&rec, "uid = ?", uid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}
	return rec.ToIdentity(), nil
}

func (p *Provider) ListIdentities(ctx context.Context) ([]access.Identity, error) {
	var recs []models.Identity
	if err := p.db.WithContext(ctx).Order("created_at ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	out := make([]access.Identity, 0, len(recs))
	for i := range recs {
		out = append(out, *recs[i].ToIdentity())
	}
	return out, nil
}

func (p *Provider) generateTokenPair(ctx context.Context, rec *models.Identity) (*dto.AuthResponse, error) {
	accessToken, err := p.generateAccessToken(rec)
	if err != nil {
		return nil, err
	}

	refreshToken, err := p.generateRefreshToken(ctx, rec)
	if err != nil {
		return nil, err
	}

	return &dto.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(p.cfg.JWTAccessExpiry.Seconds()),
		User:         *rec.ToIdentity(),
	}, nil
}

func (p *Provider) generateAccessToken(rec *models.Identity) (string, error) {
	now := p.now()
	claims := jwt.MapClaims{
		"sub":   rec.UID,
		"email": rec.Email,
		"name":  rec.DisplayName,
		"iat":   now.Unix(),
		"exp":   now.Add(p.cfg.JWTAccessExpiry).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(p.cfg.JWTSecret))
}

func (p *Provider) generateRefreshToken(ctx context.Context, rec *models.Identity) (string, error) {
	rawBytes := make([]byte, 32)
	if _, err := rand.Read(rawBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	rawToken := base64.URLEncoding.EncodeToString(rawBytes)

	record := models.RefreshToken{
		ID:        uuid.New(),
		UID:       rec.UID,
		TokenHash: hashToken(rawToken),
		ExpiresAt: p.now().Add(p.cfg.JWTRefreshExpiry),
	}
	if err := p.db.WithContext(ctx).Create(&record).Error; err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	return rawToken, nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", h)
}

func normalizeEmail(email string) string {
	return config.NormalizeEmail(email)
}
