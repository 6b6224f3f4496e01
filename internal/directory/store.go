// Package directory is the user directory: one entry per provisioned
// identity, keyed by uid, holding the profile and the role.
package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mutamba/erp-backend/internal/access"
	"github.com/mutamba/erp-backend/internal/models"
)

// ErrNotFound is the resolver's not-found sentinel, so lookups compose with it.
var ErrNotFound = access.ErrEntryNotFound

// Entry is a decoded directory entry. Role is always a valid access.Role.
type Entry struct {
	UID         string
	Nome        string
	Email       string
	Role        access.Role
	DataCriacao time.Time
}

func fromModel(m *models.DirectoryEntry) *Entry {
	return &Entry{
		UID:         m.UID,
		Nome:        m.Nome,
		Email:       m.Email,
		Role:        access.ParseRole(m.Role),
		DataCriacao: m.DataCriacao,
	}
}

// Store keeps entries in the usuarios table. Concurrent writes to the same
// entry are last-write-wins; there is no version check.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, uid string) (*Entry, error) {
	var m models.DirectoryEntry
	if err := s.db.WithContext(ctx).First(&m, "uid = ?", uid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read directory entry %s: %w", uid, err)
	}
	return fromModel(&m), nil
}

// GetRole implements access.DirectoryReader.
func (s *Store) GetRole(ctx context.Context, uid string) (access.Role, error) {
	entry, err := s.Get(ctx, uid)
	if err != nil {
		return access.RoleNone, err
	}
	return entry.Role, nil
}

// Set creates the entry or overwrites an existing one with the same uid.
func (s *Store) Set(ctx context.Context, e Entry) error {
	role := e.Role
	if !role.Valid() {
		role = access.RoleUser
	}
	m := models.DirectoryEntry{
		UID:         e.UID,
		Nome:        e.Nome,
		Email:       e.Email,
		Role:        string(role),
		DataCriacao: e.DataCriacao,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "uid"}},
			DoUpdates: clause.AssignmentColumns([]string{"nome", "email", "role", "data_criacao", "updated_at"}),
		}).
		Create(&m).Error
	if err != nil {
		return fmt.Errorf("write directory entry %s: %w", e.UID, err)
	}
	return nil
}

// UpdateRole changes only the role field.
func (s *Store) UpdateRole(ctx context.Context, uid string, role access.Role) error {
	if !role.Valid() {
		return fmt.Errorf("invalid role %q", role)
	}
	res := s.db.WithContext(ctx).
		Model(&models.DirectoryEntry{}).
		Where("uid = ?", uid).
		Update("role", string(role))
	if res.Error != nil {
		return fmt.Errorf("update role of %s: %w", uid, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all entries ordered by name, leaving out excludeEmail.
func (s *Store) List(ctx context.Context, excludeEmail string) ([]Entry, error) {
	var rows []models.DirectoryEntry
	q := s.db.WithContext(ctx).Order("nome ASC")
	if excludeEmail != "" {
		q = q.Where("email <> ?", excludeEmail)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list directory: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for i := range rows {
		entries = append(entries, *fromModel(&rows[i]))
	}
	return entries, nil
}

func (s *Store) CountByEmail(ctx context.Context, email string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.DirectoryEntry{}).Where("email = ?", email).Count(&n).Error
	return n, err
}
