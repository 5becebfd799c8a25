package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/davitr/userhub-be/internal/models"
)

// PrivilegeServiceProvider defines the interface for privilege services.
type PrivilegeServiceProvider interface {
	GetByID(ctx context.Context, id int64) (models.Privilege, error)
	GetByName(ctx context.Context, name string) (models.Privilege, error)
	IsAdmin(ctx context.Context, privilegeID *int64) (bool, error)
}

// PrivilegeService provides lookups against the privilege table.
type PrivilegeService struct {
	db *sql.DB
}

// NewPrivilegeService creates a new PrivilegeService.
func NewPrivilegeService(db *sql.DB) *PrivilegeService {
	return &PrivilegeService{db: db}
}

// GetByID retrieves a privilege by its ID.
func (s *PrivilegeService) GetByID(ctx context.Context, id int64) (models.Privilege, error) {
	var privilege models.Privilege
	row := s.db.QueryRowContext(ctx, "SELECT id, name FROM privileges WHERE id = ?", id)
	if err := row.Scan(&privilege.ID, &privilege.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Privilege{}, ErrNotFound
		}
		return models.Privilege{}, err
	}
	return privilege, nil
}

// GetByName retrieves a privilege by its name.
func (s *PrivilegeService) GetByName(ctx context.Context, name string) (models.Privilege, error) {
	var privilege models.Privilege
	row := s.db.QueryRowContext(ctx, "SELECT id, name FROM privileges WHERE name = ?", name)
	if err := row.Scan(&privilege.ID, &privilege.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Privilege{}, ErrNotFound
		}
		return models.Privilege{}, err
	}
	return privilege, nil
}

// IsAdmin reports whether the given privilege reference resolves to the
// admin tier. This is the single admin predicate used by every handler;
// a missing or dangling reference is simply not admin.
func (s *PrivilegeService) IsAdmin(ctx context.Context, privilegeID *int64) (bool, error) {
	if privilegeID == nil {
		return false, nil
	}
	privilege, err := s.GetByID(ctx, *privilegeID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return privilege.Name == models.AdminPrivilege, nil
}
