package store

import (
	"context"
	"fmt"
	"time"

	"github.com/apexgirl/reportanalyzer/internal/models"
)

// ActiveAPIKeys returns usable keys sharing a lookup prefix.
func (s *Store) ActiveAPIKeys(ctx context.Context, prefix string, now time.Time) ([]models.APIKey, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var rows []models.APIKey
	if errFind := s.db.WithContext(ctx).
		Where("prefix = ? AND is_active = ? AND revoked_at IS NULL", prefix, true).
		Where("expires_at IS NULL OR expires_at > ?", now.UTC()).
		Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("store: find api keys: %w", errFind)
	}
	return rows, nil
}

// TouchAPIKey records a successful use.
func (s *Store) TouchAPIKey(ctx context.Context, id uint64, now time.Time) error {
	if err := s.ready(); err != nil {
		return err
	}
	if errUpdate := s.db.WithContext(ctx).
		Model(&models.APIKey{}).
		Where("id = ?", id).
		Update("last_used_at", now.UTC()).Error; errUpdate != nil {
		return fmt.Errorf("store: touch api key: %w", errUpdate)
	}
	return nil
}

// CreateAPIKey inserts a key row. The caller supplies the hash and prefix.
func (s *Store) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	if err := s.ready(); err != nil {
		return err
	}
	if errCreate := s.db.WithContext(ctx).Create(key).Error; errCreate != nil {
		return fmt.Errorf("store: create api key: %w", errCreate)
	}
	return nil
}

// ListAPIKeys returns all keys, newest first.
func (s *Store) ListAPIKeys(ctx context.Context) ([]models.APIKey, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var rows []models.APIKey
	if errFind := s.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("store: list api keys: %w", errFind)
	}
	return rows, nil
}

// RevokeAPIKey disables a key. Revoking an already revoked key reports ErrNotFound.
func (s *Store) RevokeAPIKey(ctx context.Context, id uint64, now time.Time) error {
	if err := s.ready(); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).
		Model(&models.APIKey{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Updates(map[string]any{
			"is_active":  false,
			"revoked_at": now.UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("store: revoke api key: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
