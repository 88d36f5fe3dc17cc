package store

import (
	"context"
	"fmt"

	"github.com/apexgirl/reportanalyzer/internal/models"
)

// TierLimit returns the limit row of a tier for one scope, or ErrNotFound.
func (s *Store) TierLimit(ctx context.Context, tierID uint64, scope models.Scope) (*models.TierLimit, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var limit models.TierLimit
	if errFind := s.db.WithContext(ctx).
		Where("tier_id = ? AND scope = ?", tierID, scope).
		Take(&limit).Error; errFind != nil {
		return nil, notFound(errFind)
	}
	return &limit, nil
}

// ListTiers returns all tiers with their limits in display order.
func (s *Store) ListTiers(ctx context.Context) ([]models.Tier, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var tiers []models.Tier
	if errFind := s.db.WithContext(ctx).
		Preload("Limits").
		Order("sort_order ASC, id ASC").
		Find(&tiers).Error; errFind != nil {
		return nil, fmt.Errorf("store: list tiers: %w", errFind)
	}
	return tiers, nil
}

// TierByName looks up a tier by its unique name.
func (s *Store) TierByName(ctx context.Context, name string) (*models.Tier, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var tier models.Tier
	if errFind := s.db.WithContext(ctx).Where("name = ?", name).Take(&tier).Error; errFind != nil {
		return nil, notFound(errFind)
	}
	return &tier, nil
}

func (s *Store) tierByID(ctx context.Context, id uint64) (*models.Tier, error) {
	var tier models.Tier
	if errFind := s.db.WithContext(ctx).Where("id = ?", id).Take(&tier).Error; errFind != nil {
		return nil, notFound(errFind)
	}
	return &tier, nil
}
