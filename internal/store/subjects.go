package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/apexgirl/reportanalyzer/internal/models"
	"gorm.io/gorm"
)

// ActiveUser loads a visible user with its tier.
func (s *Store) ActiveUser(ctx context.Context, id string) (*models.User, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}
	var user models.User
	if errFind := s.db.WithContext(ctx).
		Scopes(Visible("users")).
		Preload("Tier").
		Where("users.id = ?", id).
		Take(&user).Error; errFind != nil {
		return nil, notFound(errFind)
	}
	return &user, nil
}

// ActiveGroup loads a visible group with its tier, if any.
func (s *Store) ActiveGroup(ctx context.Context, id string) (*models.Group, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}
	var group models.Group
	if errFind := s.db.WithContext(ctx).
		Scopes(Visible("communities")).
		Preload("Tier").
		Where("communities.id = ?", id).
		Take(&group).Error; errFind != nil {
		return nil, notFound(errFind)
	}
	return &group, nil
}

// CreateUser inserts a user on an existing tier.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if err := s.ready(); err != nil {
		return err
	}
	if user == nil || strings.TrimSpace(user.DiscordID) == "" {
		return fmt.Errorf("store: create user: missing discord id")
	}
	if _, errTier := s.tierByID(ctx, user.TierID); errTier != nil {
		return fmt.Errorf("store: create user: tier %d: %w", user.TierID, errTier)
	}
	if errCreate := s.db.WithContext(ctx).Create(user).Error; errCreate != nil {
		return fmt.Errorf("store: create user: %w", errCreate)
	}
	return nil
}

// CreateGroup inserts a group, optionally on a tier.
func (s *Store) CreateGroup(ctx context.Context, group *models.Group) error {
	if err := s.ready(); err != nil {
		return err
	}
	if group == nil || strings.TrimSpace(group.ExternalID) == "" {
		return fmt.Errorf("store: create group: missing external id")
	}
	if group.TierID != nil {
		if _, errTier := s.tierByID(ctx, *group.TierID); errTier != nil {
			return fmt.Errorf("store: create group: tier %d: %w", *group.TierID, errTier)
		}
	}
	if errCreate := s.db.WithContext(ctx).Create(group).Error; errCreate != nil {
		return fmt.Errorf("store: create group: %w", errCreate)
	}
	return nil
}

// SoftDeleteUser hides a user from every read path.
func (s *Store) SoftDeleteUser(ctx context.Context, id string, now time.Time) error {
	return s.softDelete(ctx, &models.User{}, "users", id, now)
}

// SoftDeleteGroup hides a group from every read path.
func (s *Store) SoftDeleteGroup(ctx context.Context, id string, now time.Time) error {
	return s.softDelete(ctx, &models.Group{}, "communities", id, now)
}

// SoftDeleteSubmission hides a submission and its result.
func (s *Store) SoftDeleteSubmission(ctx context.Context, id string, now time.Time) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Submission{}).
			Scopes(Visible("submissions")).
			Where("id = ?", id).
			Update("deleted_at", now.UTC())
		if res.Error != nil {
			return fmt.Errorf("store: delete submission: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if errResult := tx.Model(&models.Result{}).
			Scopes(Visible("results")).
			Where("submission_id = ?", id).
			Update("deleted_at", now.UTC()).Error; errResult != nil {
			return fmt.Errorf("store: delete result: %w", errResult)
		}
		return nil
	})
}

func (s *Store) softDelete(ctx context.Context, model any, table, id string, now time.Time) error {
	if err := s.ready(); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).
		Model(model).
		Scopes(Visible(table)).
		Where("id = ?", strings.TrimSpace(id)).
		Update("deleted_at", now.UTC())
	if res.Error != nil {
		return fmt.Errorf("store: delete %s: %w", table, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
