package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/apexgirl/reportanalyzer/internal/models"
	"github.com/apexgirl/reportanalyzer/internal/security"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DefaultTier describes a seeded tier and its limits.
type DefaultTier struct {
	Name        string
	Description string
	UserDaily   int
	UserMonthly int
	GroupDaily  int
	GroupMonth  int
}

// DefaultTierName is assigned to users registered without a tier.
const DefaultTierName = "Free"

// DefaultTiers are created when the tiers table is empty.
var DefaultTiers = []DefaultTier{
	{Name: "Free", Description: "Free tier with basic limits", UserDaily: 10, UserMonthly: 100, GroupDaily: 50, GroupMonth: 500},
	{Name: "Plus", Description: "Plus tier with increased limits", UserDaily: 20, UserMonthly: 300, GroupDaily: 150, GroupMonth: 1000},
	{Name: "Pro", Description: "Pro tier with high limits", UserDaily: 100, UserMonthly: 800, GroupDaily: 500, GroupMonth: 5000},
}

// EnsureDefaultTiers seeds the default tiers when no tier exists.
func EnsureDefaultTiers(conn *gorm.DB) error {
	var count int64
	if errCount := conn.Model(&models.Tier{}).Count(&count).Error; errCount != nil {
		return fmt.Errorf("db: count tiers: %w", errCount)
	}
	if count > 0 {
		return nil
	}

	return conn.Transaction(func(tx *gorm.DB) error {
		for i, def := range DefaultTiers {
			tier := models.Tier{
				Name:        def.Name,
				Description: def.Description,
				SortOrder:   i,
				Limits: []models.TierLimit{
					{Scope: models.ScopeIndividual, DailyRequestLimit: def.UserDaily, MonthlyRequestLimit: def.UserMonthly},
					{Scope: models.ScopeGroup, DailyRequestLimit: def.GroupDaily, MonthlyRequestLimit: def.GroupMonth},
				},
			}
			if errCreate := tx.Create(&tier).Error; errCreate != nil {
				return fmt.Errorf("db: seed tier %s: %w", def.Name, errCreate)
			}
		}
		log.Infof("seeded %d default tiers", len(DefaultTiers))
		return nil
	})
}

// EnsureDevAPIKey stores a known plaintext key for local development.
func EnsureDevAPIKey(conn *gorm.DB, plaintext string) error {
	plaintext = strings.TrimSpace(plaintext)
	if plaintext == "" {
		return nil
	}
	prefix := security.APIKeyLookupPrefix(plaintext)

	var existing []models.APIKey
	if errFind := conn.Where("prefix = ?", prefix).Find(&existing).Error; errFind != nil {
		return fmt.Errorf("db: find dev api key: %w", errFind)
	}
	for _, row := range existing {
		if errCheck := security.CheckAPIKey(row.KeyHash, plaintext); errCheck == nil {
			return nil
		} else if !errors.Is(errCheck, security.ErrInvalidAPIKey) {
			return errCheck
		}
	}

	hash, errHash := security.HashAPIKey(plaintext)
	if errHash != nil {
		return errHash
	}
	row := models.APIKey{
		Name:     "Development",
		Prefix:   prefix,
		KeyHash:  hash,
		Scope:    models.APIKeyScopeAdmin,
		IsActive: true,
	}
	if errCreate := conn.Create(&row).Error; errCreate != nil {
		return fmt.Errorf("db: create dev api key: %w", errCreate)
	}
	log.Warn("development api key seeded; do not enable in production")
	return nil
}
