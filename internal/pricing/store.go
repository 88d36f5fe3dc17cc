package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/apexgirl/reportanalyzer/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StorePrices upserts price rows and prunes rows not seen in this sync.
func StorePrices(ctx context.Context, db *gorm.DB, rows []models.ModelPrice, syncTime time.Time) error {
	if db == nil {
		return fmt.Errorf("store model prices: nil db")
	}
	if syncTime.IsZero() {
		syncTime = time.Now().UTC()
	}
	syncTime = syncTime.UTC()
	if len(rows) == 0 {
		return nil
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range rows {
			rows[i].LastSeenAt = syncTime
			rows[i].UpdatedAt = syncTime
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "provider_name"}, {Name: "model_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"input_price",
				"output_price",
				"last_seen_at",
				"updated_at",
			}),
		}).CreateInBatches(&rows, 200).Error; err != nil {
			return fmt.Errorf("store model prices: upsert: %w", err)
		}
		if err := tx.Where("last_seen_at < ?", syncTime).Delete(&models.ModelPrice{}).Error; err != nil {
			return fmt.Errorf("store model prices: prune: %w", err)
		}
		return nil
	})
}

// Lookup returns the stored price row for provider and model.
func Lookup(ctx context.Context, db *gorm.DB, provider, model string) (*models.ModelPrice, error) {
	if db == nil {
		return nil, fmt.Errorf("lookup model price: nil db")
	}
	var row models.ModelPrice
	errFind := db.WithContext(ctx).
		Where("provider_name = ? AND model_id = ?", strings.ToLower(strings.TrimSpace(provider)), strings.TrimSpace(model)).
		Take(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup model price: %w", errFind)
	}
	return &row, nil
}

// Source resolves prices for one configured provider from the database.
type Source struct {
	db       *gorm.DB
	provider string
}

// NewSource builds a Source. provider may be an analysis provider name.
func NewSource(db *gorm.DB, provider string) *Source {
	if db == nil {
		return nil
	}
	return &Source{db: db, provider: ProviderKey(provider)}
}

// ProviderKey maps analysis provider names onto models.dev provider keys.
func ProviderKey(provider string) string {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "gemini" {
		return "google"
	}
	return provider
}

// Prices returns the synced per-million prices for model. ok is false when
// the model has no synced input or output price.
func (s *Source) Prices(ctx context.Context, model string) (float64, float64, bool) {
	if s == nil {
		return 0, 0, false
	}
	row, err := Lookup(ctx, s.db, s.provider, model)
	if err != nil || row == nil || row.InputPrice == nil || row.OutputPrice == nil {
		return 0, 0, false
	}
	return *row.InputPrice, *row.OutputPrice, true
}
