// Package pricing keeps per-model token prices synced from models.dev.
package pricing

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/apexgirl/reportanalyzer/internal/models"
)

type providerPayload struct {
	ID     string                     `json:"id"`
	Models map[string]json.RawMessage `json:"models"`
}

type modelPayload struct {
	ID   string     `json:"id"`
	Cost *modelCost `json:"cost"`
}

type modelCost struct {
	Input  *float64 `json:"input"`
	Output *float64 `json:"output"`
}

type priceKey struct {
	provider string
	model    string
}

// ParsePayload converts the models.dev payload into price rows keyed by
// provider key and model id. Models without any price are skipped.
func ParsePayload(data []byte) ([]models.ModelPrice, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("parse pricing payload: empty payload")
	}

	var providers map[string]json.RawMessage
	if err := json.Unmarshal(data, &providers); err != nil {
		return nil, fmt.Errorf("parse pricing payload: decode providers: %w", err)
	}

	byKey := make(map[priceKey]models.ModelPrice)
	for providerKey, providerRaw := range providers {
		if len(providerRaw) == 0 {
			continue
		}
		var provider providerPayload
		if err := json.Unmarshal(providerRaw, &provider); err != nil {
			return nil, fmt.Errorf("parse pricing payload: decode provider %s: %w", providerKey, err)
		}
		providerID := strings.ToLower(strings.TrimSpace(providerKey))
		if providerID == "" {
			providerID = strings.ToLower(strings.TrimSpace(provider.ID))
		}
		if providerID == "" {
			continue
		}

		for modelKey, modelRaw := range provider.Models {
			if len(modelRaw) == 0 {
				continue
			}
			var model modelPayload
			if err := json.Unmarshal(modelRaw, &model); err != nil {
				return nil, fmt.Errorf("parse pricing payload: decode model %s: %w", modelKey, err)
			}
			modelID := strings.TrimSpace(modelKey)
			if modelID == "" {
				modelID = strings.TrimSpace(model.ID)
			}
			if modelID == "" || model.Cost == nil {
				continue
			}
			if model.Cost.Input == nil && model.Cost.Output == nil {
				continue
			}

			key := priceKey{provider: providerID, model: modelID}
			row := models.ModelPrice{
				ProviderName: providerID,
				ModelID:      modelID,
				InputPrice:   model.Cost.Input,
				OutputPrice:  model.Cost.Output,
			}
			if existing, ok := byKey[key]; ok {
				row = mergePrice(existing, row)
			}
			byKey[key] = row
		}
	}

	if len(byKey) == 0 {
		return nil, nil
	}

	keys := make([]priceKey, 0, len(byKey))
	for key := range byKey {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].provider == keys[j].provider {
			return keys[i].model < keys[j].model
		}
		return keys[i].provider < keys[j].provider
	})

	rows := make([]models.ModelPrice, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, byKey[key])
	}
	return rows, nil
}

func mergePrice(base, incoming models.ModelPrice) models.ModelPrice {
	if base.InputPrice == nil {
		base.InputPrice = incoming.InputPrice
	}
	if base.OutputPrice == nil {
		base.OutputPrice = incoming.OutputPrice
	}
	return base
}
