// internal/strategy/loader.go
package strategy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Seed is one strategy definition read from the strategies YAML file.
// Seeds are upserted into storage at startup, keyed by (user_id, name).
type Seed struct {
	UserID       int64
	Name         string
	IsActive     bool
	MaxBetAmount decimal.Decimal
	Logic        Logic
}

// Loader reads strategy definitions from a YAML file.
type Loader struct {
	logger *zap.Logger
}

// NewLoader constructs a Loader with the given logger.
func NewLoader(logger *zap.Logger) *Loader {
	return &Loader{logger: logger}
}

type seedFile struct {
	Strategies []struct {
		UserID       int64                  `yaml:"user_id"`
		Name         string                 `yaml:"name"`
		IsActive     *bool                  `yaml:"is_active"`
		MaxBetAmount string                 `yaml:"max_bet_amount"`
		Logic        map[string]interface{} `yaml:"logic"`
	} `yaml:"strategies"`
}

// LoadSeeds reads and validates the strategies file. Invalid entries are
// skipped with a warning; the strategy logic document passes through the
// same closed-union decoding the stored documents use, so an unknown
// condition kind rejects the entry here rather than at trade time.
func (l *Loader) LoadSeeds(path string) ([]Seed, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read strategies file: %w", err)
	}

	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse strategies YAML: %w", err)
	}
	if len(file.Strategies) == 0 {
		return nil, fmt.Errorf("no strategies found in %s", path)
	}

	seeds := make([]Seed, 0, len(file.Strategies))
	for _, raw := range file.Strategies {
		if raw.Name == "" || raw.UserID <= 0 {
			l.logger.Warn("Skipping strategy with missing name or user",
				zap.String("name", raw.Name),
				zap.Int64("user_id", raw.UserID))
			continue
		}

		maxBet, err := decimal.NewFromString(raw.MaxBetAmount)
		if err != nil || !maxBet.IsPositive() {
			l.logger.Warn("Skipping strategy with invalid max_bet_amount",
				zap.String("name", raw.Name),
				zap.String("max_bet_amount", raw.MaxBetAmount))
			continue
		}

		logic, err := decodeYAMLLogic(raw.Logic)
		if err != nil {
			l.logger.Warn("Skipping strategy with invalid logic",
				zap.String("name", raw.Name),
				zap.Error(err))
			continue
		}
		if logic.Buy == nil && len(logic.Sell) == 0 {
			l.logger.Warn("Skipping strategy with empty logic", zap.String("name", raw.Name))
			continue
		}

		active := true
		if raw.IsActive != nil {
			active = *raw.IsActive
		}

		seeds = append(seeds, Seed{
			UserID:       raw.UserID,
			Name:         raw.Name,
			IsActive:     active,
			MaxBetAmount: maxBet,
			Logic:        logic,
		})
	}

	if len(seeds) == 0 {
		return nil, fmt.Errorf("no valid strategies loaded from %s", path)
	}

	l.logger.Info("Loaded strategies", zap.Int("count", len(seeds)))
	return seeds, nil
}

// decodeYAMLLogic funnels the YAML logic document through the JSON
// decoder so both sources share one validation path.
func decodeYAMLLogic(doc map[string]interface{}) (Logic, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return Logic{}, err
	}
	var logic Logic
	if err := json.Unmarshal(data, &logic); err != nil {
		return Logic{}, err
	}
	return logic, nil
}
