// internal/storage/models/strategy.go
package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tontrade/jettonbot/internal/strategy"
)

// Strategy is a user's declarative rule set plus exposure cap. The logic
// document is stored as JSONB and decoded through the closed condition
// union, so rows with unknown condition kinds fail to load.
type Strategy struct {
	ID           int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	UserID       int64
	Name         string
	IsActive     bool
	Logic        strategy.Logic
	MaxBetAmount decimal.Decimal // max total TON exposure
}
