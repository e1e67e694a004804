// internal/strategy/evaluate.go
package strategy

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PoolSnapshot is the slice of pool state the evaluator reads.
type PoolSnapshot struct {
	Dex          string
	Address      string
	PriceUSD     decimal.Decimal
	LiquidityUSD decimal.Decimal
	MarketCapUSD decimal.Decimal
}

// TokenSnapshot is the slice of token state the evaluator reads.
type TokenSnapshot struct {
	Symbol    string
	CreatedAt time.Time
	Pools     []PoolSnapshot
}

// ActionType is what the evaluator decided to do.
type ActionType int

const (
	ActionNone ActionType = iota
	ActionBuy
	ActionSell
)

// Decision is the evaluator output. For a buy, Amount is TON to spend;
// for a sell, Amount is tokens to sell.
type Decision struct {
	Type   ActionType
	Amount decimal.Decimal
}

// BestPool returns the pool with the highest fiat-denominated liquidity,
// or nil when the token has no pools.
func BestPool(pools []PoolSnapshot) *PoolSnapshot {
	if len(pools) == 0 {
		return nil
	}
	best := &pools[0]
	for i := range pools[1:] {
		if pools[i+1].LiquidityUSD.GreaterThan(best.LiquidityUSD) {
			best = &pools[i+1]
		}
	}
	return best
}

// Evaluator turns (token, strategy logic, balance) into at most one
// buy/sell decision. Evaluation is read-only.
type Evaluator struct {
	denylist []string
	logger   *zap.Logger
	now      func() time.Time
}

// NewEvaluator constructs an Evaluator. An empty denylist falls back to
// the built-in symbol blacklist.
func NewEvaluator(denylist []string, logger *zap.Logger) *Evaluator {
	if len(denylist) == 0 {
		denylist = DefaultSymbolBlacklist
	}
	lowered := make([]string, len(denylist))
	for i, word := range denylist {
		lowered[i] = strings.ToLower(word)
	}
	return &Evaluator{denylist: lowered, logger: logger, now: time.Now}
}

// Evaluate applies the strategy rules to the token snapshot.
//
// A positive balance enables only the sell rules (first match wins); a
// zero balance enables only the buy rule (all conditions AND-ed). A
// strategy therefore holds a single position per (user, token).
// lastTradePrice is the fiat price of the most recent transaction for
// this token; a zero value means no prior trade and fails every sell
// condition.
func (e *Evaluator) Evaluate(tok TokenSnapshot, logic Logic, balance, lastTradePrice decimal.Decimal) Decision {
	if balance.IsPositive() && len(logic.Sell) > 0 {
		for _, rule := range logic.Sell {
			if e.sellConditionMet(tok, rule.Condition, lastTradePrice) {
				amount := balance.Mul(rule.Action.Percent).Div(decimal.NewFromInt(100))
				return Decision{Type: ActionSell, Amount: amount}
			}
		}
		return Decision{Type: ActionNone}
	}

	if balance.IsZero() && logic.Buy != nil {
		for _, cond := range logic.Buy.Conditions {
			if !e.buyConditionMet(tok, cond) {
				return Decision{Type: ActionNone}
			}
		}
		return Decision{Type: ActionBuy, Amount: logic.Buy.Action.Amount}
	}

	return Decision{Type: ActionNone}
}

func (e *Evaluator) buyConditionMet(tok TokenSnapshot, cond Condition) bool {
	switch c := cond.(type) {
	case SymbolContainsCondition:
		return strings.Contains(strings.ToLower(tok.Symbol), strings.ToLower(c.Value))
	case MetricCondition:
		return e.metricConditionMet(tok, c)
	case AgeCondition:
		return e.ageConditionMet(tok, c)
	case BlacklistCondition:
		return e.blacklistConditionMet(tok, c)
	default:
		// Unknown kinds are rejected when the document is decoded;
		// reaching this means the closed set grew without updating the
		// evaluator.
		e.logger.Error("unhandled condition kind", zap.String("kind", cond.Kind()))
		return false
	}
}

func (e *Evaluator) metricConditionMet(tok TokenSnapshot, c MetricCondition) bool {
	best := BestPool(tok.Pools)
	if best == nil {
		return false
	}

	var value decimal.Decimal
	switch c.Metric {
	case MetricMarketCap:
		value = best.MarketCapUSD
	case MetricLiquidity:
		value = best.LiquidityUSD
	case MetricPrice:
		value = best.PriceUSD
	default:
		return false
	}

	switch c.Op {
	case OpGreaterThan:
		return value.GreaterThan(c.Value)
	case OpLessThan:
		return value.LessThan(c.Value)
	case OpBetween:
		return value.GreaterThanOrEqual(c.Min) && value.LessThanOrEqual(c.Max)
	default:
		return false
	}
}

func (e *Evaluator) ageConditionMet(tok TokenSnapshot, c AgeCondition) bool {
	if tok.CreatedAt.IsZero() {
		return false
	}

	now := e.now()
	if tok.CreatedAt.After(now) {
		e.logger.Error("token has a future creation date",
			zap.String("symbol", tok.Symbol),
			zap.Time("created_at", tok.CreatedAt))
		return false
	}

	ageDays := int(now.Sub(tok.CreatedAt).Hours() / 24)
	switch c.Op {
	case AgeGreaterThan:
		return ageDays > c.Days
	case AgeLessThan:
		return ageDays < c.Days
	case AgeEqual:
		return ageDays == c.Days
	default:
		return false
	}
}

func (e *Evaluator) blacklistConditionMet(tok TokenSnapshot, c BlacklistCondition) bool {
	if c.RejectCurrencyMarker && strings.Contains(tok.Symbol, "$") {
		return false
	}
	if c.RejectDenylisted {
		symbol := strings.ToLower(tok.Symbol)
		for _, word := range e.denylist {
			if strings.Contains(symbol, word) {
				return false
			}
		}
	}
	return true
}

func (e *Evaluator) sellConditionMet(tok TokenSnapshot, c SellCondition, lastTradePrice decimal.Decimal) bool {
	best := BestPool(tok.Pools)
	if best == nil || best.PriceUSD.IsZero() {
		return false
	}
	if !lastTradePrice.IsPositive() {
		return false
	}

	change := best.PriceUSD.Sub(lastTradePrice).
		Div(lastTradePrice).
		Mul(decimal.NewFromInt(100))

	if c.Op == ChangeIncreasedBy {
		return change.GreaterThanOrEqual(c.Percent)
	}
	return change.LessThanOrEqual(c.Percent.Neg())
}
