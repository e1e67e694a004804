// internal/strategy/logic.go
package strategy

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Metric identifies which pool snapshot figure a bound condition reads.
type Metric string

const (
	MetricMarketCap Metric = "marketCap"
	MetricLiquidity Metric = "liquidity"
	MetricPrice     Metric = "price"
)

// BoundOp compares a metric against one or two bounds.
type BoundOp string

const (
	OpGreaterThan BoundOp = "greaterThan"
	OpLessThan    BoundOp = "lessThan"
	OpBetween     BoundOp = "between"
)

// AgeOp compares token age in whole days.
type AgeOp string

const (
	AgeGreaterThan AgeOp = "greaterThan"
	AgeLessThan    AgeOp = "lessThan"
	AgeEqual       AgeOp = "equal"
)

// ChangeOp compares a signed percentage price change.
type ChangeOp string

const (
	ChangeIncreasedBy ChangeOp = "increasedBy"
	ChangeDecreasedBy ChangeOp = "decreasedBy"
)

// Condition is one buy condition. The set of implementations is closed:
// decoding a document with an unknown condition kind fails instead of
// silently evaluating to false.
type Condition interface {
	Kind() string
}

// SymbolContainsCondition matches a case-insensitive substring of the
// token symbol.
type SymbolContainsCondition struct {
	Value string
}

func (SymbolContainsCondition) Kind() string { return "tokenName" }

// MetricCondition bounds a pool snapshot metric. Value is used for
// greaterThan/lessThan, Min/Max (inclusive) for between.
type MetricCondition struct {
	Metric Metric
	Op     BoundOp
	Value  decimal.Decimal
	Min    decimal.Decimal
	Max    decimal.Decimal
}

func (c MetricCondition) Kind() string { return string(c.Metric) }

// AgeCondition compares whole days since token creation.
type AgeCondition struct {
	Op   AgeOp
	Days int
}

func (AgeCondition) Kind() string { return "age" }

// BlacklistCondition rejects tokens whose symbol carries a currency-style
// marker or matches the configured denylist.
type BlacklistCondition struct {
	RejectCurrencyMarker bool
	RejectDenylisted     bool
}

func (BlacklistCondition) Kind() string { return "blacklist" }

// BuyAction is the single supported buy action: spend a fixed amount of
// TON.
type BuyAction struct {
	Amount decimal.Decimal
}

// BuyRule is an AND-combined condition list with one action.
type BuyRule struct {
	Conditions []Condition
	Action     BuyAction
}

// SellCondition compares the current fiat price against the price of the
// most recent transaction for the token, as a signed percentage change.
type SellCondition struct {
	Op      ChangeOp
	Percent decimal.Decimal
}

// SellAction sells a percentage of current holdings.
type SellAction struct {
	Percent decimal.Decimal
}

// SellRule pairs one condition with one action. Rules are evaluated in
// order, first match wins.
type SellRule struct {
	Condition SellCondition
	Action    SellAction
}

// Logic is a user strategy's declarative rule document.
type Logic struct {
	Buy  *BuyRule
	Sell []SellRule
}

// ---------------------------------------------------------------
// JSON document format (stored in the strategy table)
// ---------------------------------------------------------------

type rawCondition struct {
	Type            string          `json:"type"`
	Operator        string          `json:"operator,omitempty"`
	Value           json.RawMessage `json:"value,omitempty"`
	Days            int             `json:"days,omitempty"`
	CheckDollarSign bool            `json:"checkDollarSign,omitempty"`
	CheckBlacklist  bool            `json:"checkBlacklist,omitempty"`
}

type rawBuyAction struct {
	Type   string          `json:"type"`
	Amount decimal.Decimal `json:"amount"`
}

type rawSellCondition struct {
	Type     string          `json:"type"`
	Operator string          `json:"operator"`
	Value    decimal.Decimal `json:"value"`
}

type rawSellAction struct {
	Type   string          `json:"type"`
	Amount decimal.Decimal `json:"amount"`
}

type rawSellRule struct {
	Condition rawSellCondition `json:"condition"`
	Action    rawSellAction    `json:"action"`
}

type rawBuyRule struct {
	Conditions []rawCondition `json:"conditions"`
	Action     rawBuyAction   `json:"action"`
}

type rawLogic struct {
	Buy  *rawBuyRule   `json:"buy,omitempty"`
	Sell []rawSellRule `json:"sell,omitempty"`
}

func decodeCondition(rc rawCondition) (Condition, error) {
	switch rc.Type {
	case "tokenName":
		if rc.Operator != "contains" {
			return nil, fmt.Errorf("tokenName condition: unsupported operator %q", rc.Operator)
		}
		var value string
		if err := json.Unmarshal(rc.Value, &value); err != nil {
			return nil, fmt.Errorf("tokenName condition: %w", err)
		}
		return SymbolContainsCondition{Value: value}, nil

	case "marketCap", "liquidity", "price":
		cond := MetricCondition{Metric: Metric(rc.Type), Op: BoundOp(rc.Operator)}
		switch cond.Op {
		case OpGreaterThan, OpLessThan:
			if err := json.Unmarshal(rc.Value, &cond.Value); err != nil {
				return nil, fmt.Errorf("%s condition value: %w", rc.Type, err)
			}
		case OpBetween:
			var bounds [2]decimal.Decimal
			if err := json.Unmarshal(rc.Value, &bounds); err != nil {
				return nil, fmt.Errorf("%s condition bounds: %w", rc.Type, err)
			}
			cond.Min, cond.Max = bounds[0], bounds[1]
		default:
			return nil, fmt.Errorf("%s condition: unsupported operator %q", rc.Type, rc.Operator)
		}
		return cond, nil

	case "age":
		op := AgeOp(rc.Operator)
		switch op {
		case AgeGreaterThan, AgeLessThan, AgeEqual:
		default:
			return nil, fmt.Errorf("age condition: unsupported operator %q", rc.Operator)
		}
		return AgeCondition{Op: op, Days: rc.Days}, nil

	case "blacklist":
		return BlacklistCondition{
			RejectCurrencyMarker: rc.CheckDollarSign,
			RejectDenylisted:     rc.CheckBlacklist,
		}, nil

	default:
		return nil, fmt.Errorf("unknown condition kind %q", rc.Type)
	}
}

func encodeCondition(c Condition) (rawCondition, error) {
	switch cond := c.(type) {
	case SymbolContainsCondition:
		value, _ := json.Marshal(cond.Value)
		return rawCondition{Type: "tokenName", Operator: "contains", Value: value}, nil
	case MetricCondition:
		rc := rawCondition{Type: string(cond.Metric), Operator: string(cond.Op)}
		if cond.Op == OpBetween {
			rc.Value, _ = json.Marshal([2]decimal.Decimal{cond.Min, cond.Max})
		} else {
			rc.Value, _ = json.Marshal(cond.Value)
		}
		return rc, nil
	case AgeCondition:
		return rawCondition{Type: "age", Operator: string(cond.Op), Days: cond.Days}, nil
	case BlacklistCondition:
		return rawCondition{
			Type:            "blacklist",
			CheckDollarSign: cond.RejectCurrencyMarker,
			CheckBlacklist:  cond.RejectDenylisted,
		}, nil
	default:
		return rawCondition{}, fmt.Errorf("unknown condition type %T", c)
	}
}

// UnmarshalJSON decodes the stored strategy document, rejecting unknown
// condition and action kinds.
func (l *Logic) UnmarshalJSON(data []byte) error {
	var raw rawLogic
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := Logic{}
	if raw.Buy != nil {
		if raw.Buy.Action.Type != "fixedAmount" {
			return fmt.Errorf("unknown buy action kind %q", raw.Buy.Action.Type)
		}
		rule := BuyRule{Action: BuyAction{Amount: raw.Buy.Action.Amount}}
		for _, rc := range raw.Buy.Conditions {
			cond, err := decodeCondition(rc)
			if err != nil {
				return err
			}
			rule.Conditions = append(rule.Conditions, cond)
		}
		out.Buy = &rule
	}
	for _, rr := range raw.Sell {
		if rr.Condition.Type != "price" {
			return fmt.Errorf("unknown sell condition kind %q", rr.Condition.Type)
		}
		op := ChangeOp(rr.Condition.Operator)
		if op != ChangeIncreasedBy && op != ChangeDecreasedBy {
			return fmt.Errorf("sell condition: unsupported operator %q", rr.Condition.Operator)
		}
		if rr.Action.Type != "percentageOfHoldings" {
			return fmt.Errorf("unknown sell action kind %q", rr.Action.Type)
		}
		out.Sell = append(out.Sell, SellRule{
			Condition: SellCondition{Op: op, Percent: rr.Condition.Value},
			Action:    SellAction{Percent: rr.Action.Amount},
		})
	}

	*l = out
	return nil
}

// MarshalJSON encodes the document in the stored format.
func (l Logic) MarshalJSON() ([]byte, error) {
	raw := rawLogic{}
	if l.Buy != nil {
		rule := rawBuyRule{Action: rawBuyAction{Type: "fixedAmount", Amount: l.Buy.Action.Amount}}
		for _, c := range l.Buy.Conditions {
			rc, err := encodeCondition(c)
			if err != nil {
				return nil, err
			}
			rule.Conditions = append(rule.Conditions, rc)
		}
		raw.Buy = &rule
	}
	for _, sr := range l.Sell {
		raw.Sell = append(raw.Sell, rawSellRule{
			Condition: rawSellCondition{Type: "price", Operator: string(sr.Condition.Op), Value: sr.Condition.Percent},
			Action:    rawSellAction{Type: "percentageOfHoldings", Amount: sr.Action.Percent},
		})
	}
	return json.Marshal(raw)
}
