// internal/tonapi/trades.go
package tonapi

import (
	"context"
	"regexp"

	"github.com/shopspring/decimal"
)

const recentTradesLimit = 100

var dedustAmountRe = regexp.MustCompile(`Amount\s*=\s*(\d+)`)

// RecentTrades reads a pool's recent account events and extracts the
// swaps against it, in human units. Mint events are skipped. StonFi
// swaps surface as JettonSwap actions; DeDust swaps as a
// SmartContractExec swap/payout pair whose amounts live in the payload.
func (c *Client) RecentTrades(ctx context.Context, poolAddress string, decimals int32) ([]Trade, error) {
	events, err := c.AccountEvents(ctx, poolAddress, recentTradesLimit)
	if err != nil {
		return nil, err
	}
	return ParseTrades(events, decimals), nil
}

// ParseTrades extracts pool trades from account events.
func ParseTrades(events []Event, decimals int32) []Trade {
	var trades []Trade
	for _, event := range events {
		if hasAction(event, ActionJettonMint) {
			continue
		}
		if trade := stonFiTrade(event, decimals); trade != nil {
			trades = append(trades, *trade)
		}
		if trade := dedustTrade(event, decimals); trade != nil {
			trades = append(trades, *trade)
		}
	}
	return trades
}

func hasAction(event Event, actionType string) bool {
	for _, action := range event.Actions {
		if action.Type == actionType {
			return true
		}
	}
	return false
}

func stonFiTrade(event Event, decimals int32) *Trade {
	for _, action := range event.Actions {
		if action.Type != ActionJettonSwap || action.Status != ActionStatusOK {
			continue
		}
		swap := action.JettonSwap
		if swap == nil || swap.Dex != "stonfi" {
			continue
		}

		// amount_in set means the pool received jettons: a sell.
		if swap.AmountIn != "" {
			amountIn, err := decimal.NewFromString(swap.AmountIn)
			if err != nil {
				return nil
			}
			return &Trade{
				Side:        TradeSell,
				TokenAmount: amountIn.Shift(-decimals),
				TonAmount:   decimal.NewFromInt(swap.TonOut).Div(nanoton),
			}
		}
		if swap.AmountOut != "" {
			amountOut, err := decimal.NewFromString(swap.AmountOut)
			if err != nil {
				return nil
			}
			return &Trade{
				Side:        TradeBuy,
				TokenAmount: amountOut.Shift(-decimals),
				TonAmount:   decimal.NewFromInt(swap.TonIn).Div(nanoton),
			}
		}
		return nil
	}
	return nil
}

func dedustTrade(event Event, decimals int32) *Trade {
	var swapAction, payoutAction *SmartContractExecAction
	swapOK := false
	for i := range event.Actions {
		action := event.Actions[i]
		if action.Type != ActionSmartContractExec || action.SmartContractExec == nil {
			continue
		}
		switch action.SmartContractExec.Operation {
		case dedustSwapOperation:
			swapAction = action.SmartContractExec
			swapOK = action.Status == ActionStatusOK
		case dedustPayoutOperation:
			payoutAction = action.SmartContractExec
		}
	}
	if swapAction == nil || payoutAction == nil || !swapOK {
		return nil
	}

	swapAmount := parseDedustAmount(swapAction.Payload)
	payoutAmount := parseDedustAmount(payoutAction.Payload)

	// The smaller leg is denominated in nanotons: more raw token units
	// than nanotons move in either direction for the pools we track.
	if swapAmount.LessThan(payoutAmount) {
		return &Trade{
			Side:        TradeBuy,
			TokenAmount: payoutAmount.Shift(-decimals),
			TonAmount:   swapAmount.Div(nanoton),
		}
	}
	return &Trade{
		Side:        TradeSell,
		TokenAmount: swapAmount.Shift(-decimals),
		TonAmount:   payoutAmount.Div(nanoton),
	}
}

func parseDedustAmount(payload string) decimal.Decimal {
	match := dedustAmountRe.FindStringSubmatch(payload)
	if match == nil {
		return decimal.Zero
	}
	amount, err := decimal.NewFromString(match[1])
	if err != nil {
		return decimal.Zero
	}
	return amount
}
