// internal/tonapi/types.go
package tonapi

import (
	"github.com/shopspring/decimal"
)

// Account is the tonapi view of an on-chain account.
type Account struct {
	Address string `json:"address"`
	Balance int64  `json:"balance"` // nanotons
	Status  string `json:"status"`
}

// JettonInfo describes a jetton master contract.
type JettonInfo struct {
	Mintable    bool           `json:"mintable"`
	TotalSupply string         `json:"total_supply"` // raw units
	Holders     int64          `json:"holders_count"`
	Metadata    JettonMetadata `json:"metadata"`
}

// JettonMetadata is the content cell of a jetton master. Decimals comes
// back as a string from tonapi.
type JettonMetadata struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals string `json:"decimals"`
	Image    string `json:"image"`
}

// JettonBalance is one row of an account's jetton wallet listing.
type JettonBalance struct {
	Balance string `json:"balance"` // raw units
}

// BlockchainTransaction is a raw account transaction. Only the fields
// the bot reads are mapped.
type BlockchainTransaction struct {
	Hash  string `json:"hash"`
	UTime int64  `json:"utime"`
}

// Event is one account event with its decoded actions.
type Event struct {
	EventID   string   `json:"event_id"`
	Timestamp int64    `json:"timestamp"`
	Actions   []Action `json:"actions"`
}

// Action statuses and types as tonapi reports them.
const (
	ActionStatusOK = "ok"

	ActionJettonSwap        = "JettonSwap"
	ActionJettonMint        = "JettonMint"
	ActionSmartContractExec = "SmartContractExec"

	dedustSwapOperation   = "DedustSwapExternal"
	dedustPayoutOperation = "DedustPayoutFromPool"
)

// Action is a decoded account event action. Exactly one of the typed
// payloads is set, matching Type.
type Action struct {
	Type              string                   `json:"type"`
	Status            string                   `json:"status"`
	JettonSwap        *JettonSwapAction        `json:"JettonSwap,omitempty"`
	SmartContractExec *SmartContractExecAction `json:"SmartContractExec,omitempty"`
}

// JettonSwapAction carries the swap legs. Jetton amounts are raw-unit
// strings; TON amounts are nanoton integers. A TON-to-jetton swap has
// ton_in/amount_out set, a jetton-to-TON swap has amount_in/ton_out.
type JettonSwapAction struct {
	Dex             string     `json:"dex"`
	AmountIn        string     `json:"amount_in"`
	AmountOut       string     `json:"amount_out"`
	TonIn           int64      `json:"ton_in"`
	TonOut          int64      `json:"ton_out"`
	JettonMasterIn  *JettonRef `json:"jetton_master_in,omitempty"`
	JettonMasterOut *JettonRef `json:"jetton_master_out,omitempty"`
}

// JettonRef identifies a jetton master inside an action.
type JettonRef struct {
	Address string `json:"address"`
	Symbol  string `json:"symbol"`
}

// SmartContractExecAction is a raw contract call. DeDust swaps surface
// as a pair of these rather than a JettonSwap.
type SmartContractExecAction struct {
	Operation string `json:"operation"`
	Payload   string `json:"payload"`
}

// TradeSide is the direction of a parsed pool trade.
type TradeSide string

const (
	TradeBuy  TradeSide = "buy"
	TradeSell TradeSide = "sell"
)

// Trade is one swap against a pool, amounts in human units.
type Trade struct {
	Side        TradeSide
	TokenAmount decimal.Decimal
	TonAmount   decimal.Decimal
}
