// internal/strategy/blacklist.go
package strategy

// DefaultSymbolBlacklist rejects symbols that imitate stablecoins or
// well-known assets. Matching is case-insensitive substring.
var DefaultSymbolBlacklist = []string{
	"usdt",
	"usdc",
	"dai",
	"tusd",
	"usde",
	"wton",
	"ston",
	"tether",
	"stable",
	"bitcoin",
	"btc",
	"eth",
	"airdrop",
	"claim",
	"reward",
	"bonus",
}
