// internal/storage/postgres/postgres.go
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tontrade/jettonbot/internal/storage"
	"github.com/tontrade/jettonbot/internal/storage/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type postgresStorage struct {
	pool   *pgxpool.Pool
	dsn    string
	logger *zap.Logger
}

// NewStorage connects to Postgres and returns a storage.Storage backed
// by a pgx connection pool.
func NewStorage(ctx context.Context, dsn string, logger *zap.Logger) (storage.Storage, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &postgresStorage{pool: pool, dsn: dsn, logger: logger}, nil
}

func (p *postgresStorage) RunMigrations(_ context.Context) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, p.dsn)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		_, _ = m.Close()
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (p *postgresStorage) Close() {
	p.pool.Close()
}

// ---------------------------------------------------------------
// Tokens
// ---------------------------------------------------------------

func (p *postgresStorage) CreateToken(ctx context.Context, token *models.Token) error {
	row := p.pool.QueryRow(ctx, `
		INSERT INTO token (created_at, raw_address, friendly_address, symbol, name, decimals, total_supply)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		token.CreatedAt, token.RawAddress, token.FriendlyAddress,
		token.Symbol, token.Name, token.Decimals, token.TotalSupply)
	if err := row.Scan(&token.ID); err != nil {
		return fmt.Errorf("failed to insert token: %w", err)
	}
	return nil
}

const tokenColumns = `id, created_at, raw_address, friendly_address, symbol, name, decimals, total_supply`

func scanToken(row pgx.Row) (*models.Token, error) {
	var t models.Token
	err := row.Scan(&t.ID, &t.CreatedAt, &t.RawAddress, &t.FriendlyAddress,
		&t.Symbol, &t.Name, &t.Decimals, &t.TotalSupply)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (p *postgresStorage) TokenByID(ctx context.Context, id int64) (*models.Token, error) {
	token, err := scanToken(p.pool.QueryRow(ctx,
		`SELECT `+tokenColumns+` FROM token WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := p.attachPools(ctx, []*models.Token{token}); err != nil {
		return nil, err
	}
	return token, nil
}

func (p *postgresStorage) ListTokens(ctx context.Context) ([]*models.Token, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+tokenColumns+` FROM token ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*models.Token
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := p.attachPools(ctx, tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

func (p *postgresStorage) attachPools(ctx context.Context, tokens []*models.Token) error {
	if len(tokens) == 0 {
		return nil
	}
	byID := make(map[int64]*models.Token, len(tokens))
	ids := make([]int64, 0, len(tokens))
	for _, t := range tokens {
		byID[t.ID] = t
		ids = append(ids, t.ID)
	}

	rows, err := p.pool.Query(ctx, `
		SELECT id, token_id, dex, pool_address, native_liquidity, asset_liquidity,
		       total_liquidity_in_usd, price_in_ton, price_in_usd, market_cap_in_usd, updated_at
		FROM pool WHERE token_id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("failed to load pools: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var pool models.Pool
		if err := rows.Scan(&pool.ID, &pool.TokenID, &pool.Dex, &pool.PoolAddress,
			&pool.NativeLiquidity, &pool.AssetLiquidity, &pool.TotalLiquidityUSD,
			&pool.PriceTon, &pool.PriceUSD, &pool.MarketCapUSD, &pool.UpdatedAt); err != nil {
			return err
		}
		if token, ok := byID[pool.TokenID]; ok {
			token.Pools = append(token.Pools, pool)
		}
	}
	return rows.Err()
}

// ---------------------------------------------------------------
// Pools
// ---------------------------------------------------------------

func (p *postgresStorage) UpsertPool(ctx context.Context, pool *models.Pool) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO pool (token_id, dex, pool_address, native_liquidity, asset_liquidity,
		                  total_liquidity_in_usd, price_in_ton, price_in_usd, market_cap_in_usd, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (token_id, dex) DO UPDATE SET
			pool_address = EXCLUDED.pool_address,
			native_liquidity = EXCLUDED.native_liquidity,
			asset_liquidity = EXCLUDED.asset_liquidity,
			total_liquidity_in_usd = EXCLUDED.total_liquidity_in_usd,
			price_in_ton = EXCLUDED.price_in_ton,
			price_in_usd = EXCLUDED.price_in_usd,
			market_cap_in_usd = EXCLUDED.market_cap_in_usd,
			updated_at = now()`,
		pool.TokenID, pool.Dex, pool.PoolAddress, pool.NativeLiquidity, pool.AssetLiquidity,
		pool.TotalLiquidityUSD, pool.PriceTon, pool.PriceUSD, pool.MarketCapUSD)
	if err != nil {
		return fmt.Errorf("failed to upsert pool: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------
// Strategies
// ---------------------------------------------------------------

func (p *postgresStorage) UpsertStrategy(ctx context.Context, s *models.Strategy) error {
	logicJSON, err := json.Marshal(s.Logic)
	if err != nil {
		return fmt.Errorf("failed to encode strategy logic: %w", err)
	}
	row := p.pool.QueryRow(ctx, `
		INSERT INTO strategy (user_id, name, is_active, strategy, max_bet_amount)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, name) DO UPDATE SET
			is_active = EXCLUDED.is_active,
			strategy = EXCLUDED.strategy,
			max_bet_amount = EXCLUDED.max_bet_amount,
			updated_at = now()
		RETURNING id`,
		s.UserID, s.Name, s.IsActive, logicJSON, s.MaxBetAmount)
	if err := row.Scan(&s.ID); err != nil {
		return fmt.Errorf("failed to upsert strategy: %w", err)
	}
	return nil
}

func scanStrategy(row pgx.Row) (*models.Strategy, error) {
	var s models.Strategy
	var logicJSON []byte
	err := row.Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt, &s.UserID, &s.Name,
		&s.IsActive, &logicJSON, &s.MaxBetAmount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(logicJSON, &s.Logic); err != nil {
		return nil, fmt.Errorf("strategy %d has invalid logic document: %w", s.ID, err)
	}
	return &s, nil
}

const strategyColumns = `id, created_at, updated_at, user_id, name, is_active, strategy, max_bet_amount`

func (p *postgresStorage) StrategyByID(ctx context.Context, id int64) (*models.Strategy, error) {
	return scanStrategy(p.pool.QueryRow(ctx,
		`SELECT `+strategyColumns+` FROM strategy WHERE id = $1`, id))
}

func (p *postgresStorage) ListActiveStrategies(ctx context.Context) ([]*models.Strategy, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+strategyColumns+` FROM strategy WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list strategies: %w", err)
	}
	defer rows.Close()

	var strategies []*models.Strategy
	for rows.Next() {
		s, err := scanStrategy(rows)
		if err != nil {
			return nil, err
		}
		strategies = append(strategies, s)
	}
	return strategies, rows.Err()
}

// ---------------------------------------------------------------
// Transactions
// ---------------------------------------------------------------

func (p *postgresStorage) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	row := p.pool.QueryRow(ctx, `
		INSERT INTO transaction (token_id, strategy_id, user_id, type, amount_token,
		                         amount_ton, price_in_usd, dex, status, onchain_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''))
		RETURNING id, created_at`,
		tx.TokenID, tx.StrategyID, tx.UserID, tx.Type, tx.AmountToken,
		tx.AmountTon, tx.PriceUSD, tx.Dex, tx.Status, tx.OnchainID)
	if err := row.Scan(&tx.ID, &tx.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func (p *postgresStorage) PendingTransactions(ctx context.Context) ([]*models.Transaction, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, created_at, token_id, strategy_id, user_id, type, amount_token,
		       amount_ton, price_in_usd, dex, status, COALESCE(onchain_id, '')
		FROM transaction WHERE status = 'pending' ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending transactions: %w", err)
	}
	defer rows.Close()

	var txs []*models.Transaction
	for rows.Next() {
		var tx models.Transaction
		if err := rows.Scan(&tx.ID, &tx.CreatedAt, &tx.TokenID, &tx.StrategyID, &tx.UserID,
			&tx.Type, &tx.AmountToken, &tx.AmountTon, &tx.PriceUSD, &tx.Dex,
			&tx.Status, &tx.OnchainID); err != nil {
			return nil, err
		}
		txs = append(txs, &tx)
	}
	return txs, rows.Err()
}

func (p *postgresStorage) HasPendingTransaction(ctx context.Context, userID, tokenID, strategyID int64) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM transaction
			WHERE user_id = $1 AND token_id = $2 AND strategy_id = $3 AND status = 'pending'
		)`, userID, tokenID, strategyID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check pending transactions: %w", err)
	}
	return exists, nil
}

func (p *postgresStorage) LatestTransactionPrice(ctx context.Context, tokenID int64) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := p.pool.QueryRow(ctx, `
		SELECT price_in_usd FROM transaction
		WHERE token_id = $1 ORDER BY created_at DESC LIMIT 1`, tokenID).Scan(&price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, storage.ErrNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to fetch latest transaction price: %w", err)
	}
	return price, nil
}

func (p *postgresStorage) NetInvestment(ctx context.Context, strategyID int64) (decimal.Decimal, error) {
	var net decimal.Decimal
	err := p.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN type = 'buy' THEN amount_ton ELSE -amount_ton END), 0)
		FROM transaction WHERE strategy_id = $1 AND status = 'success'`, strategyID).Scan(&net)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to compute net investment: %w", err)
	}
	return net, nil
}

func (p *postgresStorage) PendingInvestment(ctx context.Context, strategyID int64) (decimal.Decimal, error) {
	var pending decimal.Decimal
	err := p.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount_ton), 0)
		FROM transaction WHERE strategy_id = $1 AND status = 'pending' AND type = 'buy'`,
		strategyID).Scan(&pending)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to compute pending investment: %w", err)
	}
	return pending, nil
}

func (p *postgresStorage) StrategyPNL(ctx context.Context, strategyID int64) (decimal.Decimal, error) {
	var pnl decimal.Decimal
	err := p.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN type = 'sell' THEN amount_ton ELSE -amount_ton END), 0)
		FROM transaction WHERE strategy_id = $1 AND status = 'success'`, strategyID).Scan(&pnl)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to compute strategy pnl: %w", err)
	}
	return pnl, nil
}

func (p *postgresStorage) MarkTransactionSuccess(ctx context.Context, id int64, realizedAmount decimal.Decimal, side models.TxType, onchainID string) error {
	column := "amount_ton"
	if side == models.TxBuy {
		column = "amount_token"
	}
	tag, err := p.pool.Exec(ctx, `
		UPDATE transaction
		SET status = 'success', onchain_id = $2, `+column+` = $3
		WHERE id = $1 AND status = 'pending'`,
		id, onchainID, realizedAmount)
	if err != nil {
		return fmt.Errorf("failed to mark transaction %d success: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (p *postgresStorage) MarkTransactionFailed(ctx context.Context, id int64, onchainID string) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE transaction
		SET status = 'failed', onchain_id = NULLIF($2, '')
		WHERE id = $1 AND status = 'pending'`,
		id, onchainID)
	if err != nil {
		return fmt.Errorf("failed to mark transaction %d failed: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------
// Fees
// ---------------------------------------------------------------

func (p *postgresStorage) CreateFee(ctx context.Context, fee *models.Fee) error {
	row := p.pool.QueryRow(ctx, `
		INSERT INTO fee (user_id, amount_ton, transaction_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (transaction_id) DO NOTHING
		RETURNING id`,
		fee.UserID, fee.AmountTon, fee.TransactionID)
	if err := row.Scan(&fee.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// A fee row already exists for this transaction.
			return nil
		}
		return fmt.Errorf("failed to insert fee: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------
// Balances
// ---------------------------------------------------------------

func (p *postgresStorage) TokenBalance(ctx context.Context, userID, tokenID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := p.pool.QueryRow(ctx, `
		SELECT balance FROM token_balance WHERE user_id = $1 AND token_id = $2`,
		userID, tokenID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("failed to fetch token balance: %w", err)
	}
	return balance, nil
}

func (p *postgresStorage) ApplyBalanceDelta(ctx context.Context, userID, tokenID int64, delta decimal.Decimal) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO token_balance (user_id, token_id, balance, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id, token_id) DO UPDATE SET
			balance = token_balance.balance + EXCLUDED.balance,
			updated_at = now()`,
		userID, tokenID, delta)
	if err != nil {
		return fmt.Errorf("failed to apply balance delta: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------
// Wallets
// ---------------------------------------------------------------

func (p *postgresStorage) UserWallets(ctx context.Context, userID int64) ([]models.Wallet, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, user_id, blockchain, address, created_at
		FROM wallet WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	defer rows.Close()

	var wallets []models.Wallet
	for rows.Next() {
		var w models.Wallet
		if err := rows.Scan(&w.ID, &w.UserID, &w.Blockchain, &w.Address, &w.CreatedAt); err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}
