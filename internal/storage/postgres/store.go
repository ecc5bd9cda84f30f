package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"stormdex/internal/model"
	"stormdex/internal/storage"
)

// Store archives pool snapshots and audit records in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ storage.PoolSink  = (*Store)(nil)
	_ storage.AuditSink = (*Store)(nil)
)

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS pool_snapshots (
	pool_address TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	icon_url TEXT,
	age TEXT NOT NULL,
	fdv TEXT NOT NULL,
	liquidity TEXT NOT NULL,
	buys INTEGER NOT NULL,
	sells INTEGER NOT NULL,
	buyers INTEGER NOT NULL,
	sellers INTEGER NOT NULL,
	price_change_24h TEXT NOT NULL,
	supply TEXT NOT NULL,
	base_token_address TEXT NOT NULL,
	base_token_name TEXT NOT NULL,
	volume_24h TEXT NOT NULL,
	price TEXT NOT NULL,
	audit_eligible BOOLEAN NOT NULL,
	observed_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS token_audits (
	token_address TEXT PRIMARY KEY,
	mintable BOOLEAN,
	liquidity_burnt BOOLEAN,
	honeypot BOOLEAN,
	updated_at TIMESTAMPTZ NOT NULL
);
`

// EnsureSchema creates the archive tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// PutPools upserts the latest record of every pool in the snapshot.
func (s *Store) PutPools(ctx context.Context, observedAt time.Time, pools []model.PoolRecord) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range pools {
		batch.Queue(`
			INSERT INTO pool_snapshots (
				pool_address, name, icon_url, age, fdv, liquidity, buys, sells, buyers, sellers,
				price_change_24h, supply, base_token_address, base_token_name, volume_24h, price,
				audit_eligible, observed_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,now())
			ON CONFLICT (pool_address)
			DO UPDATE SET
				name = EXCLUDED.name,
				icon_url = EXCLUDED.icon_url,
				age = EXCLUDED.age,
				fdv = EXCLUDED.fdv,
				liquidity = EXCLUDED.liquidity,
				buys = EXCLUDED.buys,
				sells = EXCLUDED.sells,
				buyers = EXCLUDED.buyers,
				sellers = EXCLUDED.sellers,
				price_change_24h = EXCLUDED.price_change_24h,
				supply = EXCLUDED.supply,
				base_token_address = EXCLUDED.base_token_address,
				base_token_name = EXCLUDED.base_token_name,
				volume_24h = EXCLUDED.volume_24h,
				price = EXCLUDED.price,
				audit_eligible = EXCLUDED.audit_eligible,
				observed_at = GREATEST(pool_snapshots.observed_at, EXCLUDED.observed_at),
				updated_at = now()
		`,
			p.Address,
			p.Name,
			p.IconURL,
			p.Age,
			p.FDV,
			p.Liquidity,
			p.Buys,
			p.Sells,
			p.Buyers,
			p.Sellers,
			p.PriceChange24h,
			p.Supply,
			p.BaseTokenAddress,
			p.BaseTokenName,
			p.Volume24h,
			p.Price,
			p.AuditEligible,
			observedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range pools {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// PutAudits upserts audit records. Unknown flags are stored as NULL.
func (s *Store) PutAudits(ctx context.Context, audits []model.AuditRecord) error {
	if len(audits) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, a := range audits {
		batch.Queue(`
			INSERT INTO token_audits (token_address, mintable, liquidity_burnt, honeypot, updated_at)
			VALUES ($1, $2, $3, $4, now())
			ON CONFLICT (token_address)
			DO UPDATE SET
				mintable = EXCLUDED.mintable,
				liquidity_burnt = EXCLUDED.liquidity_burnt,
				honeypot = EXCLUDED.honeypot,
				updated_at = now()
		`,
			a.Address,
			nullableFlag(a.Mintable),
			nullableFlag(a.LiquidityBurnt),
			nullableFlag(a.Honeypot),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range audits {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func nullableFlag(v model.TriState) *bool {
	switch v {
	case model.Yes:
		b := true
		return &b
	case model.No:
		b := false
		return &b
	default:
		return nil
	}
}
