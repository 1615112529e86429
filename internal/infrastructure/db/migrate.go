package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate creates the tables the scanner needs. Idempotent; no external
// migration tool required.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`create table if not exists candles (
			symbol text not null,
			timeframe text not null,
			ts bigint not null,
			open double precision not null,
			high double precision not null,
			low double precision not null,
			close double precision not null,
			volume double precision not null default 0,
			primary key (symbol, timeframe, ts)
		);`,
		`create table if not exists patterns (
			id text primary key,
			symbol text not null,
			timeframe text not null,
			pattern_type text not null,
			direction text not null,
			zone_low double precision not null,
			zone_high double precision not null,
			detected_at bigint not null,
			status text not null default 'active',
			filled_at timestamptz,
			created_at timestamptz not null default now()
		);`,
		`create index if not exists idx_patterns_lookup
			on patterns (symbol, timeframe, status, detected_at desc);`,
		`create table if not exists signals (
			id text primary key,
			symbol text not null,
			direction text not null,
			entry double precision not null,
			stop_loss double precision not null,
			take_profit_1 double precision not null,
			take_profit_2 double precision not null,
			take_profit_3 double precision not null,
			risk_reward double precision not null,
			confluence_score int not null,
			aligned_timeframes text not null default '[]',
			pattern_id text not null,
			status text not null default 'pending',
			created_at timestamptz not null default now(),
			notified_at timestamptz
		);`,
		`create index if not exists idx_signals_cooldown
			on signals (symbol, direction, created_at desc);`,
		`create table if not exists subscribers (
			id text primary key,
			email text not null unique,
			ntfy_topic text not null,
			is_active boolean not null default true,
			is_verified boolean not null default false,
			notify_enabled boolean not null default true,
			tier text not null default 'free',
			subscription_status text not null default 'active',
			expires_at timestamptz,
			grace_period_days int not null default 0
		);`,
		`create table if not exists notifications (
			id text primary key,
			signal_id text not null,
			channel text not null,
			success boolean not null,
			error_message text,
			created_at timestamptz not null default now()
		);`,
		`create table if not exists notification_outcomes (
			id bigserial primary key,
			subscriber_id text not null,
			signal_id text not null,
			success boolean not null,
			error text,
			sent_at timestamptz not null default now()
		);`,
		`create index if not exists idx_outcomes_quota
			on notification_outcomes (subscriber_id, success, sent_at desc);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
