package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cryptolens-backend/internal/domain"
)

// PostgresPatternRepository stores pattern zones in Postgres.
type PostgresPatternRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresPatternRepository(pool *pgxpool.Pool) *PostgresPatternRepository {
	return &PostgresPatternRepository{pool: pool}
}

const patternColumns = `id, symbol, timeframe, pattern_type, direction,
	zone_low, zone_high, detected_at, status, filled_at, created_at`

func (r *PostgresPatternRepository) Create(ctx context.Context, p *domain.Pattern) error {
	_, err := r.pool.Exec(ctx, `
		insert into patterns(
			id, symbol, timeframe, pattern_type, direction,
			zone_low, zone_high, detected_at, status, filled_at, created_at
		) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		p.ID, p.Symbol, p.Timeframe, p.Type, p.Direction,
		p.ZoneLow, p.ZoneHigh, p.DetectedAt, p.Status, p.FilledAt, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert pattern: %w", err)
	}
	return nil
}

func scanPattern(row pgx.Row) (*domain.Pattern, error) {
	var p domain.Pattern
	err := row.Scan(&p.ID, &p.Symbol, &p.Timeframe, &p.Type, &p.Direction,
		&p.ZoneLow, &p.ZoneHigh, &p.DetectedAt, &p.Status, &p.FilledAt, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func collectPatterns(rows pgx.Rows) ([]domain.Pattern, error) {
	defer rows.Close()
	var out []domain.Pattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *PostgresPatternRepository) ActiveOverlapping(ctx context.Context, symbol string, tf domain.Timeframe, pt domain.PatternType, dir domain.Direction, low, high float64) ([]domain.Pattern, error) {
	rows, err := r.pool.Query(ctx, `
		select `+patternColumns+`
		from patterns
		where symbol = $1 and timeframe = $2 and pattern_type = $3
			and direction = $4 and status = 'active'
			and zone_low <= $5 and zone_high >= $6
	`, symbol, tf, pt, dir, high, low)
	if err != nil {
		return nil, fmt.Errorf("query overlapping patterns: %w", err)
	}
	return collectPatterns(rows)
}

func (r *PostgresPatternRepository) LatestActive(ctx context.Context, symbol string, tf domain.Timeframe) (*domain.Pattern, error) {
	row := r.pool.QueryRow(ctx, `
		select `+patternColumns+`
		from patterns
		where symbol = $1 and timeframe = $2 and status = 'active'
		order by detected_at desc
		limit 1
	`, symbol, tf)
	return scanPattern(row)
}

func (r *PostgresPatternRepository) LatestActiveDirectional(ctx context.Context, symbol string, tf domain.Timeframe, dir domain.Direction) (*domain.Pattern, error) {
	row := r.pool.QueryRow(ctx, `
		select `+patternColumns+`
		from patterns
		where symbol = $1 and timeframe = $2 and direction = $3 and status = 'active'
		order by detected_at desc
		limit 1
	`, symbol, tf, dir)
	return scanPattern(row)
}

func (r *PostgresPatternRepository) Active(ctx context.Context, symbol string) ([]domain.Pattern, error) {
	rows, err := r.pool.Query(ctx, `
		select `+patternColumns+`
		from patterns
		where status = 'active' and ($1 = '' or symbol = $1)
		order by detected_at desc
	`, symbol)
	if err != nil {
		return nil, fmt.Errorf("query active patterns: %w", err)
	}
	return collectPatterns(rows)
}

func (r *PostgresPatternRepository) UpdateStatus(ctx context.Context, id string, status domain.PatternStatus, filledAt *time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		update patterns set status = $2, filled_at = $3 where id = $1
	`, id, status, filledAt)
	if err != nil {
		return fmt.Errorf("update pattern status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// PostgresSignalRepository stores trade signals in Postgres.
type PostgresSignalRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresSignalRepository(pool *pgxpool.Pool) *PostgresSignalRepository {
	return &PostgresSignalRepository{pool: pool}
}

const signalColumns = `id, symbol, direction, entry, stop_loss,
	take_profit_1, take_profit_2, take_profit_3, risk_reward,
	confluence_score, aligned_timeframes, pattern_id, status, created_at, notified_at`

func (r *PostgresSignalRepository) Create(ctx context.Context, s *domain.Signal) error {
	_, err := r.pool.Exec(ctx, `
		insert into signals(
			id, symbol, direction, entry, stop_loss,
			take_profit_1, take_profit_2, take_profit_3, risk_reward,
			confluence_score, aligned_timeframes, pattern_id, status, created_at, notified_at
		) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`,
		s.ID, s.Symbol, s.Direction, s.Entry, s.StopLoss,
		s.TakeProfit1, s.TakeProfit2, s.TakeProfit3, s.RiskReward,
		s.ConfluenceScore, s.AlignedTimeframes, s.PatternID, s.Status, s.CreatedAt, s.NotifiedAt,
	)
	if err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

func scanSignal(row pgx.Row) (*domain.Signal, error) {
	var s domain.Signal
	err := row.Scan(&s.ID, &s.Symbol, &s.Direction, &s.Entry, &s.StopLoss,
		&s.TakeProfit1, &s.TakeProfit2, &s.TakeProfit3, &s.RiskReward,
		&s.ConfluenceScore, &s.AlignedTimeframes, &s.PatternID, &s.Status, &s.CreatedAt, &s.NotifiedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func collectSignals(rows pgx.Rows) ([]domain.Signal, error) {
	defer rows.Close()
	var out []domain.Signal
	for rows.Next() {
		s, err := scanSignal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *PostgresSignalRepository) LastCreated(ctx context.Context, symbol string, dir domain.SignalDirection) (*domain.Signal, error) {
	row := r.pool.QueryRow(ctx, `
		select `+signalColumns+`
		from signals
		where symbol = $1 and direction = $2
		order by created_at desc
		limit 1
	`, symbol, dir)
	return scanSignal(row)
}

func (r *PostgresSignalRepository) MarkNotified(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		update signals set status = 'notified', notified_at = $2
		where id = $1 and status = 'pending'
	`, id, at)
	if err != nil {
		return fmt.Errorf("mark signal notified: %w", err)
	}
	return nil
}

func (r *PostgresSignalRepository) Pending(ctx context.Context) ([]domain.Signal, error) {
	rows, err := r.pool.Query(ctx, `
		select `+signalColumns+`
		from signals
		where status = 'pending'
		order by created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("query pending signals: %w", err)
	}
	return collectSignals(rows)
}

func (r *PostgresSignalRepository) Recent(ctx context.Context, limit int) ([]domain.Signal, error) {
	rows, err := r.pool.Query(ctx, `
		select `+signalColumns+`
		from signals
		order by created_at desc
		limit $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent signals: %w", err)
	}
	return collectSignals(rows)
}

// PostgresCandleRepository stores immutable candles in Postgres.
type PostgresCandleRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresCandleRepository(pool *pgxpool.Pool) *PostgresCandleRepository {
	return &PostgresCandleRepository{pool: pool}
}

func (r *PostgresCandleRepository) Upsert(ctx context.Context, candles []domain.Candle) (int, error) {
	inserted := 0
	for _, c := range candles {
		tag, err := r.pool.Exec(ctx, `
			insert into candles(symbol, timeframe, ts, open, high, low, close, volume)
			values ($1,$2,$3,$4,$5,$6,$7,$8)
			on conflict (symbol, timeframe, ts) do nothing
		`, c.Symbol, c.Timeframe, c.Timestamp, c.Open, c.High, c.Low, c.Close, c.Volume)
		if err != nil {
			return inserted, fmt.Errorf("upsert candle: %w", err)
		}
		if tag.RowsAffected() > 0 {
			inserted++
		}
	}
	return inserted, nil
}

func (r *PostgresCandleRepository) Latest(ctx context.Context, symbol string, tf domain.Timeframe, limit int) ([]domain.Candle, error) {
	rows, err := r.pool.Query(ctx, `
		select symbol, timeframe, ts, open, high, low, close, volume
		from (
			select * from candles
			where symbol = $1 and timeframe = $2
			order by ts desc
			limit $3
		) recent
		order by ts
	`, symbol, tf, limit)
	if err != nil {
		return nil, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()

	var out []domain.Candle
	for rows.Next() {
		var c domain.Candle
		if err := rows.Scan(&c.Symbol, &c.Timeframe, &c.Timestamp,
			&c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// PostgresSubscriberRepository reads the user+subscription projection.
type PostgresSubscriberRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresSubscriberRepository(pool *pgxpool.Pool) *PostgresSubscriberRepository {
	return &PostgresSubscriberRepository{pool: pool}
}

const subscriberColumns = `id, email, ntfy_topic, is_active, is_verified,
	notify_enabled, tier, subscription_status, expires_at, grace_period_days`

func collectSubscribers(rows pgx.Rows) ([]domain.Subscriber, error) {
	defer rows.Close()
	var out []domain.Subscriber
	for rows.Next() {
		var s domain.Subscriber
		if err := rows.Scan(&s.ID, &s.Email, &s.NtfyTopic, &s.IsActive, &s.IsVerified,
			&s.NotifyEnabled, &s.Tier, &s.SubStatus, &s.ExpiresAt, &s.GracePeriodDays); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PostgresSubscriberRepository) All(ctx context.Context) ([]domain.Subscriber, error) {
	rows, err := r.pool.Query(ctx, `select `+subscriberColumns+` from subscribers order by id`)
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}
	return collectSubscribers(rows)
}

func (r *PostgresSubscriberRepository) ExpiringBetween(ctx context.Context, from, to time.Time) ([]domain.Subscriber, error) {
	rows, err := r.pool.Query(ctx, `
		select `+subscriberColumns+`
		from subscribers
		where expires_at >= $1 and expires_at < $2
		order by expires_at
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("query expiring subscribers: %w", err)
	}
	return collectSubscribers(rows)
}

// PostgresNotificationRepository records delivery outcomes and summaries.
type PostgresNotificationRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresNotificationRepository(pool *pgxpool.Pool) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{pool: pool}
}

func (r *PostgresNotificationRepository) RecordOutcomes(ctx context.Context, outcomes []domain.NotificationOutcome) error {
	for _, o := range outcomes {
		_, err := r.pool.Exec(ctx, `
			insert into notification_outcomes(subscriber_id, signal_id, success, error, sent_at)
			values ($1,$2,$3,$4,$5)
		`, o.SubscriberID, o.SignalID, o.Success, o.Error, o.SentAt)
		if err != nil {
			return fmt.Errorf("insert outcome: %w", err)
		}
	}
	return nil
}

func (r *PostgresNotificationRepository) RecordSummary(ctx context.Context, n *domain.Notification) error {
	_, err := r.pool.Exec(ctx, `
		insert into notifications(id, signal_id, channel, success, error_message, created_at)
		values ($1,$2,$3,$4,$5,$6)
	`, n.ID, n.SignalID, n.Channel, n.Success, n.ErrorMessage, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification summary: %w", err)
	}
	return nil
}

func (r *PostgresNotificationRepository) SuccessCountSince(ctx context.Context, subscriberID string, since time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		select count(*) from notification_outcomes
		where subscriber_id = $1 and signal_id <> '' and success and sent_at >= $2
	`, subscriberID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count successful outcomes: %w", err)
	}
	return count, nil
}
