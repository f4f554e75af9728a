package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Alias1177/SignalBot/models"
	_ "github.com/lib/pq"
)

// ErrChatNotFound is returned when no subscription exists for a chat
var ErrChatNotFound = errors.New("chat not found")

// DB is the Postgres store of subscriptions and take-profit trackings
type DB struct {
	*sql.DB
}

// ConnectionParams holds PostgreSQL connection parameters
type ConnectionParams struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN renders the lib/pq connection string
func (p ConnectionParams) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode,
	)
}

// New opens the database and creates the tables if needed
func New(ctx context.Context, dsn string) (*DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if err := createTables(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db}, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	statements := []string{`
		CREATE TABLE IF NOT EXISTS chat_subscriptions (
			chat_id BIGINT PRIMARY KEY,
			username TEXT NOT NULL DEFAULT '',
			tier TEXT NOT NULL,
			is_admin BOOLEAN NOT NULL DEFAULT FALSE,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			signals_sent_today INTEGER NOT NULL DEFAULT 0,
			last_signal_at TIMESTAMPTZ,
			last_reset TEXT NOT NULL DEFAULT '',
			subscribed_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ,
			stripe_customer_id TEXT,
			stripe_subscription_id TEXT
		)`, `
		CREATE TABLE IF NOT EXISTS tp_tracking (
			id TEXT PRIMARY KEY,
			signal_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			signal_type TEXT NOT NULL,
			entry_price DOUBLE PRECISION NOT NULL,
			tp1_price DOUBLE PRECISION NOT NULL,
			tp2_price DOUBLE PRECISION NOT NULL,
			stop_loss DOUBLE PRECISION NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			signal_time TIMESTAMPTZ NOT NULL,
			tp1_reached BOOLEAN NOT NULL DEFAULT FALSE,
			tp1_time TIMESTAMPTZ,
			tp2_reached BOOLEAN NOT NULL DEFAULT FALSE,
			tp2_time TIMESTAMPTZ,
			sl_reached BOOLEAN NOT NULL DEFAULT FALSE,
			sl_time TIMESTAMPTZ,
			max_profit_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
			max_loss_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			final_result TEXT NOT NULL,
			closed_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS tp_tracking_active_idx ON tp_tracking (is_active)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating tables: %w", err)
		}
	}
	return nil
}

const subscriptionColumns = `
	chat_id, username, tier, is_admin, active, signals_sent_today, last_signal_at,
	last_reset, subscribed_at, expires_at, stripe_customer_id, stripe_subscription_id`

// SaveSubscription inserts or replaces a chat subscription
func (db *DB) SaveSubscription(ctx context.Context, sub *models.Subscription) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO chat_subscriptions (`+subscriptionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (chat_id)
		DO UPDATE SET
			username = EXCLUDED.username,
			tier = EXCLUDED.tier,
			is_admin = EXCLUDED.is_admin,
			active = EXCLUDED.active,
			signals_sent_today = EXCLUDED.signals_sent_today,
			last_signal_at = EXCLUDED.last_signal_at,
			last_reset = EXCLUDED.last_reset,
			subscribed_at = EXCLUDED.subscribed_at,
			expires_at = EXCLUDED.expires_at,
			stripe_customer_id = EXCLUDED.stripe_customer_id,
			stripe_subscription_id = EXCLUDED.stripe_subscription_id
	`,
		sub.ChatID, sub.Username, string(sub.Tier), sub.IsAdmin, sub.Active, sub.SignalsSentToday,
		nullTime(sub.LastSignalAt), sub.LastReset, sub.SubscribedAt, nullTime(sub.ExpiresAt),
		nullString(sub.StripeCustomerID), nullString(sub.StripeSubscriptionID))
	if err != nil {
		return fmt.Errorf("saving subscription %d: %w", sub.ChatID, err)
	}
	return nil
}

// GetSubscription retrieves a chat's subscription
func (db *DB) GetSubscription(ctx context.Context, chatID int64) (*models.Subscription, error) {
	row := db.QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM chat_subscriptions WHERE chat_id = $1`, chatID)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading subscription %d: %w", chatID, err)
	}
	return sub, nil
}

// DeleteSubscription removes a chat
func (db *DB) DeleteSubscription(ctx context.Context, chatID int64) error {
	res, err := db.ExecContext(ctx, `DELETE FROM chat_subscriptions WHERE chat_id = $1`, chatID)
	if err != nil {
		return fmt.Errorf("deleting subscription %d: %w", chatID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrChatNotFound
	}
	return nil
}

// ListSubscriptions returns every chat ordered by id
func (db *DB) ListSubscriptions(ctx context.Context) ([]*models.Subscription, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+subscriptionColumns+` FROM chat_subscriptions ORDER BY chat_id`)
	if err != nil {
		return nil, fmt.Errorf("listing subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubscription(s scanner) (*models.Subscription, error) {
	var sub models.Subscription
	var tier string
	var lastSignal, expires sql.NullTime
	var customer, subscription sql.NullString

	err := s.Scan(
		&sub.ChatID, &sub.Username, &tier, &sub.IsAdmin, &sub.Active, &sub.SignalsSentToday, &lastSignal,
		&sub.LastReset, &sub.SubscribedAt, &expires, &customer, &subscription,
	)
	if err != nil {
		return nil, err
	}

	sub.Tier = models.Tier(tier)
	sub.LastSignalAt = timePtr(lastSignal)
	sub.ExpiresAt = timePtr(expires)
	sub.StripeCustomerID = customer.String
	sub.StripeSubscriptionID = subscription.String
	return &sub, nil
}

const trackingColumns = `
	id, signal_id, symbol, signal_type, entry_price, tp1_price, tp2_price, stop_loss, confidence,
	signal_time, tp1_reached, tp1_time, tp2_reached, tp2_time, sl_reached, sl_time,
	max_profit_pct, max_loss_pct, is_active, final_result, closed_at`

// SaveTracking inserts or replaces a take-profit tracking
func (db *DB) SaveTracking(ctx context.Context, t *models.TPTracking) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO tp_tracking (`+trackingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (id)
		DO UPDATE SET
			tp1_reached = EXCLUDED.tp1_reached,
			tp1_time = EXCLUDED.tp1_time,
			tp2_reached = EXCLUDED.tp2_reached,
			tp2_time = EXCLUDED.tp2_time,
			sl_reached = EXCLUDED.sl_reached,
			sl_time = EXCLUDED.sl_time,
			max_profit_pct = EXCLUDED.max_profit_pct,
			max_loss_pct = EXCLUDED.max_loss_pct,
			is_active = EXCLUDED.is_active,
			final_result = EXCLUDED.final_result,
			closed_at = EXCLUDED.closed_at
	`,
		t.ID, t.SignalID, t.Symbol, string(t.SignalType), t.EntryPrice, t.TakeProfit1, t.TakeProfit2, t.StopLoss, t.Confidence,
		t.StartedAt, t.TP1Reached, nullTime(t.TP1At), t.TP2Reached, nullTime(t.TP2At), t.SLReached, nullTime(t.SLAt),
		t.MaxProfitPct, t.MaxLossPct, t.Active, string(t.Result), nullTime(t.ClosedAt))
	if err != nil {
		return fmt.Errorf("saving tracking %s: %w", t.ID, err)
	}
	return nil
}

// ListTrackings returns trackings ordered by start time
func (db *DB) ListTrackings(ctx context.Context, activeOnly bool) ([]*models.TPTracking, error) {
	query := `SELECT ` + trackingColumns + ` FROM tp_tracking`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY signal_time`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing trackings: %w", err)
	}
	defer rows.Close()

	var out []*models.TPTracking
	for rows.Next() {
		var t models.TPTracking
		var signalType, result string
		var tp1, tp2, sl, closed sql.NullTime
		err := rows.Scan(
			&t.ID, &t.SignalID, &t.Symbol, &signalType, &t.EntryPrice, &t.TakeProfit1, &t.TakeProfit2, &t.StopLoss, &t.Confidence,
			&t.StartedAt, &t.TP1Reached, &tp1, &t.TP2Reached, &tp2, &t.SLReached, &sl,
			&t.MaxProfitPct, &t.MaxLossPct, &t.Active, &result, &closed,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning tracking: %w", err)
		}
		t.SignalType = models.Direction(signalType)
		t.Result = models.TPResult(result)
		t.TP1At, t.TP2At, t.SLAt, t.ClosedAt = timePtr(tp1), timePtr(tp2), timePtr(sl), timePtr(closed)
		out = append(out, &t)
	}
	return out, rows.Err()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
