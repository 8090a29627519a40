package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// Migration — одна версия схемы.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Migrate применяет миграции по порядку. Уже применённые пропускаются.
func Migrate(ctx context.Context, pool *pgxpool.Pool, migrations []Migration) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("ошибка создания таблицы миграций: %w", err)
	}

	for _, m := range migrations {
		applied, err := apply(ctx, pool, m)
		if err != nil {
			return fmt.Errorf("миграция %d (%s): %w", m.Version, m.Name, err)
		}
		if applied {
			log.WithField("version", m.Version).Infof("Миграция %s применена", m.Name)
		}
	}
	return nil
}

// apply выполняет миграцию в транзакции вместе с записью версии.
func apply(ctx context.Context, pool *pgxpool.Pool, m Migration) (bool, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	// Два экземпляра могут стартовать одновременно
	if _, err := tx.Exec(ctx, `LOCK TABLE schema_migrations IN EXCLUSIVE MODE`); err != nil {
		return false, err
	}

	var exists bool
	err = tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, m.Version).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки версии: %w", err)
	}
	if exists {
		return false, nil
	}

	if _, err := tx.Exec(ctx, m.SQL); err != nil {
		return false, err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name); err != nil {
		return false, fmt.Errorf("ошибка записи версии: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("ошибка фиксации миграции: %w", err)
	}
	return true, nil
}

// Schema — полная схема движка.
var Schema = []Migration{
	{1, "platform_accounts", `
CREATE TABLE IF NOT EXISTS platform_accounts (
    user_id TEXT PRIMARY KEY,
    username TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    comment_karma INTEGER NOT NULL DEFAULT 0,
    link_karma INTEGER NOT NULL DEFAULT 0,
    verified BOOLEAN NOT NULL DEFAULT FALSE,
    synced_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`},
	{2, "action_ledger", `
CREATE TABLE IF NOT EXISTS action_ledger (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    kind TEXT NOT NULL CHECK (kind IN ('vote', 'comment', 'join')),
    target_ref TEXT NOT NULL DEFAULT '',
    community TEXT NOT NULL DEFAULT '',
    outcome TEXT NOT NULL DEFAULT 'pending' CHECK (outcome IN ('pending', 'completed', 'failed')),
    risk_score DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_action_ledger_user_created ON action_ledger(user_id, created_at DESC);
`},
	{3, "safety_logs", `
CREATE TABLE IF NOT EXISTS safety_logs (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    details JSONB NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_safety_logs_user_kind ON safety_logs(user_id, kind, created_at DESC);
`},
	{4, "user_trust_levels", `
CREATE TABLE IF NOT EXISTS user_trust_levels (
    user_id TEXT PRIMARY KEY,
    current_level INTEGER NOT NULL DEFAULT 1,
    level_up_date TIMESTAMPTZ NOT NULL,
    total_points_earned BIGINT NOT NULL DEFAULT 0,
    updated_at TIMESTAMPTZ NOT NULL
);
`},
	{5, "user_safety_status", `
CREATE TABLE IF NOT EXISTS user_safety_status (
    user_id TEXT PRIMARY KEY,
    is_paused BOOLEAN NOT NULL DEFAULT FALSE,
    pause_reason TEXT NOT NULL DEFAULT '',
    paused_until TIMESTAMPTZ,
    updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_user_safety_status_until ON user_safety_status(paused_until) WHERE is_paused;
`},
	{6, "opportunity_alerts", `
CREATE TABLE IF NOT EXISTS opportunity_alerts (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    name TEXT NOT NULL,
    alert_type TEXT NOT NULL DEFAULT 'keyword',
    keywords TEXT[] NOT NULL DEFAULT '{}',
    exclude_keywords TEXT[] NOT NULL DEFAULT '{}',
    communities TEXT[] NOT NULL DEFAULT '{}',
    min_popularity INTEGER NOT NULL DEFAULT 0,
    max_age_hours DOUBLE PRECISION NOT NULL DEFAULT 0,
    action_types TEXT[] NOT NULL DEFAULT '{}',
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL,
    last_triggered TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_opportunity_alerts_user ON opportunity_alerts(user_id) WHERE is_active;
`},
	{7, "opportunities", `
CREATE TABLE IF NOT EXISTS opportunities (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    alert_id TEXT NOT NULL,
    item_id TEXT NOT NULL,
    title TEXT NOT NULL,
    url TEXT NOT NULL,
    community TEXT NOT NULL,
    popularity INTEGER NOT NULL DEFAULT 0,
    comments INTEGER NOT NULL DEFAULT 0,
    age_hours DOUBLE PRECISION NOT NULL DEFAULT 0,
    matched_keywords TEXT[] NOT NULL DEFAULT '{}',
    score INTEGER NOT NULL DEFAULT 0,
    suggestion TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'new' CHECK (status IN ('new', 'acted', 'dismissed')),
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_opportunities_user_status ON opportunities(user_id, status, score DESC);
`},
}
