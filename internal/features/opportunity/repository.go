// Package opportunity — repository.go работает с таблицами opportunity_alerts и opportunities.
package opportunity

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/engagement-guard/internal/common"
)

// Repository — хранилище алертов и возможностей.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const alertColumns = `
	id, user_id, name, alert_type, keywords, exclude_keywords, communities,
	min_popularity, max_age_hours, action_types, is_active, created_at, last_triggered
`

// CreateAlert сохраняет новый алерт.
func (r *Repository) CreateAlert(ctx context.Context, a *Alert) error {
	actionTypes := make([]string, 0, len(a.ActionTypes))
	for _, t := range a.ActionTypes {
		actionTypes = append(actionTypes, string(t))
	}
	query := `
		INSERT INTO opportunity_alerts (` + alertColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.Exec(ctx, query,
		a.ID, a.UserID, a.Name, string(a.Type), a.Keywords, a.ExcludeKeywords, a.Communities,
		a.MinPopularity, a.MaxAgeHours, actionTypes, a.Active, a.CreatedAt, a.LastTriggered,
	)
	return err
}

// ListAlerts возвращает алерты пользователя, новые первыми.
func (r *Repository) ListAlerts(ctx context.Context, userID string) ([]Alert, error) {
	return r.queryAlerts(ctx, `SELECT `+alertColumns+` FROM opportunity_alerts
		WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

// ListActiveAlerts возвращает активные алерты пользователя в порядке создания.
func (r *Repository) ListActiveAlerts(ctx context.Context, userID string) ([]Alert, error) {
	return r.queryAlerts(ctx, `SELECT `+alertColumns+` FROM opportunity_alerts
		WHERE user_id = $1 AND is_active = TRUE ORDER BY created_at`, userID)
}

func (r *Repository) queryAlerts(ctx context.Context, query string, args ...any) ([]Alert, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения алертов: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Alert, error) {
		var a Alert
		var alertType string
		var actionTypes []string
		err := row.Scan(
			&a.ID, &a.UserID, &a.Name, &alertType, &a.Keywords, &a.ExcludeKeywords, &a.Communities,
			&a.MinPopularity, &a.MaxAgeHours, &actionTypes, &a.Active, &a.CreatedAt, &a.LastTriggered,
		)
		a.Type = AlertType(alertType)
		for _, t := range actionTypes {
			a.ActionTypes = append(a.ActionTypes, Suggestion(t))
		}
		return a, err
	})
}

// TouchAlerts ставит отметку последнего срабатывания.
func (r *Repository) TouchAlerts(ctx context.Context, alertIDs []string, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE opportunity_alerts SET last_triggered = $2 WHERE id = ANY($1)`, alertIDs, at)
	return err
}

// Upsert сохраняет возможности одной транзакцией. Повторное сохранение того же поста
// обновляет метрики и балл, но не трогает статус и дату создания.
// Возвращает сохранённый статус каждой возможности по её id.
func (r *Repository) Upsert(ctx context.Context, ops []Opportunity) (map[string]Status, error) {
	stored := make(map[string]Status, len(ops))
	if len(ops) == 0 {
		return stored, nil
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO opportunities (
			id, user_id, alert_id, item_id, title, url, community, popularity, comments,
			age_hours, matched_keywords, score, suggestion, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			alert_id = EXCLUDED.alert_id,
			title = EXCLUDED.title,
			url = EXCLUDED.url,
			community = EXCLUDED.community,
			popularity = EXCLUDED.popularity,
			comments = EXCLUDED.comments,
			age_hours = EXCLUDED.age_hours,
			matched_keywords = EXCLUDED.matched_keywords,
			score = EXCLUDED.score,
			suggestion = EXCLUDED.suggestion,
			updated_at = EXCLUDED.updated_at
		RETURNING id, status
	`
	batch := &pgx.Batch{}
	for _, op := range ops {
		batch.Queue(query,
			op.ID, op.UserID, op.AlertID, op.ItemID, op.Title, op.URL, op.Community, op.Popularity, op.Comments,
			op.AgeHours, op.MatchedKeywords, op.Score, string(op.Suggestion), string(op.Status), op.CreatedAt, op.UpdatedAt,
		)
	}
	br := tx.SendBatch(ctx, batch)
	for range ops {
		var id, status string
		if err := br.QueryRow().Scan(&id, &status); err != nil {
			br.Close()
			return nil, fmt.Errorf("ошибка сохранения возможностей: %w", err)
		}
		stored[id] = Status(status)
	}
	if err := br.Close(); err != nil {
		return nil, fmt.Errorf("ошибка сохранения возможностей: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return stored, nil
}

// ListNew возвращает возможности со статусом new по убыванию балла.
func (r *Repository) ListNew(ctx context.Context, userID string, limit int) ([]Opportunity, error) {
	query := `
		SELECT id, user_id, alert_id, item_id, title, url, community, popularity, comments,
			age_hours, matched_keywords, score, suggestion, status, created_at, updated_at
		FROM opportunities
		WHERE user_id = $1 AND status = 'new'
		ORDER BY score DESC, created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения возможностей: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Opportunity, error) {
		var op Opportunity
		var suggestion, status string
		err := row.Scan(
			&op.ID, &op.UserID, &op.AlertID, &op.ItemID, &op.Title, &op.URL, &op.Community, &op.Popularity, &op.Comments,
			&op.AgeHours, &op.MatchedKeywords, &op.Score, &suggestion, &status, &op.CreatedAt, &op.UpdatedAt,
		)
		op.Suggestion, op.Status = Suggestion(suggestion), Status(status)
		return op, err
	})
}

// SetStatus переводит возможность пользователя из new в to.
func (r *Repository) SetStatus(ctx context.Context, userID, id string, to Status, at time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE opportunities SET status = $3, updated_at = $4
		WHERE id = $1 AND user_id = $2 AND status = 'new'
	`, id, userID, string(to), at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return common.ErrOpportunityNotFound
	}
	return nil
}

// UsersWithActiveAlerts возвращает пользователей, у которых есть активные алерты.
func (r *Repository) UsersWithActiveAlerts(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT user_id FROM opportunity_alerts WHERE is_active = TRUE ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
