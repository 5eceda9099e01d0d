package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"hookrelay/internal/model"
)

// Schema is applied by Migrate. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS subscriptions (
    id                uuid PRIMARY KEY,
    organization_id   text NOT NULL,
    url               text NOT NULL,
    secret            text NOT NULL,
    events            jsonb NOT NULL DEFAULT '[]'::jsonb,
    is_active         boolean NOT NULL DEFAULT true,
    failure_count     integer NOT NULL DEFAULT 0 CHECK (failure_count >= 0),
    last_triggered_at timestamptz,
    created_at        timestamptz NOT NULL DEFAULT now(),
    updated_at        timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS subscriptions_org_active_idx ON subscriptions (organization_id) WHERE is_active;
CREATE INDEX IF NOT EXISTS subscriptions_events_idx ON subscriptions USING gin (events);
`

const subColumns = `id::text, organization_id, url, secret, events, is_active, failure_count, last_triggered_at, created_at, updated_at`

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{db: db}, nil
}

// NewPostgresDB wraps an existing handle.
func NewPostgresDB(db *sql.DB) *Postgres { return &Postgres{db: db} }

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

// Migrate creates the subscriptions table and indexes if missing.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	if err := ValidateRequest(&req); err != nil {
		return model.Subscription{}, err
	}
	id := uuid.New().String()
	ev, err := json.Marshal(req.Events)
	if err != nil {
		return model.Subscription{}, err
	}
	row := p.db.QueryRowContext(ctx, `INSERT INTO subscriptions (id, organization_id, url, secret, events) VALUES ($1,$2,$3,$4,$5) RETURNING `+subColumns,
		id, req.OrganizationID, req.URL, req.Secret, ev)
	return scanSubscription(row)
}

func (p *Postgres) FindActiveByOrgAndEvent(ctx context.Context, orgID, eventType string) ([]model.Subscription, error) {
	filter, _ := json.Marshal([]string{eventType})
	rows, err := p.db.QueryContext(ctx, `SELECT `+subColumns+` FROM subscriptions WHERE organization_id=$1 AND is_active AND events @> $2::jsonb ORDER BY id`, orgID, filter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Subscription{}
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) GetByID(ctx context.Context, id string) (model.Subscription, error) {
	if !validID(id) {
		return model.Subscription{}, ErrNotFound
	}
	row := p.db.QueryRowContext(ctx, `SELECT `+subColumns+` FROM subscriptions WHERE id=$1::uuid`, id)
	return scanSubscription(row)
}

func (p *Postgres) UpdateFailureState(ctx context.Context, id string, expectedFailureCount int, st FailureState) error {
	if !validID(id) {
		return ErrNotFound
	}
	var last any
	if st.LastTriggeredAt != nil {
		last = st.LastTriggeredAt.UTC()
	}
	res, err := p.db.ExecContext(ctx, `UPDATE subscriptions
        SET failure_count=$1, is_active = is_active AND NOT $2, last_triggered_at = COALESCE($3::timestamptz, last_triggered_at), updated_at=now()
        WHERE id=$4::uuid AND failure_count=$5`, st.FailureCount, st.Disable, last, id, expectedFailureCount)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	var one int
	err = p.db.QueryRowContext(ctx, `SELECT 1 FROM subscriptions WHERE id=$1::uuid`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrConflict
}

func (p *Postgres) ListSubscriptions(ctx context.Context, orgID, cursor string, limit int) ([]model.Subscription, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if cursor != "" {
		if !validID(cursor) {
			return nil, "", ErrInvalidCursor
		}
		rows, err = p.db.QueryContext(ctx, `SELECT `+subColumns+` FROM subscriptions WHERE organization_id=$1 AND id > $2::uuid ORDER BY id LIMIT $3`, orgID, cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT `+subColumns+` FROM subscriptions WHERE organization_id=$1 ORDER BY id LIMIT $2`, orgID, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	var out []model.Subscription
	var last string
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, s)
		last = s.ID
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, nil
}

func (p *Postgres) DeleteSubscription(ctx context.Context, orgID, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	res, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE organization_id=$1 AND id=$2::uuid`, orgID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RotateSecret replaces the secret in place. There is no overlap window.
func (p *Postgres) RotateSecret(ctx context.Context, orgID, id string) (model.Subscription, error) {
	if !validID(id) {
		return model.Subscription{}, ErrNotFound
	}
	secret, err := NewSecret()
	if err != nil {
		return model.Subscription{}, err
	}
	row := p.db.QueryRowContext(ctx, `UPDATE subscriptions SET secret=$1, updated_at=now() WHERE organization_id=$2 AND id=$3::uuid RETURNING `+subColumns, secret, orgID, id)
	return scanSubscription(row)
}

// SetActive is the owner toggle. Re-enabling resets the failure counter.
func (p *Postgres) SetActive(ctx context.Context, orgID, id string, active bool) (model.Subscription, error) {
	if !validID(id) {
		return model.Subscription{}, ErrNotFound
	}
	row := p.db.QueryRowContext(ctx, `UPDATE subscriptions
        SET failure_count = CASE WHEN $1 AND NOT is_active THEN 0 ELSE failure_count END, is_active=$1, updated_at=now()
        WHERE organization_id=$2 AND id=$3::uuid RETURNING `+subColumns, active, orgID, id)
	return scanSubscription(row)
}

// validID reports whether id can name a row. Anything else cannot match the
// uuid primary key, so callers answer ErrNotFound without a query.
func validID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(r rowScanner) (model.Subscription, error) {
	var s model.Subscription
	var events []byte
	var last sql.NullTime
	var created, updated time.Time
	err := r.Scan(&s.ID, &s.OrganizationID, &s.URL, &s.Secret, &events, &s.IsActive, &s.FailureCount, &last, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Subscription{}, ErrNotFound
	}
	if err != nil {
		return model.Subscription{}, err
	}
	if len(events) > 0 {
		if err := json.Unmarshal(events, &s.Events); err != nil {
			return model.Subscription{}, fmt.Errorf("decode events for %s: %w", s.ID, err)
		}
	}
	if last.Valid {
		t := last.Time.UTC()
		s.LastTriggeredAt = &t
	}
	s.CreatedAt = created.UTC()
	s.UpdatedAt = updated.UTC()
	return s, nil
}
