package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LeventeLantos/sms-remarketing/internal/model"
)

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

type PostgresClientRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresClientRepo(pool *pgxpool.Pool) *PostgresClientRepo {
	return &PostgresClientRepo{pool: pool}
}

func (r *PostgresClientRepo) scan(row pgx.Row) (*model.Client, error) {
	var c model.Client
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.APIKey, &c.Credits, &c.Active, &c.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *PostgresClientRepo) GetByID(ctx context.Context, id int64) (*model.Client, error) {
	return r.scan(r.pool.QueryRow(ctx, `
		SELECT id, name, email, api_key, credits, is_active, created_at
		FROM clients WHERE id = $1
	`, id))
}

func (r *PostgresClientRepo) GetByAPIKey(ctx context.Context, apiKey string) (*model.Client, error) {
	return r.scan(r.pool.QueryRow(ctx, `
		SELECT id, name, email, api_key, credits, is_active, created_at
		FROM clients WHERE api_key = $1
	`, apiKey))
}

type PostgresLeadRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresLeadRepo(pool *pgxpool.Pool) *PostgresLeadRepo {
	return &PostgresLeadRepo{pool: pool}
}

const leadColumns = `id, client_id, phone_number, COALESCE(first_name, ''), COALESCE(last_name, ''),
	COALESCE(email, ''), custom_fields, created_at`

func scanLead(row pgx.Row) (*model.Lead, error) {
	var l model.Lead
	if err := row.Scan(&l.ID, &l.ClientID, &l.PhoneNumber, &l.FirstName, &l.LastName, &l.Email, &l.CustomFields, &l.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &l, nil
}

func (r *PostgresLeadRepo) Create(ctx context.Context, l *model.Lead) error {
	fields := l.CustomFields
	if fields == nil {
		fields = map[string]any{}
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO leads (client_id, phone_number, first_name, last_name, email, custom_fields)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6)
		RETURNING id, created_at
	`, l.ClientID, l.PhoneNumber, l.FirstName, l.LastName, l.Email, fields)
	if err := row.Scan(&l.ID, &l.CreatedAt); err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}
	return nil
}

func (r *PostgresLeadRepo) Get(ctx context.Context, clientID, id int64) (*model.Lead, error) {
	return scanLead(r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads WHERE id = $1 AND client_id = $2
	`, id, clientID))
}

func (r *PostgresLeadRepo) ListCreatedBetween(ctx context.Context, clientID int64, from, to time.Time) ([]model.Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE client_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at ASC, id ASC
	`, clientID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

type PostgresTemplateRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresTemplateRepo(pool *pgxpool.Pool) *PostgresTemplateRepo {
	return &PostgresTemplateRepo{pool: pool}
}

func (r *PostgresTemplateRepo) Create(ctx context.Context, t *model.Template) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO templates (client_id, name, content, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, t.ClientID, t.Name, t.Content, t.Active).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

func (r *PostgresTemplateRepo) Get(ctx context.Context, clientID, id int64) (*model.Template, error) {
	var t model.Template
	err := r.pool.QueryRow(ctx, `
		SELECT id, client_id, name, content, is_active, created_at
		FROM templates WHERE id = $1 AND client_id = $2
	`, id, clientID).Scan(&t.ID, &t.ClientID, &t.Name, &t.Content, &t.Active, &t.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

type PostgresTriggerRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresTriggerRepo(pool *pgxpool.Pool) *PostgresTriggerRepo {
	return &PostgresTriggerRepo{pool: pool}
}

const triggerColumns = `id, client_id, template_id, name, trigger_type, config, is_active, created_at`

func scanTrigger(row pgx.Row) (*model.Trigger, error) {
	var (
		t    model.Trigger
		kind string
		raw  []byte
	)
	if err := row.Scan(&t.ID, &t.ClientID, &t.TemplateID, &t.Name, &kind, &raw, &t.Active, &t.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	cfg, err := model.ParseTriggerConfig(model.TriggerKind(kind), raw)
	if err != nil {
		return nil, fmt.Errorf("trigger %d: %w", t.ID, err)
	}
	t.Config = cfg
	return &t, nil
}

func (r *PostgresTriggerRepo) Create(ctx context.Context, t *model.Trigger) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO triggers (client_id, template_id, name, trigger_type, config, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, t.ClientID, t.TemplateID, t.Name, string(t.Kind()), t.Config, t.Active)
	err := row.Scan(&t.ID, &t.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert trigger: %w", err)
	}
	return nil
}

func (r *PostgresTriggerRepo) list(ctx context.Context, query string, args ...any) ([]model.Trigger, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Trigger
	for rows.Next() {
		t, err := scanTrigger(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *PostgresTriggerRepo) ListActive(ctx context.Context, kind model.TriggerKind) ([]model.Trigger, error) {
	return r.list(ctx, `
		SELECT `+triggerColumns+`
		FROM triggers
		WHERE trigger_type = $1 AND is_active
		ORDER BY id ASC
	`, string(kind))
}

func (r *PostgresTriggerRepo) ListActiveForClient(ctx context.Context, clientID int64, kind model.TriggerKind) ([]model.Trigger, error) {
	return r.list(ctx, `
		SELECT `+triggerColumns+`
		FROM triggers
		WHERE client_id = $1 AND trigger_type = $2 AND is_active
		ORDER BY id ASC
	`, clientID, string(kind))
}

func (r *PostgresTriggerRepo) FindActiveWebhook(ctx context.Context, key string) (*model.Trigger, error) {
	return scanTrigger(r.pool.QueryRow(ctx, `
		SELECT `+triggerColumns+`
		FROM triggers
		WHERE trigger_type = 'webhook' AND is_active AND config->>'webhook_key' = $1
		ORDER BY id ASC
		LIMIT 1
	`, key))
}
