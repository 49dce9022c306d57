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

const uniqueViolation = "23505"

type PostgresMessageRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresMessageRepo(pool *pgxpool.Pool) *PostgresMessageRepo {
	return &PostgresMessageRepo{pool: pool}
}

const messageColumns = `id, client_id, lead_id, template_id, to_number, content, status,
	provider_message_id, error_message, created_at, sent_at, delivered_at`

func scanMessage(row pgx.Row) (*model.Message, error) {
	var m model.Message
	var status string
	if err := row.Scan(
		&m.ID,
		&m.ClientID,
		&m.LeadID,
		&m.TemplateID,
		&m.ToNumber,
		&m.Content,
		&status,
		&m.ProviderMessageID,
		&m.ErrorMessage,
		&m.CreatedAt,
		&m.SentAt,
		&m.DeliveredAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	m.Status = model.Status(status)
	return &m, nil
}

func (r *PostgresMessageRepo) Create(ctx context.Context, m *model.Message) error {
	if m.Status == "" {
		m.Status = model.Pending
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO messages (client_id, lead_id, template_id, to_number, content, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, m.ClientID, m.LeadID, m.TemplateID, m.ToNumber, m.Content, string(m.Status))
	if err := row.Scan(&m.ID, &m.CreatedAt); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *PostgresMessageRepo) Get(ctx context.Context, clientID, id int64) (*model.Message, error) {
	return scanMessage(r.pool.QueryRow(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE id = $1 AND client_id = $2
	`, id, clientID))
}

func (r *PostgresMessageRepo) GetByID(ctx context.Context, id int64) (*model.Message, error) {
	return scanMessage(r.pool.QueryRow(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE id = $1
	`, id))
}

func (r *PostgresMessageRepo) GetByProviderID(ctx context.Context, providerID string) (*model.Message, error) {
	return scanMessage(r.pool.QueryRow(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE provider_message_id = $1
	`, providerID))
}

func (r *PostgresMessageRepo) List(ctx context.Context, clientID int64, limit, offset int) ([]model.Message, error) {
	limit, offset = normalizePage(limit, offset)

	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE client_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, clientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (r *PostgresMessageRepo) MarkQueued(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE messages
		SET status = 'queued'
		WHERE id = $1 AND status = 'pending'
	`, id)
	return err
}

func (r *PostgresMessageRepo) ClaimQueued(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE messages
		SET status = 'pending'
		WHERE id = $1 AND status = 'queued'
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkSent records the provider id and send time. The status only moves to
// sent when no callback has already advanced the message further.
func (r *PostgresMessageRepo) MarkSent(ctx context.Context, id int64, providerID string, sentAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE messages
		SET status = CASE WHEN status IN ('pending', 'queued') THEN 'sent' ELSE status END,
		    provider_message_id = $2,
		    sent_at = COALESCE(sent_at, $3)
		WHERE id = $1 AND status <> 'failed'
	`, id, providerID, sentAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("provider id %q: %w", providerID, ErrConflict)
	}
	return err
}

func (r *PostgresMessageRepo) MarkFailed(ctx context.Context, id int64, reason string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE messages
		SET status = 'failed',
		    error_message = $2
		WHERE id = $1 AND status IN ('pending', 'queued')
	`, id, reason)
	return err
}

func (r *PostgresMessageRepo) ApplyStatus(ctx context.Context, id int64, from model.Status, u model.StatusUpdate) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE messages
		SET status = $3,
		    error_message = $4,
		    delivered_at = $5
		WHERE id = $1 AND status = $2
		  AND (status <> 'delivered' OR delivered_at IS NULL)
	`, id, string(from), string(u.Status), u.ErrorMessage, u.DeliveredAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
