package credit

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrInsufficient  = errors.New("insufficient credits")
	ErrUnknownClient = errors.New("unknown client")
)

// Ledger tracks prepaid send credits per client. Debit is atomic: two
// concurrent debits against a balance of one cannot both succeed.
type Ledger interface {
	HasCredit(ctx context.Context, clientID int64) (bool, error)
	Debit(ctx context.Context, clientID int64, amount int) error
	Credit(ctx context.Context, clientID int64, amount int) (int, error)
	Balance(ctx context.Context, clientID int64) (int, error)
}

type PostgresLedger struct {
	pool *pgxpool.Pool
}

func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

func (l *PostgresLedger) HasCredit(ctx context.Context, clientID int64) (bool, error) {
	bal, err := l.Balance(ctx, clientID)
	if err != nil {
		return false, err
	}
	return bal > 0, nil
}

func (l *PostgresLedger) Debit(ctx context.Context, clientID int64, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("debit amount must be positive, got %d", amount)
	}
	tag, err := l.pool.Exec(ctx, `
		UPDATE clients
		SET credits = credits - $2
		WHERE id = $1 AND credits >= $2
	`, clientID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficient
	}
	return nil
}

func (l *PostgresLedger) Credit(ctx context.Context, clientID int64, amount int) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("credit amount must be positive, got %d", amount)
	}
	var bal int
	err := l.pool.QueryRow(ctx, `
		UPDATE clients
		SET credits = credits + $2
		WHERE id = $1
		RETURNING credits
	`, clientID, amount).Scan(&bal)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrUnknownClient
	}
	return bal, err
}

func (l *PostgresLedger) Balance(ctx context.Context, clientID int64) (int, error) {
	var bal int
	err := l.pool.QueryRow(ctx, `SELECT credits FROM clients WHERE id = $1`, clientID).Scan(&bal)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrUnknownClient
	}
	return bal, err
}

type MemoryLedger struct {
	mu       sync.Mutex
	balances map[int64]int
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{balances: map[int64]int{}}
}

func (l *MemoryLedger) Set(clientID int64, balance int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[clientID] = balance
}

func (l *MemoryLedger) HasCredit(ctx context.Context, clientID int64) (bool, error) {
	bal, err := l.Balance(ctx, clientID)
	return bal > 0, err
}

func (l *MemoryLedger) Debit(_ context.Context, clientID int64, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("debit amount must be positive, got %d", amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	bal, ok := l.balances[clientID]
	if !ok || bal < amount {
		return ErrInsufficient
	}
	l.balances[clientID] = bal - amount
	return nil
}

func (l *MemoryLedger) Credit(_ context.Context, clientID int64, amount int) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("credit amount must be positive, got %d", amount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	bal, ok := l.balances[clientID]
	if !ok {
		return 0, ErrUnknownClient
	}
	bal += amount
	l.balances[clientID] = bal
	return bal, nil
}

func (l *MemoryLedger) Balance(_ context.Context, clientID int64) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	bal, ok := l.balances[clientID]
	if !ok {
		return 0, ErrUnknownClient
	}
	return bal, nil
}

var (
	_ Ledger = (*PostgresLedger)(nil)
	_ Ledger = (*MemoryLedger)(nil)
)
