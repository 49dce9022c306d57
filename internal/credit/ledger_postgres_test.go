package credit

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/LeventeLantos/sms-remarketing/internal/repo"
)

func TestPostgresLedger_ConcurrentDebitsOneWinner(t *testing.T) {
	url := os.Getenv("POSTGRES_URL")
	if url == "" {
		t.Skip("POSTGRES_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := repo.NewPool(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()
	if err := repo.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	tag := uuid.NewString()
	var clientID int64
	if err := pool.QueryRow(ctx, `
		INSERT INTO clients (name, email, api_key, credits) VALUES ($1, $2, $3, 1) RETURNING id
	`, "ledger "+tag, tag+"@example.test", "key-"+tag).Scan(&clientID); err != nil {
		t.Fatalf("insert client: %v", err)
	}
	defer func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM clients WHERE id = $1`, clientID)
	}()

	l := NewPostgresLedger(pool)

	var wins, refused atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Debit(ctx, clientID, 1)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrInsufficient):
				refused.Add(1)
			default:
				t.Errorf("debit: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 || refused.Load() != 19 {
		t.Fatalf("expected 1 success and 19 refusals, got %d and %d", wins.Load(), refused.Load())
	}
	bal, err := l.Balance(ctx, clientID)
	if err != nil || bal != 0 {
		t.Fatalf("expected balance 0, got %d err=%v", bal, err)
	}
	if ok, _ := l.HasCredit(ctx, clientID); ok {
		t.Fatalf("expected no credit left")
	}
}
