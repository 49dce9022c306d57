package credit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestMemoryLedger_DebitRejectsOverdraw(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := NewMemoryLedger()
	l.Set(1, 1)

	if err := l.Debit(ctx, 1, 1); err != nil {
		t.Fatalf("first debit: %v", err)
	}
	if err := l.Debit(ctx, 1, 1); !errors.Is(err, ErrInsufficient) {
		t.Fatalf("expected ErrInsufficient, got %v", err)
	}
	if bal, _ := l.Balance(ctx, 1); bal != 0 {
		t.Fatalf("expected balance 0, got %d", bal)
	}
}

func TestMemoryLedger_ConcurrentDebitsOneWinner(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := NewMemoryLedger()
	l.Set(7, 1)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Debit(ctx, 7, 1) == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("expected exactly one successful debit, got %d", wins.Load())
	}
}

func TestMemoryLedger_CreditAndUnknownClient(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := NewMemoryLedger()
	l.Set(1, 2)

	bal, err := l.Credit(ctx, 1, 5)
	if err != nil || bal != 7 {
		t.Fatalf("expected balance 7, got %d err=%v", bal, err)
	}
	if _, err := l.Credit(ctx, 1, 0); err == nil {
		t.Fatalf("expected error for non-positive amount")
	}
	if _, err := l.Balance(ctx, 99); !errors.Is(err, ErrUnknownClient) {
		t.Fatalf("expected ErrUnknownClient, got %v", err)
	}
	if ok, _ := l.HasCredit(ctx, 99); ok {
		t.Fatalf("unknown client must not have credit")
	}
}
