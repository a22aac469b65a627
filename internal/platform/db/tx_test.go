package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
)

// fakeTx satisfies pgx.Tx for context storage tests. Methods are never
// invoked.
type fakeTx struct {
	pgx.Tx
}

func TestTxFromContext_Nil(t *testing.T) {
	tx := TxFromContext(context.Background())
	if tx != nil {
		t.Error("expected nil tx from empty context")
	}
}

func TestTxFromContext_WithWrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), DBTxKey, "not-a-tx")
	tx := TxFromContext(ctx)
	if tx != nil {
		t.Error("expected nil when context value is wrong type")
	}
}

func TestWithTx_RoundTrip(t *testing.T) {
	tx := &fakeTx{}
	ctx := WithTx(context.Background(), tx)

	got := TxFromContext(ctx)
	if got != tx {
		t.Error("expected the same tx back from context")
	}
}

func TestConnFromContext_Nil(t *testing.T) {
	conn := ConnFromContext(context.Background())
	if conn != nil {
		t.Error("expected nil conn from empty context")
	}
}

func TestConnFromContext_WithWrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), DBConnKey, "not-a-conn")
	conn := ConnFromContext(ctx)
	if conn != nil {
		t.Error("expected nil when context value is wrong type")
	}
}

func TestInTx_JoinsExistingTransaction(t *testing.T) {
	tx := &fakeTx{}
	ctx := WithTx(context.Background(), tx)

	called := 0
	err := InTx(ctx, nil, func(inner context.Context) error {
		called++
		if TxFromContext(inner) != tx {
			t.Error("expected inner context to carry the outer transaction")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called != 1 {
		t.Errorf("expected fn to run once, ran %d times", called)
	}
}

func TestInTx_JoinsExistingTransaction_PropagatesError(t *testing.T) {
	tx := &fakeTx{}
	ctx := WithTx(context.Background(), tx)

	want := errors.New("boom")
	err := InTx(ctx, nil, func(context.Context) error { return want })
	if !errors.Is(err, want) {
		t.Errorf("expected fn error to propagate, got %v", err)
	}
}
