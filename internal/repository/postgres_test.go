package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestWithRetry_SerializationFailureRetried(t *testing.T) {
	r := &PostgresRepository{}
	serErr := &pgconn.PgError{Code: pgerrcode.SerializationFailure}

	calls := 0
	err := r.withRetry(context.Background(), func() error {
		calls++
		return serErr
	})

	if !errors.Is(err, ErrTransient) {
		t.Fatalf("err = %v, want ErrTransient", err)
	}
	if calls != 4 {
		t.Fatalf("calls = %d, want 4", calls)
	}
}

func TestWithRetry_ConnectionErrorNotRerun(t *testing.T) {
	r := &PostgresRepository{}

	// Оборванное соединение могло скрыть успешный COMMIT,
	// поэтому транзакция не должна запускаться повторно.
	calls := 0
	err := r.withRetry(context.Background(), func() error {
		calls++
		return errors.New("write failed: connection reset by peer")
	})

	if !errors.Is(err, ErrTransient) {
		t.Fatalf("err = %v, want ErrTransient", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestWithRetry_BusinessErrorPassthrough(t *testing.T) {
	r := &PostgresRepository{}

	calls := 0
	err := r.withRetry(context.Background(), func() error {
		calls++
		return ErrNoCopiesAvailable
	})

	if !errors.Is(err, ErrNoCopiesAvailable) {
		t.Fatalf("err = %v, want ErrNoCopiesAvailable", err)
	}
	if errors.Is(err, ErrTransient) {
		t.Fatalf("business error must not be wrapped as transient: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestWithRetry_SucceedsAfterDeadlock(t *testing.T) {
	r := &PostgresRepository{}

	calls := 0
	err := r.withRetry(context.Background(), func() error {
		calls++
		if calls == 1 {
			return &pgconn.PgError{Code: pgerrcode.DeadlockDetected}
		}
		return nil
	})

	if err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}
