package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// connResetErr имитирует обрыв соединения: реализует net.Error,
// поэтому isTransient считает его повторяемым.
type connResetErr struct{}

func (connResetErr) Error() string   { return "connection reset by peer" }
func (connResetErr) Timeout() bool   { return false }
func (connResetErr) Temporary() bool { return true }

func TestWithRetry_TransientRecovered(t *testing.T) {
	ctx := context.Background()
	calls := 0

	err := withRetry(ctx, func() error {
		calls++
		if calls < 3 {
			return connResetErr{}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("withRetry: %v", err)
	}
	if calls != 3 {
		t.Errorf("вызовов = %d, ожидалось 3", calls)
	}
}

func TestWithRetry_TransientExhausted(t *testing.T) {
	ctx := context.Background()
	calls := 0

	err := withRetry(ctx, func() error {
		calls++
		return connResetErr{}
	})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, ожидался ErrUnavailable", err)
	}
	// Исходная попытка плюс storageRetryAttempts повторов.
	if want := storageRetryAttempts + 1; calls != want {
		t.Errorf("вызовов = %d, ожидалось %d", calls, want)
	}
}

func TestWithRetry_PermanentNotRetried(t *testing.T) {
	ctx := context.Background()
	calls := 0
	uniqueErr := &pgconn.PgError{Code: pgerrcode.UniqueViolation}

	err := withRetry(ctx, func() error {
		calls++
		return uniqueErr
	})
	if !errors.Is(err, uniqueErr) {
		t.Errorf("err = %v, ожидалась исходная ошибка", err)
	}
	if errors.Is(err, ErrUnavailable) {
		t.Error("постоянная ошибка обёрнута в ErrUnavailable")
	}
	if calls != 1 {
		t.Errorf("вызовов = %d, повторы для постоянной ошибки недопустимы", calls)
	}
}

func TestWithRetry_ConnectionExceptionRetried(t *testing.T) {
	ctx := context.Background()
	calls := 0

	err := withRetry(ctx, func() error {
		calls++
		if calls == 1 {
			return &pgconn.PgError{Code: pgerrcode.ConnectionFailure}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("withRetry: %v", err)
	}
	if calls != 2 {
		t.Errorf("вызовов = %d, ожидалось 2", calls)
	}
}
