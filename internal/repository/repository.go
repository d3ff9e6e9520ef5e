// Пакет repository — слой доступа к данным PostgreSQL.
// Все запросы — чистый SQL через pgx, без ORM.
//
// Нарушения уникальности и отсутствующие записи транслируются в
// сентинельные ошибки ErrConflict / ErrNotFound; транзиентные сбои
// хранилища повторяются ограниченное число раз и после исчерпания
// попыток оборачиваются в ErrUnavailable. Выше этого слоя «сырые»
// ошибки PostgreSQL не видны.
package repository

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — конфликт уникальности (дублирующаяся запись).
	ErrConflict = errors.New("конфликт — запись уже существует")
	// ErrUnavailable — хранилище временно недоступно (повторы исчерпаны).
	ErrUnavailable = errors.New("хранилище временно недоступно")
)

// storageRetryAttempts — число повторов операции при транзиентном сбое.
const storageRetryAttempts = 3

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx, что позволяет
// использовать репозитории как внутри, так и вне транзакций.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxRunner позволяет выполнять операции в транзакции.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner создаёт TxRunner для управления транзакциями.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunInTx выполняет fn внутри транзакции.
// При ошибке fn — транзакция откатывается.
// При успехе — коммитится.
func (r *TxRunner) RunInTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // откат после коммита — no-op

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// isUniqueViolation проверяет, является ли ошибка нарушением уникальности PostgreSQL.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}
	return false
}

// isTransient проверяет, является ли ошибка транзиентным сбоем хранилища:
// обрыв соединения, таймаут, исчерпание пула. Такие ошибки безопасно повторять.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgerrcode.IsConnectionException(pgErr.Code)
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// withRetry выполняет op с ограниченным числом повторов при транзиентных
// сбоях хранилища. Прочие ошибки возвращаются сразу. Если повторы
// исчерпаны — ошибка оборачивается в ErrUnavailable.
func withRetry(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = time.Second

	err := backoff.Retry(func() error {
		if opErr := op(); opErr != nil {
			if isTransient(opErr) {
				return opErr
			}
			return backoff.Permanent(opErr)
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, storageRetryAttempts), ctx))

	if err != nil && isTransient(err) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
