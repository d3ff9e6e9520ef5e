package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/itsmorninghao/TELEPAL/internal/domain/model"
)

// GroupRepository — CRUD для таблицы authorized_groups.
type GroupRepository interface {
	// Authorize создаёт или обновляет запись об авторизации группы (идемпотентно).
	Authorize(ctx context.Context, g *model.AuthorizedGroup) error
	// Revoke удаляет авторизацию группы. Возвращает ErrNotFound, если её нет.
	Revoke(ctx context.Context, chatID int64) error
	// IsAuthorized проверяет, авторизована ли группа.
	IsAuthorized(ctx context.Context, chatID int64) (bool, error)
	// Get возвращает запись об авторизации группы.
	Get(ctx context.Context, chatID int64) (*model.AuthorizedGroup, error)
	// List возвращает все авторизованные группы по времени авторизации по возрастанию.
	List(ctx context.Context) ([]*model.AuthorizedGroup, error)
}

// groupRepo — реализация GroupRepository.
type groupRepo struct {
	db DBTX
}

// NewGroupRepository создаёт репозиторий авторизованных групп.
func NewGroupRepository(db DBTX) GroupRepository {
	return &groupRepo{db: db}
}

const agColumns = `chat_id, chat_title, authorized_by, authorized_at`

func (r *groupRepo) Authorize(ctx context.Context, g *model.AuthorizedGroup) error {
	// Повторная авторизация обновляет название и автора, сохраняя
	// исходное время авторизации.
	query := `
		INSERT INTO authorized_groups (chat_id, chat_title, authorized_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (chat_id) DO UPDATE SET
			chat_title = COALESCE(NULLIF(EXCLUDED.chat_title, ''), authorized_groups.chat_title),
			authorized_by = EXCLUDED.authorized_by
		RETURNING authorized_at`

	err := withRetry(ctx, func() error {
		return r.db.QueryRow(ctx, query,
			g.ChatID, g.ChatTitle, g.AuthorizedBy,
		).Scan(&g.AuthorizedAt)
	})
	if err != nil {
		return fmt.Errorf("ошибка авторизации группы: %w", err)
	}
	return nil
}

func (r *groupRepo) Revoke(ctx context.Context, chatID int64) error {
	var affected int64
	err := withRetry(ctx, func() error {
		tag, execErr := r.db.Exec(ctx,
			`DELETE FROM authorized_groups WHERE chat_id = $1`, chatID)
		if execErr != nil {
			return execErr
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return fmt.Errorf("ошибка отзыва авторизации группы: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *groupRepo) IsAuthorized(ctx context.Context, chatID int64) (bool, error) {
	var exists bool
	err := withRetry(ctx, func() error {
		return r.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM authorized_groups WHERE chat_id = $1)`, chatID,
		).Scan(&exists)
	})
	if err != nil {
		return false, fmt.Errorf("ошибка проверки авторизации группы: %w", err)
	}
	return exists, nil
}

func (r *groupRepo) Get(ctx context.Context, chatID int64) (*model.AuthorizedGroup, error) {
	query := fmt.Sprintf(`SELECT %s FROM authorized_groups WHERE chat_id = $1`, agColumns)

	g := &model.AuthorizedGroup{}
	err := withRetry(ctx, func() error {
		return r.db.QueryRow(ctx, query, chatID).Scan(
			&g.ChatID, &g.ChatTitle, &g.AuthorizedBy, &g.AuthorizedAt,
		)
	})
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка чтения авторизованной группы: %w", err)
	}
	return g, nil
}

func (r *groupRepo) List(ctx context.Context) ([]*model.AuthorizedGroup, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM authorized_groups
		ORDER BY authorized_at ASC, chat_id ASC`, agColumns)

	var result []*model.AuthorizedGroup
	err := withRetry(ctx, func() error {
		rows, queryErr := r.db.Query(ctx, query)
		if queryErr != nil {
			return queryErr
		}
		defer rows.Close()

		result = result[:0]
		for rows.Next() {
			g := &model.AuthorizedGroup{}
			if scanErr := rows.Scan(
				&g.ChatID, &g.ChatTitle, &g.AuthorizedBy, &g.AuthorizedAt,
			); scanErr != nil {
				return scanErr
			}
			result = append(result, g)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка групп: %w", err)
	}
	return result, nil
}
