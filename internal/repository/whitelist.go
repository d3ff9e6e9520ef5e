package repository

import (
	"context"
	"fmt"

	"github.com/itsmorninghao/TELEPAL/internal/domain/model"
)

// WhitelistFilters — необязательные фильтры для List.
// Нулевые значения означают «без фильтра».
type WhitelistFilters struct {
	// Scope — фильтр по области действия (global | group)
	Scope model.ScopeType
	// ChatID — фильтр по группе (имеет смысл вместе со Scope = group)
	ChatID *int64
}

// WhitelistRepository — CRUD для таблицы whitelist.
type WhitelistRepository interface {
	// Add добавляет запись. Возвращает ErrConflict, если кортеж
	// (user_id, scope, chat_id) уже существует.
	Add(ctx context.Context, e *model.WhitelistEntry) error
	// Remove удаляет запись по кортежу. Возвращает ErrNotFound, если её нет.
	Remove(ctx context.Context, userID int64, scope model.ScopeType, chatID *int64) error
	// Exists проверяет наличие записи по кортежу.
	Exists(ctx context.Context, userID int64, scope model.ScopeType, chatID *int64) (bool, error)
	// List возвращает записи по фильтрам, по времени создания по возрастанию.
	List(ctx context.Context, filters WhitelistFilters) ([]*model.WhitelistEntry, error)
}

// whitelistRepo — реализация WhitelistRepository.
type whitelistRepo struct {
	db DBTX
}

// NewWhitelistRepository создаёт репозиторий белого списка.
func NewWhitelistRepository(db DBTX) WhitelistRepository {
	return &whitelistRepo{db: db}
}

const wlColumns = `id, user_id, scope_type, chat_id, created_by, created_at`

func (r *whitelistRepo) Add(ctx context.Context, e *model.WhitelistEntry) error {
	query := `
		INSERT INTO whitelist (user_id, scope_type, chat_id, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := withRetry(ctx, func() error {
		return r.db.QueryRow(ctx, query,
			e.UserID, string(e.Scope), e.ChatID, e.CreatedBy,
		).Scan(&e.ID, &e.CreatedAt)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("ошибка добавления в белый список: %w", err)
	}
	return nil
}

func (r *whitelistRepo) Remove(ctx context.Context, userID int64, scope model.ScopeType, chatID *int64) error {
	// IS NOT DISTINCT FROM — сравнение с учётом NULL для global-записей.
	query := `
		DELETE FROM whitelist
		WHERE user_id = $1 AND scope_type = $2 AND chat_id IS NOT DISTINCT FROM $3`

	var affected int64
	err := withRetry(ctx, func() error {
		tag, execErr := r.db.Exec(ctx, query, userID, string(scope), chatID)
		if execErr != nil {
			return execErr
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления из белого списка: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *whitelistRepo) Exists(ctx context.Context, userID int64, scope model.ScopeType, chatID *int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM whitelist
			WHERE user_id = $1 AND scope_type = $2 AND chat_id IS NOT DISTINCT FROM $3
		)`

	var exists bool
	err := withRetry(ctx, func() error {
		return r.db.QueryRow(ctx, query, userID, string(scope), chatID).Scan(&exists)
	})
	if err != nil {
		return false, fmt.Errorf("ошибка проверки белого списка: %w", err)
	}
	return exists, nil
}

func (r *whitelistRepo) List(ctx context.Context, filters WhitelistFilters) ([]*model.WhitelistEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM whitelist`, wlColumns)

	var (
		conds []string
		args  []any
	)
	if filters.Scope != "" {
		args = append(args, string(filters.Scope))
		conds = append(conds, fmt.Sprintf("scope_type = $%d", len(args)))
	}
	if filters.ChatID != nil {
		args = append(args, *filters.ChatID)
		conds = append(conds, fmt.Sprintf("chat_id = $%d", len(args)))
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY created_at ASC, id ASC"

	var result []*model.WhitelistEntry
	err := withRetry(ctx, func() error {
		rows, queryErr := r.db.Query(ctx, query, args...)
		if queryErr != nil {
			return queryErr
		}
		defer rows.Close()

		result = result[:0]
		for rows.Next() {
			e := &model.WhitelistEntry{}
			var scope string
			if scanErr := rows.Scan(
				&e.ID, &e.UserID, &scope, &e.ChatID, &e.CreatedBy, &e.CreatedAt,
			); scanErr != nil {
				return scanErr
			}
			e.Scope = model.ScopeType(scope)
			result = append(result, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка получения белого списка: %w", err)
	}
	return result, nil
}
