package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/itsmorninghao/TELEPAL/internal/domain/model"
	"github.com/itsmorninghao/TELEPAL/internal/domain/role"
)

// PermissionRepository — CRUD для таблицы permissions.
type PermissionRepository interface {
	// SetRole создаёт или обновляет роль пользователя (идемпотентно).
	// Возвращает прежнюю роль (none, если записи не было).
	SetRole(ctx context.Context, userID int64, r role.Role, grantedBy int64) (role.Role, error)
	// GetRole возвращает роль пользователя; none, если записи нет.
	GetRole(ctx context.Context, userID int64) (role.Role, error)
	// Get возвращает полную запись Permission.
	Get(ctx context.Context, userID int64) (*model.Permission, error)
	// EnsureSuperAdmin создаёт запись super_admin, если её ещё нет.
	// Существующая запись не изменяется и не понижается.
	EnsureSuperAdmin(ctx context.Context, userID int64) error
}

// permissionRepo — реализация PermissionRepository.
type permissionRepo struct {
	db DBTX
}

// NewPermissionRepository создаёт репозиторий ролей.
func NewPermissionRepository(db DBTX) PermissionRepository {
	return &permissionRepo{db: db}
}

func (r *permissionRepo) SetRole(ctx context.Context, userID int64, newRole role.Role, grantedBy int64) (role.Role, error) {
	// CTE prior читает прежнюю роль в том же операторе, что и upsert:
	// конкурентные SetRole по одному user_id сериализуются на PK.
	query := `
		WITH prior AS (
			SELECT role FROM permissions WHERE user_id = $1
		)
		INSERT INTO permissions (user_id, role, granted_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			role = EXCLUDED.role,
			granted_by = EXCLUDED.granted_by,
			updated_at = now()
		RETURNING (SELECT role FROM prior)`

	var prev *string
	err := withRetry(ctx, func() error {
		return r.db.QueryRow(ctx, query, userID, newRole.String(), grantedBy).Scan(&prev)
	})
	if err != nil {
		return role.None, fmt.Errorf("ошибка upsert роли: %w", err)
	}
	if prev == nil {
		return role.None, nil
	}
	prior, ok := role.Parse(*prev)
	if !ok {
		return role.None, fmt.Errorf("некорректная роль в БД: %q", *prev)
	}
	return prior, nil
}

func (r *permissionRepo) GetRole(ctx context.Context, userID int64) (role.Role, error) {
	var raw string
	err := withRetry(ctx, func() error {
		return r.db.QueryRow(ctx,
			`SELECT role FROM permissions WHERE user_id = $1`, userID,
		).Scan(&raw)
	})
	if err != nil {
		if err == pgx.ErrNoRows {
			return role.None, nil
		}
		return role.None, fmt.Errorf("ошибка чтения роли: %w", err)
	}
	res, ok := role.Parse(raw)
	if !ok {
		return role.None, fmt.Errorf("некорректная роль в БД: %q", raw)
	}
	return res, nil
}

func (r *permissionRepo) Get(ctx context.Context, userID int64) (*model.Permission, error) {
	query := `
		SELECT user_id, role, granted_by, granted_at, updated_at
		FROM permissions
		WHERE user_id = $1`

	p := &model.Permission{}
	var raw string
	err := withRetry(ctx, func() error {
		return r.db.QueryRow(ctx, query, userID).Scan(
			&p.UserID, &raw, &p.GrantedBy, &p.GrantedAt, &p.UpdatedAt,
		)
	})
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка чтения permission: %w", err)
	}
	p.Role, _ = role.Parse(raw)
	return p, nil
}

func (r *permissionRepo) EnsureSuperAdmin(ctx context.Context, userID int64) error {
	// Повторный bootstrap не дублирует запись; существующая роль может
	// только повыситься до super_admin, понижение невозможно.
	query := `
		INSERT INTO permissions (user_id, role, granted_by)
		VALUES ($1, $2, $1)
		ON CONFLICT (user_id) DO UPDATE SET
			role = EXCLUDED.role,
			updated_at = now()
		WHERE permissions.role <> EXCLUDED.role`

	err := withRetry(ctx, func() error {
		_, execErr := r.db.Exec(ctx, query, userID, role.SuperAdmin.String())
		return execErr
	})
	if err != nil {
		return fmt.Errorf("ошибка инициализации super_admin: %w", err)
	}
	return nil
}
