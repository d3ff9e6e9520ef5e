// admin.go — административные операции над ролями, белым списком
// и авторизованными группами. Пишущая сторона авторизационного ядра;
// вызывается шлюзом только после положительного вердикта Service.
package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/itsmorninghao/TELEPAL/internal/domain/model"
	"github.com/itsmorninghao/TELEPAL/internal/domain/role"
	"github.com/itsmorninghao/TELEPAL/internal/repository"
)

// Admin — операции управления авторизационными данными.
type Admin struct {
	perms  repository.PermissionRepository
	wl     repository.WhitelistRepository
	groups repository.GroupRepository
	runner *repository.TxRunner
	logger *slog.Logger
}

// NewAdmin создаёт пишущую сторону авторизационного ядра.
// runner может быть nil — тогда Bootstrap применяет записи вне транзакции
// (используется в unit-тестах с репозиториями в памяти).
func NewAdmin(
	perms repository.PermissionRepository,
	wl repository.WhitelistRepository,
	groups repository.GroupRepository,
	runner *repository.TxRunner,
	logger *slog.Logger,
) *Admin {
	return &Admin{
		perms:  perms,
		wl:     wl,
		groups: groups,
		runner: runner,
		logger: logger.With(slog.String("component", "auth_admin")),
	}
}

// Bootstrap назначает роль super_admin начальным администраторам.
// Идемпотентен: повторный запуск не дублирует записи и не понижает
// уже назначенные роли.
func (a *Admin) Bootstrap(ctx context.Context, adminIDs []int64) error {
	if len(adminIDs) == 0 {
		a.logger.Warn("Список начальных супер-админов пуст, bootstrap пропущен")
		return nil
	}

	apply := func(repo repository.PermissionRepository) error {
		for _, id := range adminIDs {
			if err := repo.EnsureSuperAdmin(ctx, id); err != nil {
				return fmt.Errorf("bootstrap супер-админа %d: %w", id, err)
			}
		}
		return nil
	}

	var err error
	if a.runner != nil {
		// Все записи применяются атомарно.
		err = a.runner.RunInTx(ctx, func(tx pgx.Tx) error {
			return apply(repository.NewPermissionRepository(tx))
		})
	} else {
		err = apply(a.perms)
	}
	if err != nil {
		return err
	}

	a.logger.Info("Начальные супер-админы инициализированы",
		slog.Int("count", len(adminIDs)),
	)
	return nil
}

// SetRole назначает пользователю роль. Возвращает прежнюю роль.
func (a *Admin) SetRole(ctx context.Context, targetID int64, newRole role.Role, grantedBy int64) (role.Role, error) {
	prior, err := a.perms.SetRole(ctx, targetID, newRole, grantedBy)
	if err != nil {
		return role.None, err
	}
	a.logger.Info("Роль изменена",
		slog.Int64("target_id", targetID),
		slog.String("prior_role", prior.String()),
		slog.String("new_role", newRole.String()),
		slog.Int64("granted_by", grantedBy),
	)
	return prior, nil
}

// GetRole возвращает текущую роль пользователя.
func (a *Admin) GetRole(ctx context.Context, userID int64) (role.Role, error) {
	return a.perms.GetRole(ctx, userID)
}

// AddWhitelist добавляет запись белого списка.
// Возвращает repository.ErrConflict, если кортеж уже существует.
func (a *Admin) AddWhitelist(ctx context.Context, userID int64, scope model.ScopeType, chatID *int64, createdBy int64) error {
	entry := &model.WhitelistEntry{
		UserID:    userID,
		Scope:     scope,
		ChatID:    chatID,
		CreatedBy: createdBy,
	}
	if err := a.wl.Add(ctx, entry); err != nil {
		return err
	}
	a.logger.Info("Пользователь добавлен в белый список",
		slog.Int64("user_id", userID),
		slog.String("scope", string(scope)),
		slog.Int64("created_by", createdBy),
	)
	return nil
}

// RemoveWhitelist удаляет запись белого списка.
// Возвращает repository.ErrNotFound, если записи нет.
func (a *Admin) RemoveWhitelist(ctx context.Context, userID int64, scope model.ScopeType, chatID *int64) error {
	if err := a.wl.Remove(ctx, userID, scope, chatID); err != nil {
		return err
	}
	a.logger.Info("Пользователь удалён из белого списка",
		slog.Int64("user_id", userID),
		slog.String("scope", string(scope)),
	)
	return nil
}

// ListWhitelist возвращает записи белого списка по фильтрам,
// по времени создания по возрастанию.
func (a *Admin) ListWhitelist(ctx context.Context, filters repository.WhitelistFilters) ([]*model.WhitelistEntry, error) {
	return a.wl.List(ctx, filters)
}

// AuthorizeGroup авторизует группу (идемпотентно).
func (a *Admin) AuthorizeGroup(ctx context.Context, chatID int64, chatTitle string, authorizedBy int64) error {
	g := &model.AuthorizedGroup{
		ChatID:       chatID,
		ChatTitle:    chatTitle,
		AuthorizedBy: authorizedBy,
	}
	if err := a.groups.Authorize(ctx, g); err != nil {
		return err
	}
	a.logger.Info("Группа авторизована",
		slog.Int64("chat_id", chatID),
		slog.Int64("authorized_by", authorizedBy),
	)
	return nil
}

// RevokeGroup отзывает авторизацию группы.
// Возвращает repository.ErrNotFound, если группа не авторизована.
func (a *Admin) RevokeGroup(ctx context.Context, chatID int64) error {
	if err := a.groups.Revoke(ctx, chatID); err != nil {
		return err
	}
	a.logger.Info("Авторизация группы отозвана", slog.Int64("chat_id", chatID))
	return nil
}

// ListGroups возвращает авторизованные группы по времени авторизации
// по возрастанию.
func (a *Admin) ListGroups(ctx context.Context) ([]*model.AuthorizedGroup, error) {
	return a.groups.List(ctx)
}
