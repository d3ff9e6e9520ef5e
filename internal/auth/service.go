// Пакет auth — авторизационное ядро TELEPAL.
// Service принимает решения о доступе (только чтение), Admin выполняет
// административные операции над ролями, белым списком и группами.
package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/itsmorninghao/TELEPAL/internal/domain/model"
	"github.com/itsmorninghao/TELEPAL/internal/domain/role"
	"github.com/itsmorninghao/TELEPAL/internal/repository"
)

// Service — сервис принятия решений о доступе.
// Не выполняет записей: вердикт выводится только из текущего состояния
// хранилища и контекста запроса.
type Service struct {
	perms  repository.PermissionRepository
	wl     repository.WhitelistRepository
	groups repository.GroupRepository
	logger *slog.Logger
}

// NewService создаёт сервис принятия решений.
func NewService(
	perms repository.PermissionRepository,
	wl repository.WhitelistRepository,
	groups repository.GroupRepository,
	logger *slog.Logger,
) *Service {
	return &Service{
		perms:  perms,
		wl:     wl,
		groups: groups,
		logger: logger.With(slog.String("component", "auth_service")),
	}
}

// Decide принимает решение о доступе по правилам, в строгом порядке:
//
//  1. Супер-админ — доступ везде и ко всему.
//  2. Команды класса super_admin для всех остальных закрыты —
//     проверяется до белых списков, чтобы привилегированные операции
//     были недостижимы через whitelist.
//  3. Команды класса group_admin доступны группным админам бота
//     в приватном чате (с явной целевой группой) и в группах.
//  4. Обычный диалоговый доступ: в приватном чате — по роли или
//     global-записи; в группе — сначала безусловная проверка
//     авторизации группы, затем роль / global- / group-запись.
func (s *Service) Decide(ctx context.Context, req Request) (Verdict, error) {
	actorRole, err := s.perms.GetRole(ctx, req.UserID)
	if err != nil {
		return Verdict{}, fmt.Errorf("чтение роли: %w", err)
	}

	v, err := s.decide(ctx, req, actorRole)
	if err != nil {
		return Verdict{}, err
	}

	observeDecision(v)
	s.logger.Debug("Решение о доступе",
		slog.Int64("user_id", req.UserID),
		slog.Int64("chat_id", req.ChatID),
		slog.String("chat_type", string(req.ChatType)),
		slog.String("action", string(req.Action)),
		slog.Bool("allow", v.Allow),
		slog.String("reason", string(v.Reason)),
	)
	return v, nil
}

func (s *Service) decide(ctx context.Context, req Request, actorRole role.Role) (Verdict, error) {
	// Правило 1: супер-админ.
	if actorRole == role.SuperAdmin {
		return allow(ReasonRoleMatch, actorRole), nil
	}

	switch req.Action.Class() {
	case ClassSuperAdmin:
		// Правило 2: роль проверяется раньше типа чата.
		if actorRole != role.SuperAdmin {
			return deny(ReasonInsufficientRole, actorRole), nil
		}
		if req.ChatType != model.ChatPrivate {
			return deny(ReasonWrongChatType, actorRole), nil
		}
		return allow(ReasonRoleMatch, actorRole), nil

	case ClassGroupAdmin:
		// Правило 3: управление белым списком — роль бота, не платформы.
		if actorRole == role.GroupAdmin {
			return allow(ReasonRoleMatch, actorRole), nil
		}
		return deny(ReasonInsufficientRole, actorRole), nil
	}

	// Правило 4: обычный диалоговый доступ.
	if req.ChatType == model.ChatPrivate {
		if actorRole.Elevated() {
			return allow(ReasonRoleMatch, actorRole), nil
		}
		global, err := s.wl.Exists(ctx, req.UserID, model.ScopeGlobal, nil)
		if err != nil {
			return Verdict{}, fmt.Errorf("проверка global-записи: %w", err)
		}
		if global {
			return allow(ReasonWhitelistGlobal, actorRole), nil
		}
		return deny(ReasonNotWhitelisted, actorRole), nil
	}

	// Группа: авторизация группы — безусловная предпосылка, whitelist
	// её не заменяет.
	authorized, err := s.groups.IsAuthorized(ctx, req.ChatID)
	if err != nil {
		return Verdict{}, fmt.Errorf("проверка авторизации группы: %w", err)
	}
	if !authorized {
		return deny(ReasonGroupNotAuthorized, actorRole), nil
	}

	if actorRole.Elevated() {
		return allow(ReasonRoleMatch, actorRole), nil
	}
	global, err := s.wl.Exists(ctx, req.UserID, model.ScopeGlobal, nil)
	if err != nil {
		return Verdict{}, fmt.Errorf("проверка global-записи: %w", err)
	}
	if global {
		return allow(ReasonWhitelistGlobal, actorRole), nil
	}
	scoped, err := s.wl.Exists(ctx, req.UserID, model.ScopeGroup, &req.ChatID)
	if err != nil {
		return Verdict{}, fmt.Errorf("проверка group-записи: %w", err)
	}
	if scoped {
		return allow(ReasonWhitelistGroup, actorRole), nil
	}
	return deny(ReasonNotWhitelisted, actorRole), nil
}
