package auth

import (
	"github.com/itsmorninghao/TELEPAL/internal/domain/model"
	"github.com/itsmorninghao/TELEPAL/internal/domain/role"
)

// Action — запрошенное действие, классифицированное шлюзом.
type Action string

// Действия командной поверхности. Каждое административное действие
// соответствует ровно одной команде транспортного слоя.
const (
	// ActionChat — обычное диалоговое сообщение.
	ActionChat Action = "chat"
	// ActionHelp — запрос списка доступных команд.
	ActionHelp Action = "help"
	// ActionSetRole — назначение роли пользователю.
	ActionSetRole Action = "permission_set"
	// ActionAuthorizeGroup — авторизация группы.
	ActionAuthorizeGroup Action = "group_authorize"
	// ActionRevokeGroup — отзыв авторизации группы.
	ActionRevokeGroup Action = "group_revoke"
	// ActionListGroups — список авторизованных групп.
	ActionListGroups Action = "group_list"
	// ActionWhitelistAdd — добавление в белый список.
	ActionWhitelistAdd Action = "whitelist_add"
	// ActionWhitelistRemove — удаление из белого списка.
	ActionWhitelistRemove Action = "whitelist_remove"
	// ActionWhitelistList — просмотр белого списка.
	ActionWhitelistList Action = "whitelist_list"
)

// Class — класс действия, определяющий применимое правило доступа.
type Class int

const (
	// ClassOrdinary — обычный диалоговый доступ (правило 4).
	ClassOrdinary Class = iota
	// ClassGroupAdmin — управление белыми списками (правило 3).
	ClassGroupAdmin
	// ClassSuperAdmin — команды только для супер-админа в приватном чате (правило 2).
	ClassSuperAdmin
)

// Class возвращает класс действия.
func (a Action) Class() Class {
	switch a {
	case ActionSetRole, ActionAuthorizeGroup, ActionRevokeGroup, ActionListGroups:
		return ClassSuperAdmin
	case ActionWhitelistAdd, ActionWhitelistRemove, ActionWhitelistList:
		return ClassGroupAdmin
	}
	return ClassOrdinary
}

// Request — контекст запроса на доступ.
type Request struct {
	// UserID — идентификатор автора сообщения
	UserID int64
	// ChatID — идентификатор чата
	ChatID int64
	// ChatType — тип чата
	ChatType model.ChatType
	// Action — запрошенное действие
	Action Action
}

// Reason — причина вердикта; используется для логов и текста отказа.
type Reason string

const (
	// ReasonRoleMatch — доступ по повышенной роли.
	ReasonRoleMatch Reason = "role_match"
	// ReasonWhitelistGlobal — доступ по global-записи белого списка.
	ReasonWhitelistGlobal Reason = "whitelist_global"
	// ReasonWhitelistGroup — доступ по group-записи белого списка.
	ReasonWhitelistGroup Reason = "whitelist_group"
	// ReasonInsufficientRole — недостаточная роль для действия.
	ReasonInsufficientRole Reason = "insufficient_role"
	// ReasonWrongChatType — действие недоступно в этом типе чата.
	ReasonWrongChatType Reason = "wrong_chat_type"
	// ReasonGroupNotAuthorized — группа не авторизована.
	ReasonGroupNotAuthorized Reason = "group_not_authorized"
	// ReasonNotWhitelisted — пользователь не в белом списке.
	ReasonNotWhitelisted Reason = "not_whitelisted"
)

// Verdict — результат проверки доступа.
type Verdict struct {
	// Allow — разрешён ли доступ
	Allow bool
	// Reason — причина решения
	Reason Reason
	// Role — роль автора на момент решения
	Role role.Role
}

func allow(reason Reason, r role.Role) Verdict {
	return Verdict{Allow: true, Reason: reason, Role: r}
}

func deny(reason Reason, r role.Role) Verdict {
	return Verdict{Allow: false, Reason: reason, Role: r}
}
