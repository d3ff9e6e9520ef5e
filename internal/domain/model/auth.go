// Пакет model — доменные модели TELEPAL.
package model

import (
	"time"

	"github.com/itsmorninghao/TELEPAL/internal/domain/role"
)

// ChatType — тип чата, в котором получено сообщение.
type ChatType string

const (
	// ChatPrivate — приватный диалог пользователя с ботом.
	ChatPrivate ChatType = "private"
	// ChatGroup — групповой чат (включая supergroup на стороне транспорта).
	ChatGroup ChatType = "group"
)

// ScopeType — область действия записи белого списка.
type ScopeType string

const (
	// ScopeGlobal — доступ в любом чате.
	ScopeGlobal ScopeType = "global"
	// ScopeGroup — доступ только в конкретной группе (требует ChatID).
	ScopeGroup ScopeType = "group"
)

// ParseScopeType преобразует строку в ScopeType.
func ParseScopeType(s string) (ScopeType, bool) {
	switch ScopeType(s) {
	case ScopeGlobal:
		return ScopeGlobal, true
	case ScopeGroup:
		return ScopeGroup, true
	}
	return "", false
}

// Permission — явно назначенная повышенная роль пользователя.
// Хранится в таблице permissions. Запись с ролью none сохраняется
// ради аудита и при принятии решений равнозначна отсутствию записи.
type Permission struct {
	// UserID — идентификатор пользователя на платформе (PK)
	UserID int64
	// Role — назначенная роль
	Role role.Role
	// GrantedBy — кто назначил роль
	GrantedBy int64
	// GrantedAt — когда роль была назначена впервые
	GrantedAt time.Time
	// UpdatedAt — время последнего изменения роли
	UpdatedAt time.Time
}

// WhitelistEntry — запись белого списка: доступ пользователя к диалогу.
// Уникальна по кортежу (UserID, Scope, ChatID).
type WhitelistEntry struct {
	// ID — суррогатный ключ записи
	ID int64
	// UserID — идентификатор пользователя
	UserID int64
	// Scope — область действия (global или group)
	Scope ScopeType
	// ChatID — идентификатор группы; nil для global
	ChatID *int64
	// CreatedBy — кто добавил запись
	CreatedBy int64
	// CreatedAt — время добавления
	CreatedAt time.Time
}

// AuthorizedGroup — группа, явно открытая для работы бота.
// Группа без записи в этой таблице закрыта для обычных пользователей.
type AuthorizedGroup struct {
	// ChatID — идентификатор группового чата (PK)
	ChatID int64
	// ChatTitle — название группы на момент авторизации (может быть пустым)
	ChatTitle string
	// AuthorizedBy — кто авторизовал группу
	AuthorizedBy int64
	// AuthorizedAt — время авторизации
	AuthorizedAt time.Time
}
