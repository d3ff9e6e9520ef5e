// commands.go — реестр командной поверхности и генерация справки.
package gate

import (
	"strings"

	"github.com/itsmorninghao/TELEPAL/internal/auth"
	"github.com/itsmorninghao/TELEPAL/internal/domain/model"
	"github.com/itsmorninghao/TELEPAL/internal/domain/role"
)

// commandSpec — метаданные одной команды: действие авторизационного
// ядра, строка использования для справки и допустимые типы чатов.
type commandSpec struct {
	Name     string
	Action   auth.Action
	Usage    string
	ChatOnly model.ChatType // "" — доступна в любом типе чата
}

// Таблица команд. Порядок определяет порядок строк в справке.
var commands = []commandSpec{
	{
		Name:     "group_authorize",
		Action:   auth.ActionAuthorizeGroup,
		Usage:    "/group_authorize <chat_id> [название] — авторизовать группу",
		ChatOnly: model.ChatPrivate,
	},
	{
		Name:     "group_revoke",
		Action:   auth.ActionRevokeGroup,
		Usage:    "/group_revoke <chat_id> — отозвать авторизацию группы",
		ChatOnly: model.ChatPrivate,
	},
	{
		Name:     "group_list",
		Action:   auth.ActionListGroups,
		Usage:    "/group_list — список авторизованных групп",
		ChatOnly: model.ChatPrivate,
	},
	{
		Name:     "permission_set",
		Action:   auth.ActionSetRole,
		Usage:    "/permission_set <user_id> <роль> — назначить роль (super_admin, group_admin, none)",
		ChatOnly: model.ChatPrivate,
	},
	{
		Name:   "whitelist_add",
		Action: auth.ActionWhitelistAdd,
		Usage:  "/whitelist_add <user_id> [global|group] [chat_id] — добавить в белый список",
	},
	{
		Name:   "whitelist_remove",
		Action: auth.ActionWhitelistRemove,
		Usage:  "/whitelist_remove <user_id> [global|group] [chat_id] — удалить из белого списка",
	},
	{
		Name:   "whitelist_list",
		Action: auth.ActionWhitelistList,
		Usage:  "/whitelist_list [global|group] [chat_id] — показать белый список",
	},
	{
		Name:   "help",
		Action: auth.ActionHelp,
		Usage:  "/help — список доступных команд",
	},
}

var commandIndex = func() map[string]commandSpec {
	idx := make(map[string]commandSpec, len(commands))
	for _, c := range commands {
		idx[c.Name] = c
	}
	return idx
}()

// lookupCommand находит команду по имени (без ведущего "/").
func lookupCommand(name string) (commandSpec, bool) {
	c, ok := commandIndex[name]
	return c, ok
}

// helpText собирает справку по роли и типу чата: пользователь видит
// только команды, которые ему доступны в текущем чате.
func helpText(actorRole role.Role, chatType model.ChatType) string {
	var super, admin, ordinary []string
	for _, c := range commands {
		if c.ChatOnly != "" && c.ChatOnly != chatType {
			continue
		}
		switch c.Action.Class() {
		case auth.ClassSuperAdmin:
			super = append(super, "• "+c.Usage)
		case auth.ClassGroupAdmin:
			admin = append(admin, "• "+c.Usage)
		default:
			ordinary = append(ordinary, "• "+c.Usage)
		}
	}

	var b strings.Builder
	b.WriteString("Доступные команды\n")
	if actorRole == role.SuperAdmin && len(super) > 0 {
		b.WriteString("\nКоманды супер-админа:\n")
		b.WriteString(strings.Join(super, "\n"))
		b.WriteString("\n")
	}
	if actorRole.Elevated() && len(admin) > 0 {
		b.WriteString("\nКоманды управления белым списком:\n")
		b.WriteString(strings.Join(admin, "\n"))
		b.WriteString("\n")
	}
	if len(ordinary) > 0 {
		b.WriteString("\nОбщие команды:\n")
		b.WriteString(strings.Join(ordinary, "\n"))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
