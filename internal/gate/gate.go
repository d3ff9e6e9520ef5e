// Пакет gate — шлюз входящих событий. Превращает сообщение транспорта
// в запрос на доступ, применяет вердикт авторизационного ядра и либо
// пересылает текст диалоговому движку, либо отвечает отказом.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/itsmorninghao/TELEPAL/internal/auth"
	"github.com/itsmorninghao/TELEPAL/internal/domain/model"
	"github.com/itsmorninghao/TELEPAL/internal/domain/role"
	"github.com/itsmorninghao/TELEPAL/internal/repository"
)

// Engine — диалоговый движок, получающий сообщение после положительного
// вердикта. Реализуется HTTP-клиентом из пакета engine.
type Engine interface {
	Ask(ctx context.Context, userID, chatID int64, text string) (string, error)
}

// Update — нормализованное входящее событие транспортного слоя.
type Update struct {
	// UserID — автор сообщения
	UserID int64
	// ChatID — чат, в котором отправлено сообщение
	ChatID int64
	// ChatType — тип чата
	ChatType model.ChatType
	// ChatTitle — название чата (пусто для приватных)
	ChatTitle string
	// Text — текст сообщения
	Text string
	// ReplyToBot — сообщение является ответом на сообщение бота
	ReplyToBot bool
}

// Тексты ответов пользователю. Отказ описывает только категорию
// причины, без внутренних идентификаторов.
const (
	msgInsufficientRole   = "Недостаточно прав для выполнения этой команды."
	msgWrongChatType      = "Эта команда доступна только в приватном чате."
	msgGroupNotAuthorized = "Группа не авторизована для работы с ботом."
	msgNotWhitelisted     = "У вас нет доступа к боту. Обратитесь к администратору."
	msgTransient          = "Операция не выполнена, попробуйте позже."
	msgUnknownCommand     = "Неизвестная команда. Используйте /help."
)

// listLimit — максимум строк в ответах-списках.
const listLimit = 20

// Gate — шлюз между транспортом и авторизационным ядром.
type Gate struct {
	svc         *auth.Service
	admin       *auth.Admin
	engine      Engine
	botUsername string
	logger      *slog.Logger
}

// New создаёт шлюз. botUsername — имя бота без "@", по нему
// определяется обращение к боту в группах.
func New(svc *auth.Service, admin *auth.Admin, engine Engine, botUsername string, logger *slog.Logger) *Gate {
	return &Gate{
		svc:         svc,
		admin:       admin,
		engine:      engine,
		botUsername: strings.TrimPrefix(botUsername, "@"),
		logger:      logger.With(slog.String("component", "gate")),
	}
}

// Handle обрабатывает входящее событие и возвращает текст ответа.
// Пустая строка — событие не требует ответа (не адресовано боту).
func (g *Gate) Handle(ctx context.Context, upd Update) string {
	text := strings.TrimSpace(upd.Text)
	if text == "" {
		return ""
	}

	if upd.ChatType == model.ChatGroup {
		// В группах бот реагирует только на явное обращение.
		// Неадресованное сообщение — не событие, решение не строится.
		if !upd.ReplyToBot && !g.mentioned(text) {
			return ""
		}
		text = strings.TrimSpace(g.stripMention(text))
		if text == "" {
			return ""
		}
	}

	if strings.HasPrefix(text, "/") {
		return g.handleCommand(ctx, upd, text)
	}
	return g.handleChat(ctx, upd, text)
}

// mentioned: в тексте есть упоминание @botUsername (в том числе
// суффикс команды вида /cmd@botUsername).
func (g *Gate) mentioned(text string) bool {
	needle := "@" + strings.ToLower(g.botUsername)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		if tok == needle || strings.HasSuffix(tok, needle) {
			return true
		}
	}
	return false
}

// stripMention убирает упоминания бота из текста.
func (g *Gate) stripMention(text string) string {
	needle := "@" + strings.ToLower(g.botUsername)
	fields := strings.Fields(text)
	out := fields[:0]
	for _, tok := range fields {
		low := strings.ToLower(tok)
		if low == needle {
			continue
		}
		if strings.HasSuffix(low, needle) {
			tok = tok[:len(tok)-len(needle)]
			if tok == "" {
				continue
			}
		}
		out = append(out, tok)
	}
	return strings.Join(out, " ")
}

// handleChat — обычное диалоговое сообщение: вердикт, затем пересылка
// движку.
func (g *Gate) handleChat(ctx context.Context, upd Update, text string) string {
	v, err := g.svc.Decide(ctx, auth.Request{
		UserID:   upd.UserID,
		ChatID:   upd.ChatID,
		ChatType: upd.ChatType,
		Action:   auth.ActionChat,
	})
	if err != nil {
		return g.failure("решение о доступе", err)
	}
	if !v.Allow {
		return rejectionText(v.Reason)
	}

	reply, err := g.engine.Ask(ctx, upd.UserID, upd.ChatID, text)
	if err != nil {
		return g.failure("запрос к движку", err)
	}
	return reply
}

// handleCommand — разбор команды, валидация аргументов, вердикт
// и выполнение. Валидация выполняется до обращения к ядру: на
// некорректный ввод отвечаем сразу, решение не строится.
func (g *Gate) handleCommand(ctx context.Context, upd Update, text string) string {
	fields := strings.Fields(text)
	name := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	cmd, ok := lookupCommand(name)
	if !ok {
		return msgUnknownCommand
	}

	inv, badReq := g.parseInvocation(cmd, upd, fields[1:])
	if badReq != "" {
		return badReq
	}

	v, err := g.svc.Decide(ctx, auth.Request{
		UserID:   upd.UserID,
		ChatID:   upd.ChatID,
		ChatType: upd.ChatType,
		Action:   cmd.Action,
	})
	if err != nil {
		return g.failure("решение о доступе", err)
	}
	if !v.Allow {
		return rejectionText(v.Reason)
	}
	return g.execute(ctx, upd, inv, v)
}

// invocation — разобранная команда с валидированными аргументами.
type invocation struct {
	spec       commandSpec
	targetUser int64
	targetRole role.Role
	scope      model.ScopeType
	chatID     *int64
	title      string
	hasScope   bool // для whitelist_list: фильтр по scope задан явно
}

func badRequest(cmd commandSpec, detail string) string {
	msg := "Неверные параметры команды.\n\n" + cmd.Usage
	if detail != "" {
		msg += "\n\nОшибка: " + detail
	}
	return msg
}

func (g *Gate) parseInvocation(cmd commandSpec, upd Update, args []string) (invocation, string) {
	inv := invocation{spec: cmd}

	switch cmd.Action {
	case auth.ActionAuthorizeGroup:
		if len(args) == 0 {
			return inv, badRequest(cmd, "")
		}
		chatID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return inv, badRequest(cmd, "chat_id должен быть числом.")
		}
		inv.chatID = &chatID
		inv.title = strings.Join(args[1:], " ")

	case auth.ActionRevokeGroup:
		if len(args) == 0 {
			return inv, badRequest(cmd, "")
		}
		chatID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return inv, badRequest(cmd, "chat_id должен быть числом.")
		}
		inv.chatID = &chatID

	case auth.ActionSetRole:
		if len(args) < 2 {
			return inv, badRequest(cmd, "")
		}
		userID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return inv, badRequest(cmd, "user_id должен быть числом.")
		}
		r, ok := role.Parse(args[1])
		if !ok {
			return inv, badRequest(cmd, "неизвестная роль. Допустимые: super_admin, group_admin, none.")
		}
		inv.targetUser = userID
		inv.targetRole = r

	case auth.ActionWhitelistAdd, auth.ActionWhitelistRemove:
		if len(args) == 0 {
			return inv, badRequest(cmd, "")
		}
		userID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return inv, badRequest(cmd, "user_id должен быть числом.")
		}
		inv.targetUser = userID
		scope, chatID, bad := g.parseScope(cmd, upd, args[1:])
		if bad != "" {
			return inv, bad
		}
		inv.scope = scope
		inv.chatID = chatID

	case auth.ActionWhitelistList:
		if len(args) > 0 {
			scope, ok := model.ParseScopeType(args[0])
			if !ok {
				return inv, badRequest(cmd, "неизвестный scope. Допустимые: global, group.")
			}
			inv.scope = scope
			inv.hasScope = true
			if scope == model.ScopeGroup && len(args) > 1 {
				chatID, err := strconv.ParseInt(args[1], 10, 64)
				if err != nil {
					return inv, badRequest(cmd, "chat_id должен быть числом.")
				}
				inv.chatID = &chatID
			}
		}

	case auth.ActionListGroups, auth.ActionHelp:
		// без аргументов
	}
	return inv, ""
}

// parseScope определяет область записи белого списка: явный аргумент
// или умолчание (в группе — текущая группа, в приватном чате — global).
// Синтаксический разбор; ролевые ограничения области применяет
// restrictWhitelistScope после вердикта.
func (g *Gate) parseScope(cmd commandSpec, upd Update, args []string) (model.ScopeType, *int64, string) {
	if len(args) == 0 {
		if upd.ChatType == model.ChatGroup {
			chatID := upd.ChatID
			return model.ScopeGroup, &chatID, ""
		}
		return model.ScopeGlobal, nil, ""
	}

	scope, ok := model.ParseScopeType(args[0])
	if !ok {
		return "", nil, badRequest(cmd, "неизвестный scope. Допустимые: global, group.")
	}
	if scope == model.ScopeGlobal {
		return model.ScopeGlobal, nil, ""
	}

	if len(args) > 1 {
		chatID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return "", nil, badRequest(cmd, "chat_id должен быть числом.")
		}
		return model.ScopeGroup, &chatID, ""
	}
	if upd.ChatType == model.ChatGroup {
		chatID := upd.ChatID
		return model.ScopeGroup, &chatID, ""
	}
	return "", nil, badRequest(cmd, "для scope group укажите chat_id.")
}

// restrictWhitelistScope ограничивает область записи для группных
// админов: их привилегия действует только внутри конкретной группы.
// В группе запись всегда привязывается к текущей группе независимо от
// аргументов; в приватном чате обязателен явный аргумент group <chat_id>,
// global-записи доступны только супер-админу.
// Возвращает текст отказа или пустую строку.
func restrictWhitelistScope(upd Update, inv *invocation, v auth.Verdict) string {
	if v.Role == role.SuperAdmin {
		return ""
	}
	if upd.ChatType == model.ChatGroup {
		chatID := upd.ChatID
		inv.scope = model.ScopeGroup
		inv.chatID = &chatID
		inv.hasScope = true
		return ""
	}
	if inv.scope != model.ScopeGroup || inv.chatID == nil {
		return badRequest(inv.spec, "группным админам доступны только групповые записи: укажите group <chat_id>.")
	}
	return ""
}

// execute выполняет админ-команду после положительного вердикта.
func (g *Gate) execute(ctx context.Context, upd Update, inv invocation, v auth.Verdict) string {
	switch inv.spec.Action {
	case auth.ActionHelp:
		return helpText(v.Role, upd.ChatType)

	case auth.ActionAuthorizeGroup:
		if err := g.admin.AuthorizeGroup(ctx, *inv.chatID, inv.title, upd.UserID); err != nil {
			return g.failure("авторизация группы", err)
		}
		return fmt.Sprintf("Группа %d авторизована.", *inv.chatID)

	case auth.ActionRevokeGroup:
		err := g.admin.RevokeGroup(ctx, *inv.chatID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return fmt.Sprintf("Группа %d не найдена или не авторизована.", *inv.chatID)
		case err != nil:
			return g.failure("отзыв авторизации группы", err)
		}
		return fmt.Sprintf("Авторизация группы %d отозвана.", *inv.chatID)

	case auth.ActionListGroups:
		groups, err := g.admin.ListGroups(ctx)
		if err != nil {
			return g.failure("список групп", err)
		}
		return formatGroups(groups)

	case auth.ActionSetRole:
		prior, err := g.admin.SetRole(ctx, inv.targetUser, inv.targetRole, upd.UserID)
		if err != nil {
			return g.failure("назначение роли", err)
		}
		return fmt.Sprintf("Роль пользователя %d: %s → %s.", inv.targetUser, prior, inv.targetRole)

	case auth.ActionWhitelistAdd:
		if msg := restrictWhitelistScope(upd, &inv, v); msg != "" {
			return msg
		}
		err := g.admin.AddWhitelist(ctx, inv.targetUser, inv.scope, inv.chatID, upd.UserID)
		switch {
		case errors.Is(err, repository.ErrConflict):
			return fmt.Sprintf("Пользователь %d уже в белом списке.", inv.targetUser)
		case err != nil:
			return g.failure("добавление в белый список", err)
		}
		return fmt.Sprintf("Пользователь %d добавлен в белый список (%s).", inv.targetUser, scopeLabel(inv.scope, inv.chatID))

	case auth.ActionWhitelistRemove:
		if msg := restrictWhitelistScope(upd, &inv, v); msg != "" {
			return msg
		}
		err := g.admin.RemoveWhitelist(ctx, inv.targetUser, inv.scope, inv.chatID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return fmt.Sprintf("Пользователь %d не найден в белом списке (%s).", inv.targetUser, scopeLabel(inv.scope, inv.chatID))
		case err != nil:
			return g.failure("удаление из белого списка", err)
		}
		return fmt.Sprintf("Пользователь %d удалён из белого списка (%s).", inv.targetUser, scopeLabel(inv.scope, inv.chatID))

	case auth.ActionWhitelistList:
		if msg := restrictWhitelistScope(upd, &inv, v); msg != "" {
			return msg
		}
		filters := repository.WhitelistFilters{}
		if inv.hasScope {
			filters.Scope = inv.scope
			filters.ChatID = inv.chatID
		}
		entries, err := g.admin.ListWhitelist(ctx, filters)
		if err != nil {
			return g.failure("список белого списка", err)
		}
		return formatWhitelist(entries)
	}
	return ""
}

// failure логирует ошибку и возвращает общий текст временного сбоя.
// Вердикт при сбое хранилища не подменяется ни на ALLOW, ни на DENY.
func (g *Gate) failure(op string, err error) string {
	g.logger.Error("Сбой при обработке события",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	return msgTransient
}

func rejectionText(reason auth.Reason) string {
	switch reason {
	case auth.ReasonInsufficientRole:
		return msgInsufficientRole
	case auth.ReasonWrongChatType:
		return msgWrongChatType
	case auth.ReasonGroupNotAuthorized:
		return msgGroupNotAuthorized
	default:
		return msgNotWhitelisted
	}
}

func scopeLabel(scope model.ScopeType, chatID *int64) string {
	if scope == model.ScopeGroup && chatID != nil {
		return fmt.Sprintf("группа %d", *chatID)
	}
	return "global"
}

func formatGroups(groups []*model.AuthorizedGroup) string {
	if len(groups) == 0 {
		return "Авторизованных групп нет."
	}
	var b strings.Builder
	b.WriteString("Авторизованные группы:")
	shown := groups
	if len(shown) > listLimit {
		shown = shown[:listLimit]
	}
	for _, g := range shown {
		title := g.ChatTitle
		if title == "" {
			title = "без названия"
		}
		fmt.Fprintf(&b, "\n• %d — %s", g.ChatID, title)
	}
	if rest := len(groups) - len(shown); rest > 0 {
		fmt.Fprintf(&b, "\n... ещё %d записей", rest)
	}
	return b.String()
}

func formatWhitelist(entries []*model.WhitelistEntry) string {
	if len(entries) == 0 {
		return "Белый список пуст."
	}
	var b strings.Builder
	b.WriteString("Белый список:")
	shown := entries
	if len(shown) > listLimit {
		shown = shown[:listLimit]
	}
	for _, e := range shown {
		fmt.Fprintf(&b, "\n• пользователь %d — %s", e.UserID, scopeLabel(e.Scope, e.ChatID))
	}
	if rest := len(entries) - len(shown); rest > 0 {
		fmt.Fprintf(&b, "\n... ещё %d записей", rest)
	}
	return b.String()
}
