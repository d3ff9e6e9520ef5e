package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/itsmorninghao/TELEPAL/internal/domain/model"
	"github.com/itsmorninghao/TELEPAL/internal/domain/role"
	"github.com/itsmorninghao/TELEPAL/internal/repository"
)

var (
	superID  int64 = 100
	gadminID int64 = 200
	plainID  int64 = 300
	groupID  int64 = -1001
	otherGID int64 = -1002
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestService поднимает сервис поверх хранилища в памяти
// с предзаполненными ролями.
func newTestService(t *testing.T) (*Service, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	ctx := context.Background()
	if _, err := store.Permissions().SetRole(ctx, superID, role.SuperAdmin, superID); err != nil {
		t.Fatalf("подготовка super_admin: %v", err)
	}
	if _, err := store.Permissions().SetRole(ctx, gadminID, role.GroupAdmin, superID); err != nil {
		t.Fatalf("подготовка group_admin: %v", err)
	}
	svc := NewService(store.Permissions(), store.Whitelist(), store.Groups(), testLogger())
	return svc, store
}

func TestDecide_SuperAdminAlwaysAllowed(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	actions := []Action{
		ActionChat, ActionHelp,
		ActionSetRole, ActionAuthorizeGroup, ActionRevokeGroup, ActionListGroups,
		ActionWhitelistAdd, ActionWhitelistRemove, ActionWhitelistList,
	}
	chats := []struct {
		chatType model.ChatType
		chatID   int64
	}{
		{model.ChatPrivate, superID},
		{model.ChatGroup, groupID}, // группа не авторизована
	}
	for _, action := range actions {
		for _, chat := range chats {
			v, err := svc.Decide(ctx, Request{
				UserID:   superID,
				ChatID:   chat.chatID,
				ChatType: chat.chatType,
				Action:   action,
			})
			if err != nil {
				t.Fatalf("Decide(%s, %s): %v", action, chat.chatType, err)
			}
			if !v.Allow {
				t.Errorf("супер-админ получил отказ: action=%s chat=%s reason=%s",
					action, chat.chatType, v.Reason)
			}
		}
	}
}

func TestDecide_SuperAdminActionsDenied(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		userID int64
	}{
		{"group_admin", gadminID},
		{"обычный пользователь", plainID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := svc.Decide(ctx, Request{
				UserID:   tt.userID,
				ChatID:   tt.userID,
				ChatType: model.ChatPrivate,
				Action:   ActionAuthorizeGroup,
			})
			if err != nil {
				t.Fatalf("Decide: %v", err)
			}
			if v.Allow {
				t.Fatal("привилегированное действие разрешено без роли super_admin")
			}
			if v.Reason != ReasonInsufficientRole {
				t.Errorf("reason = %s, ожидалось %s", v.Reason, ReasonInsufficientRole)
			}
		})
	}
}

func TestDecide_RoleCheckedBeforeChatType(t *testing.T) {
	// Недостаточная роль в группе: отказ по роли, а не по типу чата.
	svc, _ := newTestService(t)

	v, err := svc.Decide(context.Background(), Request{
		UserID:   gadminID,
		ChatID:   groupID,
		ChatType: model.ChatGroup,
		Action:   ActionSetRole,
	})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if v.Allow {
		t.Fatal("permission_set разрешён group_admin-у")
	}
	if v.Reason != ReasonInsufficientRole {
		t.Errorf("reason = %s, ожидалось %s", v.Reason, ReasonInsufficientRole)
	}
}

func TestDecide_WhitelistActions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// Группный админ управляет белым списком.
	v, err := svc.Decide(ctx, Request{
		UserID:   gadminID,
		ChatID:   gadminID,
		ChatType: model.ChatPrivate,
		Action:   ActionWhitelistAdd,
	})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if !v.Allow {
		t.Errorf("whitelist_add запрещён group_admin-у: reason=%s", v.Reason)
	}

	// Обычному пользователю — нет, даже если он в белом списке.
	if err := svc.wl.Add(ctx, &model.WhitelistEntry{
		UserID: plainID, Scope: model.ScopeGlobal, CreatedBy: superID,
	}); err != nil {
		t.Fatalf("подготовка белого списка: %v", err)
	}
	v, err = svc.Decide(ctx, Request{
		UserID:   plainID,
		ChatID:   plainID,
		ChatType: model.ChatPrivate,
		Action:   ActionWhitelistAdd,
	})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if v.Allow {
		t.Fatal("whitelist_add разрешён пользователю без роли")
	}
	if v.Reason != ReasonInsufficientRole {
		t.Errorf("reason = %s, ожидалось %s", v.Reason, ReasonInsufficientRole)
	}
}

func TestDecide_PrivateChat(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	// Без записи в белом списке — отказ.
	v, err := svc.Decide(ctx, Request{
		UserID: plainID, ChatID: plainID, ChatType: model.ChatPrivate, Action: ActionChat,
	})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if v.Allow {
		t.Fatal("доступ в приватный чат без whitelist разрешён")
	}
	if v.Reason != ReasonNotWhitelisted {
		t.Errorf("reason = %s, ожидалось %s", v.Reason, ReasonNotWhitelisted)
	}

	// Group-запись приватный чат не открывает.
	if err := store.Whitelist().Add(ctx, &model.WhitelistEntry{
		UserID: plainID, Scope: model.ScopeGroup, ChatID: &groupID, CreatedBy: superID,
	}); err != nil {
		t.Fatalf("подготовка group-записи: %v", err)
	}
	v, err = svc.Decide(ctx, Request{
		UserID: plainID, ChatID: plainID, ChatType: model.ChatPrivate, Action: ActionChat,
	})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if v.Allow {
		t.Fatal("group-запись открыла приватный чат")
	}

	// Global-запись открывает.
	if err := store.Whitelist().Add(ctx, &model.WhitelistEntry{
		UserID: plainID, Scope: model.ScopeGlobal, CreatedBy: superID,
	}); err != nil {
		t.Fatalf("подготовка global-записи: %v", err)
	}
	v, err = svc.Decide(ctx, Request{
		UserID: plainID, ChatID: plainID, ChatType: model.ChatPrivate, Action: ActionChat,
	})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if !v.Allow {
		t.Fatalf("global-запись не открыла приватный чат: reason=%s", v.Reason)
	}
	if v.Reason != ReasonWhitelistGlobal {
		t.Errorf("reason = %s, ожидалось %s", v.Reason, ReasonWhitelistGlobal)
	}

	// Повышенная роль открывает без whitelist.
	v, err = svc.Decide(ctx, Request{
		UserID: gadminID, ChatID: gadminID, ChatType: model.ChatPrivate, Action: ActionChat,
	})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if !v.Allow || v.Reason != ReasonRoleMatch {
		t.Errorf("group_admin в приватном чате: allow=%v reason=%s", v.Allow, v.Reason)
	}
}

func TestDecide_GroupAuthorizationGate(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	// Whitelist не заменяет авторизацию группы.
	if err := store.Whitelist().Add(ctx, &model.WhitelistEntry{
		UserID: plainID, Scope: model.ScopeGroup, ChatID: &groupID, CreatedBy: superID,
	}); err != nil {
		t.Fatalf("подготовка group-записи: %v", err)
	}
	v, err := svc.Decide(ctx, Request{
		UserID: plainID, ChatID: groupID, ChatType: model.ChatGroup, Action: ActionChat,
	})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if v.Allow {
		t.Fatal("доступ в неавторизованную группу разрешён по whitelist")
	}
	if v.Reason != ReasonGroupNotAuthorized {
		t.Errorf("reason = %s, ожидалось %s", v.Reason, ReasonGroupNotAuthorized)
	}

	// Та же проверка для group_admin: роль группу не открывает.
	v, err = svc.Decide(ctx, Request{
		UserID: gadminID, ChatID: groupID, ChatType: model.ChatGroup, Action: ActionChat,
	})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if v.Allow {
		t.Fatal("доступ group_admin-а в неавторизованную группу разрешён")
	}

	// После авторизации группы доступ открывается.
	if err := store.Groups().Authorize(ctx, &model.AuthorizedGroup{
		ChatID: groupID, AuthorizedBy: superID,
	}); err != nil {
		t.Fatalf("авторизация группы: %v", err)
	}
	v, err = svc.Decide(ctx, Request{
		UserID: plainID, ChatID: groupID, ChatType: model.ChatGroup, Action: ActionChat,
	})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if !v.Allow {
		t.Fatalf("доступ в авторизованную группу по group-записи запрещён: reason=%s", v.Reason)
	}
	if v.Reason != ReasonWhitelistGroup {
		t.Errorf("reason = %s, ожидалось %s", v.Reason, ReasonWhitelistGroup)
	}

	// Group-запись действует только в своей группе.
	if err := store.Groups().Authorize(ctx, &model.AuthorizedGroup{
		ChatID: otherGID, AuthorizedBy: superID,
	}); err != nil {
		t.Fatalf("авторизация другой группы: %v", err)
	}
	v, err = svc.Decide(ctx, Request{
		UserID: plainID, ChatID: otherGID, ChatType: model.ChatGroup, Action: ActionChat,
	})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if v.Allow {
		t.Fatal("group-запись сработала в чужой группе")
	}
	if v.Reason != ReasonNotWhitelisted {
		t.Errorf("reason = %s, ожидалось %s", v.Reason, ReasonNotWhitelisted)
	}
}

func TestDecide_GlobalWhitelistInGroup(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	if err := store.Groups().Authorize(ctx, &model.AuthorizedGroup{
		ChatID: groupID, AuthorizedBy: superID,
	}); err != nil {
		t.Fatalf("авторизация группы: %v", err)
	}
	if err := store.Whitelist().Add(ctx, &model.WhitelistEntry{
		UserID: plainID, Scope: model.ScopeGlobal, CreatedBy: superID,
	}); err != nil {
		t.Fatalf("подготовка global-записи: %v", err)
	}

	v, err := svc.Decide(ctx, Request{
		UserID: plainID, ChatID: groupID, ChatType: model.ChatGroup, Action: ActionChat,
	})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if !v.Allow || v.Reason != ReasonWhitelistGlobal {
		t.Errorf("global-запись в группе: allow=%v reason=%s", v.Allow, v.Reason)
	}
}

func TestAdmin_BootstrapIdempotent(t *testing.T) {
	store := repository.NewMemoryStore()
	admin := NewAdmin(store.Permissions(), store.Whitelist(), store.Groups(), nil, testLogger())
	ctx := context.Background()

	ids := []int64{superID, 101}
	for i := 0; i < 3; i++ {
		if err := admin.Bootstrap(ctx, ids); err != nil {
			t.Fatalf("bootstrap #%d: %v", i+1, err)
		}
	}
	for _, id := range ids {
		r, err := admin.GetRole(ctx, id)
		if err != nil {
			t.Fatalf("GetRole(%d): %v", id, err)
		}
		if r != role.SuperAdmin {
			t.Errorf("роль пользователя %d = %s, ожидалось %s", id, r, role.SuperAdmin)
		}
	}
}

func TestAdmin_BootstrapPromotesExistingRole(t *testing.T) {
	store := repository.NewMemoryStore()
	admin := NewAdmin(store.Permissions(), store.Whitelist(), store.Groups(), nil, testLogger())
	ctx := context.Background()

	if _, err := admin.SetRole(ctx, superID, role.None, superID); err != nil {
		t.Fatalf("SetRole: %v", err)
	}
	if err := admin.Bootstrap(ctx, []int64{superID}); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	r, err := admin.GetRole(ctx, superID)
	if err != nil {
		t.Fatalf("GetRole: %v", err)
	}
	if r != role.SuperAdmin {
		t.Errorf("bootstrap не повысил роль: %s", r)
	}
}

func TestAdmin_SetRoleRoundTrip(t *testing.T) {
	store := repository.NewMemoryStore()
	admin := NewAdmin(store.Permissions(), store.Whitelist(), store.Groups(), nil, testLogger())
	ctx := context.Background()

	prior, err := admin.SetRole(ctx, plainID, role.GroupAdmin, superID)
	if err != nil {
		t.Fatalf("SetRole: %v", err)
	}
	if prior != role.None {
		t.Errorf("прежняя роль = %s, ожидалось %s", prior, role.None)
	}

	r, err := admin.GetRole(ctx, plainID)
	if err != nil {
		t.Fatalf("GetRole: %v", err)
	}
	if r != role.GroupAdmin {
		t.Errorf("роль = %s, ожидалось %s", r, role.GroupAdmin)
	}

	prior, err = admin.SetRole(ctx, plainID, role.None, superID)
	if err != nil {
		t.Fatalf("SetRole: %v", err)
	}
	if prior != role.GroupAdmin {
		t.Errorf("прежняя роль = %s, ожидалось %s", prior, role.GroupAdmin)
	}
	r, err = admin.GetRole(ctx, plainID)
	if err != nil {
		t.Fatalf("GetRole: %v", err)
	}
	if r != role.None {
		t.Errorf("роль после сброса = %s, ожидалось %s", r, role.None)
	}
}

// TestScenario_UserOnboarding — сквозной сценарий подключения
// пользователя: приват по global-записи, группа — только после
// авторизации группы и отдельной записи.
func TestScenario_UserOnboarding(t *testing.T) {
	svc, store := newTestService(t)
	admin := NewAdmin(store.Permissions(), store.Whitelist(), store.Groups(), nil, testLogger())
	ctx := context.Background()

	userID := int64(77)
	private := Request{UserID: userID, ChatID: userID, ChatType: model.ChatPrivate, Action: ActionChat}
	inGroup := Request{UserID: userID, ChatID: groupID, ChatType: model.ChatGroup, Action: ActionChat}

	// Роль none, записей нет — отказ в привате.
	v, err := svc.Decide(ctx, private)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if v.Allow || v.Reason != ReasonNotWhitelisted {
		t.Fatalf("приват без записей: allow=%v reason=%s", v.Allow, v.Reason)
	}

	// Global-запись открывает приват.
	if err := admin.AddWhitelist(ctx, userID, model.ScopeGlobal, nil, superID); err != nil {
		t.Fatalf("AddWhitelist: %v", err)
	}
	v, err = svc.Decide(ctx, private)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if !v.Allow || v.Reason != ReasonWhitelistGlobal {
		t.Fatalf("приват после global-записи: allow=%v reason=%s", v.Allow, v.Reason)
	}

	// Global-запись действует и в авторизованной группе.
	if err := admin.AuthorizeGroup(ctx, groupID, "Группа", superID); err != nil {
		t.Fatalf("AuthorizeGroup: %v", err)
	}
	v, err = svc.Decide(ctx, inGroup)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if !v.Allow || v.Reason != ReasonWhitelistGlobal {
		t.Fatalf("группа с global-записью: allow=%v reason=%s", v.Allow, v.Reason)
	}

	// Без global-записи одной авторизации группы недостаточно.
	if err := admin.RemoveWhitelist(ctx, userID, model.ScopeGlobal, nil); err != nil {
		t.Fatalf("RemoveWhitelist: %v", err)
	}
	v, err = svc.Decide(ctx, inGroup)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if v.Allow || v.Reason != ReasonNotWhitelisted {
		t.Fatalf("группа без записей: allow=%v reason=%s", v.Allow, v.Reason)
	}

	// Group-запись для этой группы открывает доступ.
	gid := groupID
	if err := admin.AddWhitelist(ctx, userID, model.ScopeGroup, &gid, superID); err != nil {
		t.Fatalf("AddWhitelist(group): %v", err)
	}
	v, err = svc.Decide(ctx, inGroup)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if !v.Allow || v.Reason != ReasonWhitelistGroup {
		t.Fatalf("группа с group-записью: allow=%v reason=%s", v.Allow, v.Reason)
	}
}

// TestScenario_GroupOnboarding — сквозной сценарий подключения группы.
func TestScenario_GroupOnboarding(t *testing.T) {
	svc, store := newTestService(t)
	admin := NewAdmin(store.Permissions(), store.Whitelist(), store.Groups(), nil, testLogger())
	ctx := context.Background()

	userID := int64(42)
	req := Request{UserID: userID, ChatID: groupID, ChatType: model.ChatGroup, Action: ActionChat}

	// До авторизации группы — отказ.
	v, err := svc.Decide(ctx, req)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if v.Allow || v.Reason != ReasonGroupNotAuthorized {
		t.Fatalf("до авторизации: allow=%v reason=%s", v.Allow, v.Reason)
	}

	// Супер-админ авторизует группу — пользователь всё ещё не в списке.
	if err := admin.AuthorizeGroup(ctx, groupID, "Тестовая группа", superID); err != nil {
		t.Fatalf("AuthorizeGroup: %v", err)
	}
	v, err = svc.Decide(ctx, req)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if v.Allow || v.Reason != ReasonNotWhitelisted {
		t.Fatalf("после авторизации, без whitelist: allow=%v reason=%s", v.Allow, v.Reason)
	}

	// Добавление в белый список группы открывает доступ.
	if err := admin.AddWhitelist(ctx, userID, model.ScopeGroup, &groupID, gadminID); err != nil {
		t.Fatalf("AddWhitelist: %v", err)
	}
	v, err = svc.Decide(ctx, req)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if !v.Allow || v.Reason != ReasonWhitelistGroup {
		t.Fatalf("после whitelist: allow=%v reason=%s", v.Allow, v.Reason)
	}

	// Отзыв авторизации снова закрывает группу, запись в списке
	// остаётся, но не действует.
	if err := admin.RevokeGroup(ctx, groupID); err != nil {
		t.Fatalf("RevokeGroup: %v", err)
	}
	v, err = svc.Decide(ctx, req)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if v.Allow || v.Reason != ReasonGroupNotAuthorized {
		t.Fatalf("после отзыва: allow=%v reason=%s", v.Allow, v.Reason)
	}
}
