// memory.go — репозитории в памяти. Тестовый дублёр слоя PostgreSQL
// для unit-тестов сервиса и шлюза без реальной базы; поведение
// (сентинельные ошибки, уникальность, порядок выдачи) совпадает
// с SQL-реализацией.
package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/itsmorninghao/TELEPAL/internal/domain/model"
	"github.com/itsmorninghao/TELEPAL/internal/domain/role"
)

// MemoryStore — общее состояние репозиториев в памяти.
type MemoryStore struct {
	mu sync.Mutex

	permissions map[int64]*model.Permission
	whitelist   map[string]*model.WhitelistEntry
	groups      map[int64]*model.AuthorizedGroup
	nextWLID    int64
}

// NewMemoryStore создаёт пустое состояние в памяти.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		permissions: make(map[int64]*model.Permission),
		whitelist:   make(map[string]*model.WhitelistEntry),
		groups:      make(map[int64]*model.AuthorizedGroup),
	}
}

// Permissions возвращает PermissionRepository поверх состояния в памяти.
func (s *MemoryStore) Permissions() PermissionRepository { return &memPermissionRepo{s: s} }

// Whitelist возвращает WhitelistRepository поверх состояния в памяти.
func (s *MemoryStore) Whitelist() WhitelistRepository { return &memWhitelistRepo{s: s} }

// Groups возвращает GroupRepository поверх состояния в памяти.
func (s *MemoryStore) Groups() GroupRepository { return &memGroupRepo{s: s} }

func wlKey(userID int64, scope model.ScopeType, chatID *int64) string {
	chat := int64(0)
	if chatID != nil {
		chat = *chatID
	}
	return fmt.Sprintf("%d|%s|%d", userID, scope, chat)
}

// --- PermissionRepository ---

type memPermissionRepo struct {
	s *MemoryStore
}

func (r *memPermissionRepo) SetRole(_ context.Context, userID int64, newRole role.Role, grantedBy int64) (role.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now().UTC()
	prior := role.None
	if p, ok := r.s.permissions[userID]; ok {
		prior = p.Role
		p.Role = newRole
		p.GrantedBy = grantedBy
		p.UpdatedAt = now
		return prior, nil
	}
	r.s.permissions[userID] = &model.Permission{
		UserID:    userID,
		Role:      newRole,
		GrantedBy: grantedBy,
		GrantedAt: now,
		UpdatedAt: now,
	}
	return prior, nil
}

func (r *memPermissionRepo) GetRole(_ context.Context, userID int64) (role.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if p, ok := r.s.permissions[userID]; ok {
		return p.Role, nil
	}
	return role.None, nil
}

func (r *memPermissionRepo) Get(_ context.Context, userID int64) (*model.Permission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if p, ok := r.s.permissions[userID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (r *memPermissionRepo) EnsureSuperAdmin(_ context.Context, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now().UTC()
	if p, ok := r.s.permissions[userID]; ok {
		if p.Role != role.SuperAdmin {
			p.Role = role.SuperAdmin
			p.UpdatedAt = now
		}
		return nil
	}
	r.s.permissions[userID] = &model.Permission{
		UserID:    userID,
		Role:      role.SuperAdmin,
		GrantedBy: userID,
		GrantedAt: now,
		UpdatedAt: now,
	}
	return nil
}

// --- WhitelistRepository ---

type memWhitelistRepo struct {
	s *MemoryStore
}

func (r *memWhitelistRepo) Add(_ context.Context, e *model.WhitelistEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := wlKey(e.UserID, e.Scope, e.ChatID)
	if _, ok := r.s.whitelist[key]; ok {
		return ErrConflict
	}
	r.s.nextWLID++
	e.ID = r.s.nextWLID
	e.CreatedAt = time.Now().UTC()
	cp := *e
	r.s.whitelist[key] = &cp
	return nil
}

func (r *memWhitelistRepo) Remove(_ context.Context, userID int64, scope model.ScopeType, chatID *int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := wlKey(userID, scope, chatID)
	if _, ok := r.s.whitelist[key]; !ok {
		return ErrNotFound
	}
	delete(r.s.whitelist, key)
	return nil
}

func (r *memWhitelistRepo) Exists(_ context.Context, userID int64, scope model.ScopeType, chatID *int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	_, ok := r.s.whitelist[wlKey(userID, scope, chatID)]
	return ok, nil
}

func (r *memWhitelistRepo) List(_ context.Context, filters WhitelistFilters) ([]*model.WhitelistEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var result []*model.WhitelistEntry
	for _, e := range r.s.whitelist {
		if filters.Scope != "" && e.Scope != filters.Scope {
			continue
		}
		if filters.ChatID != nil && (e.ChatID == nil || *e.ChatID != *filters.ChatID) {
			continue
		}
		cp := *e
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// --- GroupRepository ---

type memGroupRepo struct {
	s *MemoryStore
}

func (r *memGroupRepo) Authorize(_ context.Context, g *model.AuthorizedGroup) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if existing, ok := r.s.groups[g.ChatID]; ok {
		if g.ChatTitle != "" {
			existing.ChatTitle = g.ChatTitle
		}
		existing.AuthorizedBy = g.AuthorizedBy
		g.AuthorizedAt = existing.AuthorizedAt
		return nil
	}
	g.AuthorizedAt = time.Now().UTC()
	cp := *g
	r.s.groups[g.ChatID] = &cp
	return nil
}

func (r *memGroupRepo) Revoke(_ context.Context, chatID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.groups[chatID]; !ok {
		return ErrNotFound
	}
	delete(r.s.groups, chatID)
	return nil
}

func (r *memGroupRepo) IsAuthorized(_ context.Context, chatID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	_, ok := r.s.groups[chatID]
	return ok, nil
}

func (r *memGroupRepo) Get(_ context.Context, chatID int64) (*model.AuthorizedGroup, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if g, ok := r.s.groups[chatID]; ok {
		cp := *g
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (r *memGroupRepo) List(_ context.Context) ([]*model.AuthorizedGroup, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var result []*model.AuthorizedGroup
	for _, g := range r.s.groups {
		cp := *g
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].AuthorizedAt.Equal(result[j].AuthorizedAt) {
			return result[i].ChatID < result[j].ChatID
		}
		return result[i].AuthorizedAt.Before(result[j].AuthorizedAt)
	})
	return result, nil
}
