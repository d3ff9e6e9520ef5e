// Пакет role — закрытое перечисление ролей бота и правила их старшинства.
// Иерархия: super_admin > group_admin > none.
// Роль хранится в таблице permissions; отсутствие записи эквивалентно none.
package role

// Role — уровень доверия пользователя.
type Role string

// Роли в порядке убывания привилегий.
const (
	// SuperAdmin — полный доступ: обходит белые списки и авторизацию групп.
	SuperAdmin Role = "super_admin"
	// GroupAdmin — управление белыми списками в приватном чате и в группах.
	GroupAdmin Role = "group_admin"
	// None — без повышенной роли. Эквивалентна отсутствию записи в БД.
	None Role = "none"
)

// roleWeight — вес роли для сравнения старшинства.
var roleWeight = map[Role]int{
	SuperAdmin: 2,
	GroupAdmin: 1,
	None:       0,
}

// Parse преобразует строку в Role.
// Возвращает false, если строка не является допустимой ролью.
func Parse(s string) (Role, bool) {
	r := Role(s)
	_, ok := roleWeight[r]
	return r, ok
}

// IsValid проверяет, является ли строка допустимой ролью.
func IsValid(s string) bool {
	_, ok := Parse(s)
	return ok
}

// Elevated сообщает, даёт ли роль повышенные привилегии (не none).
func (r Role) Elevated() bool {
	return roleWeight[r] > roleWeight[None]
}

// AtLeast сообщает, не ниже ли роль r роли other.
func (r Role) AtLeast(other Role) bool {
	return roleWeight[r] >= roleWeight[other]
}

// String возвращает строковое представление роли.
func (r Role) String() string {
	return string(r)
}
