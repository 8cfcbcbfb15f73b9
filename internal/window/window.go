// window — политика «окон» редактирования и восстановления комментариев.
//
// Граница окна включительная: запрос ровно в момент anchor+window ещё разрешён.
// Одна и та же функция используется сервером (авторитетная проверка) и
// при расчёте дедлайнов, которые отдаются клиенту для скрытия кнопок.
package window

import "time"

// Clock — источник текущего времени. В тестах подменяется фиксированными часами.
type Clock interface {
	Now() time.Time
}

// SystemClock — реальные часы (UTC).
type SystemClock struct{}

// Now возвращает текущее время в UTC.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Within сообщает, что now не позже anchor+window (now - anchor <= window).
func Within(now, anchor time.Time, window time.Duration) bool {
	return now.Sub(anchor) <= window
}

// Deadline — последний момент, в который действие ещё разрешено.
func Deadline(anchor time.Time, window time.Duration) time.Time {
	return anchor.Add(window)
}
