// Package fines содержит расчёт штрафа за просрочку возврата.
package fines

import "time"

// Calculate возвращает штраф в копейках за возврат займа после срока.
// Сравнение ведётся по календарным датам: время суток не учитывается.
// Возврат в срок или раньше даёт нулевой штраф, иначе штраф равен числу
// полных календарных дней просрочки, умноженному на ставку perDayCents.
func Calculate(dueDate, returnedAt time.Time, perDayCents int64) int64 {
	due := truncateToDate(dueDate)
	ret := truncateToDate(returnedAt)

	if !ret.After(due) {
		return 0
	}

	days := int64(ret.Sub(due).Hours() / 24)

	return days * perDayCents
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
