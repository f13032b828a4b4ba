package entitlement

import "time"

// AddMonths прибавляет n календарных месяцев в UTC. Если в целевом месяце
// меньше дней, день прижимается к последнему дню месяца (31 января + 1 месяц = 28/29 февраля).
func AddMonths(t time.Time, n int) time.Time {
	t = t.UTC()
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	total := int(month) - 1 + n
	targetYear := year + floorDiv(total, 12)
	targetMonth := time.Month(total - floorDiv(total, 12)*12 + 1)

	if last := daysIn(targetYear, targetMonth); day > last {
		day = last
	}
	return time.Date(targetYear, targetMonth, day, hour, minute, sec, t.Nanosecond(), time.UTC)
}

// AddYears прибавляет n календарных лет, 29 февраля переходит в 28 февраля.
func AddYears(t time.Time, n int) time.Time {
	return AddMonths(t, 12*n)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
