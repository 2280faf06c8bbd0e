package domain

import (
	"fmt"
	"time"
)

// HumanAge возвращает человекочитаемый возраст записи относительно now,
// например "3 days ago". Метки отдаются на английском, как и остальной API.
func HumanAge(created, now time.Time) string {
	d := now.Sub(created)
	if d < time.Second {
		return "just now"
	}
	switch {
	case d < time.Minute:
		return agoLabel(int(d.Seconds()), "second")
	case d < time.Hour:
		return agoLabel(int(d.Minutes()), "minute")
	case d < 24*time.Hour:
		return agoLabel(int(d.Hours()), "hour")
	}
	days := int(d.Hours() / 24)
	switch {
	case days < 7:
		return agoLabel(days, "day")
	case days < 30:
		return agoLabel(days/7, "week")
	case days < 365:
		return agoLabel(days/30, "month")
	}
	return agoLabel(days/365, "year")
}

func agoLabel(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
