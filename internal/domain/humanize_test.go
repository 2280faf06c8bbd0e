package domain

import (
	"testing"
	"time"
)

func TestHumanAge(t *testing.T) {
	now := time.Date(2025, 11, 20, 12, 0, 0, 0, time.UTC)
	cases := map[string]string{
		"2025-11-20T12:00:00Z": "just now",
		"2025-11-20T11:59:59Z": "1 second ago",
		"2025-11-20T11:59:15Z": "45 seconds ago",
		"2025-11-20T11:58:00Z": "2 minutes ago",
		"2025-11-20T09:00:00Z": "3 hours ago",
		"2025-11-19T12:00:00Z": "1 day ago",
		"2025-11-14T12:00:00Z": "6 days ago",
		"2025-11-06T12:00:00Z": "2 weeks ago",
		"2025-09-20T12:00:00Z": "2 months ago",
		"2023-11-20T12:00:00Z": "2 years ago",
	}
	for created, expected := range cases {
		ts, err := time.Parse(time.RFC3339, created)
		if err != nil {
			t.Fatalf("не удалось разобрать дату %s: %v", created, err)
		}
		if got := HumanAge(ts, now); got != expected {
			t.Fatalf("для %s ожидали %q, получили %q", created, expected, got)
		}
	}
}
