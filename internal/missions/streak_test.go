package missions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRegisterLogin(t *testing.T) {
	day := func(d, h int) time.Time { return time.Date(2026, 5, d, h, 0, 0, 0, time.UTC) }

	tests := []struct {
		name   string
		streak int
		total  int
		last   string
		now    time.Time
		want   LoginUpdate
	}{
		{
			name: "first login",
			now:  day(10, 9),
			want: LoginUpdate{Streak: 1, DaysTotal: 1, LastLoginDate: "2026-05-10", NewDay: true},
		},
		{
			name: "same day unchanged", streak: 3, total: 8, last: "2026-05-10",
			now:  day(10, 23),
			want: LoginUpdate{Streak: 3, DaysTotal: 8, LastLoginDate: "2026-05-10"},
		},
		{
			name: "next day increments", streak: 3, total: 8, last: "2026-05-10",
			now:  day(11, 0),
			want: LoginUpdate{Streak: 4, DaysTotal: 9, LastLoginDate: "2026-05-11", NewDay: true},
		},
		{
			name: "one missed day forgiven", streak: 3, total: 8, last: "2026-05-10",
			now:  day(12, 8),
			want: LoginUpdate{Streak: 4, DaysTotal: 9, LastLoginDate: "2026-05-12", NewDay: true},
		},
		{
			name: "longer gap resets", streak: 6, total: 8, last: "2026-05-10",
			now:  day(13, 8),
			want: LoginUpdate{Streak: 1, DaysTotal: 9, LastLoginDate: "2026-05-13", NewDay: true},
		},
		{
			name: "garbage date restarts", streak: 6, total: 8, last: "yesterday",
			now:  day(13, 8),
			want: LoginUpdate{Streak: 1, DaysTotal: 9, LastLoginDate: "2026-05-13", NewDay: true},
		},
		{
			name: "clock skew treated as same day", streak: 2, total: 2, last: "2026-05-14",
			now:  day(13, 8),
			want: LoginUpdate{Streak: 2, DaysTotal: 2, LastLoginDate: "2026-05-14"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RegisterLogin(tt.streak, tt.total, tt.last, tt.now)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegisterLogin_MonthBoundary(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 5, 0, 0, time.UTC)
	got := RegisterLogin(5, 20, "2026-02-28", now)
	assert.Equal(t, 6, got.Streak)
	assert.Equal(t, 21, got.DaysTotal)
}
