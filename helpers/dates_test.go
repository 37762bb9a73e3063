package helpers

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{in: "2026-03-01", want: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), ok: true},
		{in: "2026-03-01T09:15:00Z", want: time.Date(2026, 3, 1, 9, 15, 0, 0, time.UTC), ok: true},
		{in: " 2026/03/01 ", want: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), ok: true},
		{in: "Mar 1, 2026", want: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), ok: true},
		{in: "next tuesday", ok: false},
		{in: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDate(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "got %v", got)
			}
		})
	}
}

func TestNewestFirstPutsUnparseableLast(t *testing.T) {
	dates := []string{"soon", "2026-01-05", "2026-02-01", "", "2025-12-31"}
	sort.SliceStable(dates, func(i, j int) bool { return NewestFirst(dates[i], dates[j]) })

	assert.Equal(t, []string{"2026-02-01", "2026-01-05", "2025-12-31", "soon", ""}, dates)
}
