package uiutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeAgo(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{0, "Hace 0 minutos"},
		{-5 * time.Minute, "Hace 0 minutos"},
		{time.Minute, "Hace 1 minutos"},
		{59 * time.Minute, "Hace 59 minutos"},
		{time.Hour, "Hace 1 hora"},
		{5*time.Hour + 30*time.Minute, "Hace 5 horas"},
		{24 * time.Hour, "Hace 1 día"},
		{72 * time.Hour, "Hace 3 días"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TimeAgo(now.Add(-tt.ago), now), "ago=%s", tt.ago)
	}
}

func TestFormatKm(t *testing.T) {
	assert.Equal(t, "0.0 km", FormatKm(0))
	assert.Equal(t, "12.3 km", FormatKm(12.34))
	assert.Equal(t, "1234.6 km", FormatKm(1234.56))
}

func TestFormatFriendlyDateTime(t *testing.T) {
	assert.Empty(t, FormatFriendlyDateTime(time.Time{}))
	ts := time.Date(2025, 3, 7, 9, 5, 0, 0, time.Local)
	assert.Equal(t, "07/03/2025 09:05", FormatFriendlyDateTime(ts))
}

func TestTruncateWithEllipsis(t *testing.T) {
	assert.Equal(t, "corto", TruncateWithEllipsis("corto", 10))
	assert.Equal(t, "Situació…", TruncateWithEllipsis("Situación de pobreza", 9))
	assert.Equal(t, "…", TruncateWithEllipsis("abc", 1))
}
