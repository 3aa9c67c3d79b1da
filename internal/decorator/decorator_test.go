package decorator

import (
	"strings"
	"testing"
	"time"

	"github.com/netspec/alertbatch/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTitleAndContent(t *testing.T) {
	fired := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)
	alerts := types.AlertsByType{}
	alerts.Add(types.Alert{
		Type: "DISK", Device: "db-1", Entity: "/var", Severity: "warning",
		Message: "92% used", FiredAt: fired, LastSeen: fired.Add(time.Hour), Occurrences: 4,
	})
	alerts.Add(types.Alert{Type: "CPU", Device: "web-1", FiredAt: fired, LastSeen: fired, Occurrences: 1})
	alerts["NET"] = types.AlertSet{}

	title, content, err := New("[alertbatch]").TitleAndContent(alerts)
	require.NoError(t, err)

	assert.Equal(t, "[alertbatch] 2 alert(s): CPU, DISK", title)
	assert.Contains(t, content, "== CPU (1) ==")
	assert.Contains(t, content, "== DISK (1) ==")
	assert.NotContains(t, content, "NET")
	assert.Contains(t, content, "- [warning] db-1 /var: 92% used")
	assert.Contains(t, content, "- [unknown] web-1")
	assert.Contains(t, content, "repeated 4 times")
	assert.Contains(t, content, "last seen 2026-05-04T09:00:00Z")
	assert.Less(t, strings.Index(content, "CPU"), strings.Index(content, "DISK"), "types are sorted")
}

func TestTitleAndContent_NoPrefix(t *testing.T) {
	alerts := types.AlertsByType{}
	alerts.Add(types.Alert{Type: "DISK", Device: "db-1"})

	title, _, err := New("").TitleAndContent(alerts)
	require.NoError(t, err)
	assert.Equal(t, "1 alert(s): DISK", title)
}
