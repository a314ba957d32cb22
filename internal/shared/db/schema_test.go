package db

import (
	"strings"
	"testing"
)

func stmtFor(t *testing.T, fragment string) string {
	t.Helper()
	for _, s := range schema {
		if strings.Contains(s, fragment) {
			return strings.Join(strings.Fields(s), " ")
		}
	}
	t.Fatalf("no statement with %q", fragment)
	return ""
}

// ids de série recomeçam em cada mesa, então toda chave leva table_id
func TestSeriesKeysAreScopedByTable(t *testing.T) {
	cases := []struct {
		stmt string
		want string
	}{
		{"TABLE IF NOT EXISTS craps_series", "PRIMARY KEY (table_id, id)"},
		{"TABLE IF NOT EXISTS craps_rolls", "PRIMARY KEY (table_id, series_id, seq)"},
		{"TABLE IF NOT EXISTS craps_rolls", "FOREIGN KEY (table_id, series_id) REFERENCES craps_series (table_id, id)"},
		{"table_event_history_roll_uq", "(table_id, series_id, roll_seq)"},
	}
	for _, tc := range cases {
		if got := stmtFor(t, tc.stmt); !strings.Contains(got, tc.want) {
			t.Errorf("%s: missing %q in %s", tc.stmt, tc.want, got)
		}
	}
	if got := stmtFor(t, "TABLE IF NOT EXISTS craps_series"); strings.Contains(got, "id BIGINT PRIMARY KEY") {
		t.Errorf("craps_series still keyed on id alone: %s", got)
	}
}
