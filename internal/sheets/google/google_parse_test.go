package google

import (
	"testing"

	"allowance/internal/core"
)

func TestNextRow(t *testing.T) {
	tests := []struct {
		name   string
		values [][]any
		want   int
	}{
		{"empty sheet", nil, 1},
		{"header only", [][]any{{"date"}}, 2},
		{"two entries", [][]any{{"date"}, {"2025-09-01"}, {"2025-09-02"}}, 4},
		{"blank tail", [][]any{{"date"}, {"2025-09-01"}, {}, {" "}}, 3},
		{"inner blank kept", [][]any{{"date"}, {}, {"2025-09-02"}}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nextRow(tt.values); got != tt.want {
				t.Errorf("nextRow() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestTableValues(t *testing.T) {
	values := tableValues([]core.Entry{{Date: "2025-09-12", Item: "bonus", Amount: 500, Balance: 1400}})
	if len(values) != 2 {
		t.Fatalf("got %d rows", len(values))
	}
	if values[0][0] != "date" || values[1][1] != "bonus" || values[1][3] != int64(1400) {
		t.Fatalf("unexpected values %v", values)
	}
	if got := rowRef("Allowance", 7); got != "Allowance!A7:D7" {
		t.Fatalf("rowRef = %q", got)
	}
}
