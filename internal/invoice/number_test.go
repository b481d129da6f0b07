package invoice

import "testing"

func TestNextNumber(t *testing.T) {
	tests := []struct {
		name    string
		current string
		want    string
	}{
		{"empty_seeds_sequence", "", "00001"},
		{"zero_padded", "00005", "00006"},
		{"prefix_preserved", "INV-0099", "INV-0100"},
		{"width_grows_on_overflow", "INV-9999", "INV-10000"},
		{"no_digits_appends_run", "ABC", "ABC-001"},
		{"suffix_preserved", "2024-0007-DRAFT", "2024-0008-DRAFT"},
		{"last_run_wins", "INV2024-003", "INV2024-004"},
		{"plain_number", "41", "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextNumber(tt.current); got != tt.want {
				t.Fatalf("NextNumber(%q) = %q, want %q", tt.current, got, tt.want)
			}
		})
	}
}

func TestNextNumberNeverRepeats(t *testing.T) {
	seen := map[string]bool{}
	cur := ""

	for i := 0; i < 200; i++ {
		cur = NextNumber(cur)
		if seen[cur] {
			t.Fatalf("sequence repeated value %q after %d steps", cur, i)
		}
		seen[cur] = true
	}
}
