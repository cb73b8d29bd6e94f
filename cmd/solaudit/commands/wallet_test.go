package commands

import "testing"

func TestParseSOL(t *testing.T) {
	tests := []struct {
		arg     string
		want    uint64
		wantErr bool
	}{
		{"1", 1_000_000_000, false},
		{"0.5", 500_000_000, false},
		{"0.000000001", 1, false},
		{"0", 0, true},
		{"-2", 0, true},
		{"NaN", 0, true},
		{"Inf", 0, true},
		{"1e30", 0, true},
		{"0.0000000001", 0, true},
		{"ten", 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.arg, func(t *testing.T) {
			got, err := parseSOL(tc.arg)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("parseSOL(%q) = %d, want error", tc.arg, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseSOL(%q): %v", tc.arg, err)
			}
			if got != tc.want {
				t.Fatalf("parseSOL(%q) = %d, want %d", tc.arg, got, tc.want)
			}
		})
	}
}
