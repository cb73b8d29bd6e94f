package infra

import (
	"errors"
	"testing"
)

func TestExtractMarker(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantMarker string
		wantBody   string
		wantErr    error
	}{
		{
			name:       "valid marker",
			query:      "--sql 0f0557a2-1731-4fc6-8cbe-8540b1d2b6df\nselect 1;\n",
			wantMarker: "0f0557a2-1731-4fc6-8cbe-8540b1d2b6df",
			wantBody:   "select 1;",
		},
		{
			name:       "leading whitespace",
			query:      "\n   --sql 0f0557a2-1731-4fc6-8cbe-8540b1d2b6df\nselect\n  1;",
			wantMarker: "0f0557a2-1731-4fc6-8cbe-8540b1d2b6df",
			wantBody:   "select\n  1;",
		},
		{
			name:    "missing marker",
			query:   "select 1;",
			wantErr: ErrMissingMarker,
		},
		{
			name:    "uppercase uuid rejected",
			query:   "--sql 0F0557A2-1731-4FC6-8CBE-8540B1D2B6DF\nselect 1;",
			wantErr: ErrMissingMarker,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			marker, body, err := ExtractMarker(tc.query)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("ExtractMarker() error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractMarker() unexpected error: %v", err)
			}
			if marker != tc.wantMarker {
				t.Fatalf("marker = %q, want %q", marker, tc.wantMarker)
			}
			if body != tc.wantBody {
				t.Fatalf("body = %q, want %q", body, tc.wantBody)
			}
		})
	}
}

func TestExtractMarkerRejectsMarkerOnly(t *testing.T) {
	if _, _, err := ExtractMarker("--sql 0f0557a2-1731-4fc6-8cbe-8540b1d2b6df\n"); err == nil {
		t.Fatal("expected error for marker without statement")
	}
}
