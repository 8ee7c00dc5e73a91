package services

import "testing"

func TestParseFeed(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantKeys []string
		wantErr  bool
	}{
		{"keyed object sorted", `{"b": {"timestamp": 2}, "a": {"timestamp": 1}}`, []string{"a", "b"}, false},
		{"array with keys", `[{"key": "x", "timestamp": 1}, {"timestamp": 2}]`, []string{"x", ""}, false},
		{"empty", "  ", nil, true},
		{"scalar", `42`, nil, true},
		{"broken object", `{"a": `, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := ParseFeed([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFeed() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(records) != len(tt.wantKeys) {
				t.Fatalf("records = %d, want %d", len(records), len(tt.wantKeys))
			}
			for i, k := range tt.wantKeys {
				if records[i].Key != k {
					t.Errorf("records[%d].Key = %q, want %q", i, records[i].Key, k)
				}
			}
		})
	}
}
