package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"structured", `{"token":"AB12CD"}`, "AB12CD"},
		{"structured with padding", "  {\"token\": \"AB12CD\", \"v\": 2}\n", "AB12CD"},
		{"plain token", "AB12CD", "AB12CD"},
		{"broken json falls back to raw", `{"token":`, `{"token":`},
		{"json without token falls back to raw", `{"id":"x"}`, `{"id":"x"}`},
		{"json with non string token falls back to raw", `{"token":42}`, `{"token":42}`},
		{"script stays raw", "<script>", "<script>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParsePayload(tt.raw))
		})
	}
}
