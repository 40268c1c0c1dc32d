package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegramLoginReq_Fields(t *testing.T) {
	var req TelegramLoginReq
	raw := `{"telegramData":{
		"id": 123456789,
		"auth_date": 1700000000,
		"first_name": "Ann",
		"last_name": null,
		"is_premium": true,
		"ratio": 1.5,
		"hash": "abc"
	}}`
	require.NoError(t, json.Unmarshal([]byte(raw), &req))

	got := req.Fields()

	assert.Equal(t, map[string]string{
		"id":         "123456789",
		"auth_date":  "1700000000",
		"first_name": "Ann",
		"is_premium": "true",
		"ratio":      "1.5",
		"hash":       "abc",
	}, got)
}

func TestTelegramLoginReq_FieldsEmpty(t *testing.T) {
	assert.Empty(t, TelegramLoginReq{}.Fields())
}

func TestStringifyValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"json number", json.Number("42"), "42"},
		{"large integer", float64(9007199254740991), "9007199254740991"},
		{"false", false, "false"},
		{"nested object", map[string]any{"a": "b"}, `{"a":"b"}`},
		{"array", []any{"x", float64(1)}, `["x",1]`},
		{"other", 7, "7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := stringifyValue(tt.in)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSeconds(t *testing.T) {
	assert.Equal(t, 0, Seconds(0))
	assert.Equal(t, 40, Seconds(39500*1e6))
	assert.Equal(t, 60, Seconds(60*1e9))
}
