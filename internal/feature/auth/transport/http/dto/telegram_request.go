package dto

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// TelegramLoginReq represents the request body for the /telegram-login endpoint.
// TelegramData is the widget payload as sent, including "hash".
type TelegramLoginReq struct {
	TelegramData map[string]any `json:"telegramData"`
}

// Fields returns the payload with every value rendered the way the widget
// signed it: integers without a fraction, booleans as true/false.
// Null values are dropped.
func (r TelegramLoginReq) Fields() map[string]string {
	out := make(map[string]string, len(r.TelegramData))
	for k, v := range r.TelegramData {
		if s, ok := stringifyValue(v); ok {
			out[k] = s
		}
	}
	return out
}

func stringifyValue(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
	return fmt.Sprint(v), true
}
