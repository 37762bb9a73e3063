package calls

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// RawFields holds request fields before decoding. Values are JSON: a multipart
// form value arrives as a JSON string, a JSON body member as-is.
type RawFields map[string]json.RawMessage

// FormFields converts form values into RawFields, keeping the first value of each key
func FormFields(values map[string][]string) RawFields {
	raw := make(RawFields, len(values))
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		b, _ := json.Marshal(vals[0])
		raw[key] = b
	}
	return raw
}

// ParseOrDefault decodes raw into T. raw may be the JSON value itself or a JSON
// string that contains it. Anything else yields def and false; it never fails.
func ParseOrDefault[T any](raw json.RawMessage, def T) (T, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return def, false
	}

	var v T
	if err := json.Unmarshal(raw, &v); err == nil {
		return v, true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return def, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return def, false
	}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return def, false
	}
	return v, true
}

// String returns a field as text. Numbers are kept in their literal form.
func (r RawFields) String(key string) string {
	raw := bytes.TrimSpace(r[key])
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// Float returns a numeric field; text is parsed, anything unparseable is zero
func (r RawFields) Float(key string) float64 {
	raw := bytes.TrimSpace(r[key])
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	v, err := strconv.ParseFloat(r.String(key), 64)
	if err != nil {
		return 0
	}
	return v
}
