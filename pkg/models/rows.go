package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Rows is a result set as field-value mappings. Values are nil, bool,
// int64, float64 or string.
//
// The JSON form keeps the integer/float distinction: floats are always
// written with a decimal point or exponent and integers never are, so a
// decoded value has the same Go type it was encoded with.
type Rows []map[string]any

// MarshalJSON implements json.Marshaler.
func (r Rows) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	out := make([]map[string]any, len(r))
	for i, row := range r {
		if row == nil {
			continue
		}
		enc := make(map[string]any, len(row))
		for k, v := range row {
			enc[k] = encodeValue(v)
		}
		out[i] = enc
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Rows) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	for _, row := range raw {
		for k, v := range row {
			row[k] = decodeValue(v)
		}
	}
	*r = Rows(raw)
	return nil
}

func encodeValue(v any) any {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	default:
		return v
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return json.RawMessage(s)
}

func decodeValue(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			return i
		}
	}
	f, err := n.Float64()
	if err != nil {
		return s
	}
	return f
}
