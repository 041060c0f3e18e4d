package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// marshalAttributes converts branch attributes to JSON TEXT for storage.
// Map keys are sorted by encoding/json, so equal inputs produce equal text.
func marshalAttributes(attrs BranchAttributes) (string, error) {
	if attrs == nil {
		attrs = BranchAttributes{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(attrs); err != nil {
		return "", fmt.Errorf("marshal attributes: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// unmarshalAttributes parses stored attributes. Integral numbers come
// back as int64 and other numbers as float64, so script arithmetic keeps
// integer semantics across a reload.
func unmarshalAttributes(data string) (BranchAttributes, error) {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()
	var raw map[string]map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal attributes: %w", err)
	}
	out := make(BranchAttributes, len(raw))
	for branch, attrs := range raw {
		conv := make(map[string]any, len(attrs))
		for k, v := range attrs {
			conv[k] = fromJSON(v)
		}
		out[branch] = conv
	}
	return out, nil
}

func fromJSON(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	case []any:
		for i := range val {
			val[i] = fromJSON(val[i])
		}
		return val
	case map[string]any:
		for k := range val {
			val[k] = fromJSON(val[k])
		}
		return val
	default:
		return v
	}
}
