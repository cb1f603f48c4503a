package field

import (
	"encoding/json"
	"math"
	"strconv"
)

// Kind tags a structured client value. Plain values have KindPlain.
// Kinds are bit flags so a parser can accept more than one.
type Kind uint8

// KindPlain marks any value that is not one of the structured variants.
const KindPlain Kind = 0

const (
	KindReference Kind = 1 << iota
	KindAttachment
	KindIncrement
	KindJSONAppend
	KindJSONSet

	// KindJSON covers both JSON patch operations.
	KindJSON = KindJSONAppend | KindJSONSet
)

// Wire tags carried in the "type" member of structured values.
const (
	TagReference  = "Pointer"
	TagAttachment = "File"
	TagIncrement  = "Increment"
	TagJSONAppend = "JsonAppend"
	TagJSONSet    = "JsonSet"
)

// Reference points to another record by id.
// Attributes is filled on read when subfields of the reference were requested.
type Reference struct {
	ClassName  string
	ID         any
	Attributes map[string]any
}

// MarshalJSON renders the reference display object.
func (r Reference) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"type":      TagReference,
		"className": r.ClassName,
		"id":        r.ID,
	}
	if len(r.Attributes) > 0 {
		out["attributes"] = r.Attributes
	}
	return json.Marshal(out)
}

// Attachment references an externally stored blob by key.
type Attachment struct {
	Key string
	URL string
}

// MarshalJSON renders the file display object.
func (a Attachment) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"type": TagAttachment,
		"key":  a.Key,
	}
	if a.URL != "" {
		out["url"] = a.URL
	}
	return json.Marshal(out)
}

// Increment adds Amount to the stored value of an integer field.
type Increment struct {
	Amount any
}

// JSONAppend appends Value to the array found at Path inside a JSON field.
type JSONAppend struct {
	Path  string
	Value any
}

// JSONSet writes Value at Path inside a JSON field.
type JSONSet struct {
	Path  string
	Value any
}

// IncrementOp is the parsed form of an Increment handed to executors.
type IncrementOp struct {
	Amount any
}

// JSON patch operation names.
const (
	JSONOpAppend = "append"
	JSONOpSet    = "set"
)

// JSONOp is the parsed form of a JSON patch handed to executors.
// Value holds JSON text.
type JSONOp struct {
	Op    string
	Path  string
	Value string
}

type unset struct{}

// Unset is returned by formatters when the key should be dropped from the
// formatted record, e.g. for pending increments whose result is unknown.
var Unset any = unset{}

// KindOf returns the structured kind of v.
func KindOf(v any) Kind {
	switch v.(type) {
	case Reference, *Reference:
		return KindReference
	case Attachment, *Attachment:
		return KindAttachment
	case Increment, *Increment:
		return KindIncrement
	case JSONAppend, *JSONAppend:
		return KindJSONAppend
	case JSONSet, *JSONSet:
		return KindJSONSet
	default:
		return KindPlain
	}
}

// Decode converts a decoded JSON object carrying a known "type" tag into the
// matching structured value. Any other value is returned unchanged.
func Decode(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	tag, _ := m["type"].(string)
	switch tag {
	case TagReference:
		className, _ := m["className"].(string)
		return Reference{ClassName: className, ID: normalizeNumber(m["id"])}
	case TagAttachment:
		key, _ := m["key"].(string)
		return Attachment{Key: key}
	case TagIncrement:
		return Increment{Amount: normalizeNumber(m["value"])}
	case TagJSONAppend:
		path, _ := m["path"].(string)
		return JSONAppend{Path: path, Value: m["value"]}
	case TagJSONSet:
		path, _ := m["path"].(string)
		return JSONSet{Path: path, Value: m["value"]}
	}
	return v
}

// DecodeFields applies Decode to every value of a client field set.
func DecodeFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = Decode(v)
	}
	return out
}

// normalizeNumber turns integral float64 values (as produced by encoding/json)
// into int64 so ids compare equal to what executors return.
func normalizeNumber(v any) any {
	switch n := v.(type) {
	case float64:
		if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
			return int64(n)
		}
		return n
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	case int:
		return int64(n)
	case int32:
		return int64(n)
	default:
		return v
	}
}

// toInt64 converts numeric and numeric-string values to int64.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float32:
		if float64(n) != math.Trunc(float64(n)) {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	case []byte:
		i, err := strconv.ParseInt(string(n), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

// toFloat64 converts numeric and numeric-string values to float64.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	case []byte:
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
