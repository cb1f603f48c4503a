package field

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/warpmodel/ports"
)

// StoredTimeLayout is the layout timestamps are persisted with (always UTC).
const StoredTimeLayout = "2006-01-02 15:04:05"

// Layouts accepted by the Date parser, tried in order.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	StoredTimeLayout,
	"2006-01-02",
}

// NoSpaces strips every space from a string value.
var NoSpaces = Parser{Fn: func(value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return value, nil
	}
	return strings.ReplaceAll(s, " ", ""), nil
}}

// PasswordHash hashes a plaintext value with the given hasher and work factor.
func PasswordHash(h ports.Hasher, cost int) Parser {
	return Parser{Fn: func(value any) (any, error) {
		if value == nil {
			return nil, nil
		}
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("password must be a string, got %T", value)
		}
		hash, err := h.Hash(s, cost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		return hash, nil
	}}
}

// IntegerParser converts numbers and numeric strings to int64 and turns
// Increment values into IncrementOp.
var IntegerParser = Parser{Accepts: KindIncrement, Fn: func(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch v := value.(type) {
	case Increment:
		return IncrementOp{Amount: v.Amount}, nil
	case *Increment:
		return IncrementOp{Amount: v.Amount}, nil
	}
	n, ok := toInt64(value)
	if !ok {
		if f, fok := toFloat64(value); fok {
			return int64(f), nil
		}
		return nil, fmt.Errorf("cannot parse %v as integer", value)
	}
	return n, nil
}}

// FloatParser renders a number with a fixed number of decimals.
func FloatParser(decimals int) Parser {
	return Parser{Fn: func(value any) (any, error) {
		if value == nil {
			return nil, nil
		}
		f, ok := toFloat64(value)
		if !ok {
			return nil, fmt.Errorf("cannot parse %v as float", value)
		}
		return strconv.FormatFloat(f, 'f', decimals, 64), nil
	}}
}

// DateParser converts a date value to the stored UTC layout.
var DateParser = Parser{Fn: func(value any) (any, error) {
	t, ok, err := toTime(value)
	if err != nil || !ok {
		return nil, err
	}
	return t.UTC().Format(StoredTimeLayout), nil
}}

// ReferenceParser reduces a Reference to its id.
var ReferenceParser = Parser{Accepts: KindReference, Fn: func(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	ref, ok := asReference(value)
	if !ok {
		return nil, fmt.Errorf("expected a pointer, got %T", value)
	}
	return ref.ID, nil
}}

// FileParser reduces an Attachment to its key.
var FileParser = Parser{Accepts: KindAttachment, Fn: func(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	a, ok := asAttachment(value)
	if !ok {
		return nil, fmt.Errorf("expected a file, got %T", value)
	}
	return a.Key, nil
}}

// ObjectParser serializes structured values to JSON text. Strings pass through.
var ObjectParser = Parser{Fn: func(value any) (any, error) {
	if isEmpty(value) {
		return nil, nil
	}
	if s, ok := value.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode object: %w", err)
	}
	return string(b), nil
}}

// JSONParser is ObjectParser that also turns JSONAppend and JSONSet into JSONOp.
var JSONParser = Parser{Accepts: KindJSON, Fn: func(value any) (any, error) {
	switch v := value.(type) {
	case JSONAppend:
		return jsonOp(JSONOpAppend, v.Path, v.Value)
	case *JSONAppend:
		return jsonOp(JSONOpAppend, v.Path, v.Value)
	case JSONSet:
		return jsonOp(JSONOpSet, v.Path, v.Value)
	case *JSONSet:
		return jsonOp(JSONOpSet, v.Path, v.Value)
	}
	return ObjectParser.Fn(value)
}}

func jsonOp(op, path string, value any) (any, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode %s value: %w", op, err)
	}
	return JSONOp{Op: op, Path: path, Value: string(b)}, nil
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	}
	return false
}

// toTime interprets strings, byte slices and time.Time as a point in time.
// ok is false for empty input.
func toTime(value any) (time.Time, bool, error) {
	switch v := value.(type) {
	case nil:
		return time.Time{}, false, nil
	case time.Time:
		if v.IsZero() {
			return time.Time{}, false, nil
		}
		return v, true, nil
	case *time.Time:
		if v == nil || v.IsZero() {
			return time.Time{}, false, nil
		}
		return *v, true, nil
	case []byte:
		return toTime(string(v))
	case string:
		if v == "" {
			return time.Time{}, false, nil
		}
		for _, layout := range dateLayouts {
			if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
				return t, true, nil
			}
		}
		return time.Time{}, false, fmt.Errorf("cannot parse %q as a date", v)
	}
	return time.Time{}, false, fmt.Errorf("cannot parse %T as a date", value)
}
