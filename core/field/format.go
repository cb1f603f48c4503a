package field

import (
	"encoding/json"
	"math"
)

// DisplayTimeLayout renders timestamps as ISO-8601 with an explicit offset.
// Times are always converted to UTC first, so the offset is +00:00.
const DisplayTimeLayout = "2006-01-02T15:04:05-07:00"

// IntegerFormatter returns stored integers as int64. Pending increments are
// dropped since their result is only known to the datastore.
func IntegerFormatter(value any, _ Context) any {
	if value == nil {
		return nil
	}
	if _, ok := value.(IncrementOp); ok {
		return Unset
	}
	if n, ok := toInt64(value); ok {
		return n
	}
	if f, ok := toFloat64(value); ok {
		return int64(f)
	}
	return value
}

// FloatFormatter rounds stored numbers to the given number of decimals.
func FloatFormatter(decimals int) Formatter {
	scale := math.Pow10(decimals)
	return func(value any, _ Context) any {
		if value == nil {
			return nil
		}
		f, ok := toFloat64(value)
		if !ok {
			return value
		}
		return math.Round(f*scale) / scale
	}
}

// DateFormatter renders stored UTC timestamps in DisplayTimeLayout.
func DateFormatter(value any, _ Context) any {
	t, ok, err := toTime(value)
	if err != nil {
		return value
	}
	if !ok {
		return nil
	}
	return t.UTC().Format(DisplayTimeLayout)
}

// ReferenceFormatter expands a stored id to a Reference of className.
func ReferenceFormatter(className string) Formatter {
	return func(value any, _ Context) any {
		if isEmpty(value) {
			return nil
		}
		if ref, ok := asReference(value); ok {
			return ref
		}
		return Reference{ClassName: className, ID: normalizeNumber(value)}
	}
}

// FileFormatter expands a stored key to an Attachment with its URL.
func FileFormatter(value any, ctx Context) any {
	if isEmpty(value) {
		return nil
	}
	if a, ok := asAttachment(value); ok {
		return a
	}
	var key string
	switch v := value.(type) {
	case string:
		key = v
	case []byte:
		key = string(v)
	default:
		return value
	}
	a := Attachment{Key: key}
	if ctx != nil {
		a.URL = ctx.FileURL(key)
	}
	return a
}

// ObjectFormatter decodes stored JSON text.
func ObjectFormatter(value any, _ Context) any {
	if isEmpty(value) {
		return nil
	}
	var text []byte
	switch v := value.(type) {
	case string:
		text = []byte(v)
	case []byte:
		text = v
	default:
		return value
	}
	var out any
	if err := json.Unmarshal(text, &out); err != nil {
		return string(text)
	}
	return out
}

// JSONFormatter is ObjectFormatter that drops pending JSON patches.
func JSONFormatter(value any, ctx Context) any {
	if _, ok := value.(JSONOp); ok {
		return Unset
	}
	return ObjectFormatter(value, ctx)
}
