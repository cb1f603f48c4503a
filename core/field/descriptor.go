// Package field provides the per-field behavior of a model: validators that
// reject bad client input, parsers that turn client values into stored values,
// and formatters that turn stored values back into display values.
//
// Client values are either plain Go values or one of the structured variants
// (Reference, Attachment, Increment, JSONAppend, JSONSet). A structured value
// may only be supplied to a field whose parser accepts its Kind.
package field

// Validator checks a client value. It returns a non-empty message when the
// value is invalid.
type Validator func(value any, key string) string

// Parser turns a client value into the value handed to the executor.
// Accepts lists the structured kinds this parser consumes.
type Parser struct {
	Accepts Kind
	Fn      func(value any) (any, error)
}

// Defined reports whether the parser has a function.
func (p Parser) Defined() bool {
	return p.Fn != nil
}

// Parse applies the parser. An undefined parser returns the value unchanged.
func (p Parser) Parse(value any) (any, error) {
	if p.Fn == nil {
		return value, nil
	}
	return p.Fn(value)
}

// Context is handed to formatters. The compiled model definition implements it.
type Context interface {
	// FileURL resolves an attachment key to a URL.
	FileURL(key string) string
}

// Formatter turns a stored value into its display form.
// It may return Unset to drop the key from the formatted record.
type Formatter func(value any, ctx Context) any

// Descriptor groups the behavior of one field.
type Descriptor struct {
	Validate Validator
	Parse    Parser
	Format   Formatter
}

// CheckKind enforces type-tag legality: a structured value may only be supplied
// to a field whose parser accepts its kind. It returns a failure message or "".
func CheckKind(value any, p Parser) string {
	kind := KindOf(value)
	if kind == KindPlain || p.Accepts&kind != 0 {
		return ""
	}
	switch kind {
	case KindReference:
		return "Pointers can only be used by keys defined as pointers"
	case KindAttachment:
		return "Files can only be used by keys defined as files"
	case KindIncrement:
		return "Increments can only be used by keys with Integer parsers"
	default:
		return "JSON operations can only be used by keys with JSON parsers"
	}
}

// FormatValue applies f when it is set and returns value unchanged otherwise.
func FormatValue(f Formatter, value any, ctx Context) any {
	if f == nil {
		return value
	}
	return f(value, ctx)
}
