package field

import (
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var emailPattern = regexp.MustCompile(`(?i)^[-a-z0-9~!$%^&*_=+}{'?]+(\.[-a-z0-9~!$%^&*_=+}{'?]+)*@([a-z0-9_][-a-z0-9_]*(\.[-a-z0-9_]+)*\.([a-z]){2,})?$`)

// FixedString requires a string whose length lies within [min, max].
// A max of 0 means no upper bound.
func FixedString(min, max int) Validator {
	return func(value any, key string) string {
		return lengthCheck(value, key, min, max)
	}
}

// Password has the same length rules as FixedString.
func Password(min, max int) Validator {
	return func(value any, key string) string {
		return lengthCheck(value, key, min, max)
	}
}

func lengthCheck(value any, key string, min, max int) string {
	msg := fmt.Sprintf("%s must be greater than or equal to %d characters", key, min)
	if max > 0 {
		msg += fmt.Sprintf(", and less than or equal to %d characters", max)
	}

	if value == nil && min == 0 {
		return ""
	}
	s, ok := value.(string)
	if !ok {
		return msg
	}

	// RuneLength(0, 0) means "must be empty", so it is only added for real bounds
	var rules []validation.Rule
	if min > 0 || max > 0 {
		rules = append(rules, validation.RuneLength(min, max))
	}
	if min > 0 {
		rules = append(rules, validation.Required)
	}
	if err := validation.Validate(s, rules...); err != nil {
		return msg
	}
	return ""
}

// Email requires a well-formed email address.
func Email(value any, key string) string {
	msg := key + " is not a valid email address"
	s, ok := value.(string)
	if !ok {
		return msg
	}
	if err := validation.Validate(s, validation.Required, validation.Match(emailPattern)); err != nil {
		return msg
	}
	return ""
}

// Integer accepts nil, integral numbers and Increment values.
func Integer(value any, key string) string {
	if value == nil {
		return ""
	}
	switch KindOf(value) {
	case KindIncrement:
		return ""
	case KindPlain:
		if _, ok := toInt64(value); ok {
			return ""
		}
	}
	return key + " must be an integer or an increment object"
}

// PositiveInteger accepts nil and integral numbers >= 0.
func PositiveInteger(value any, key string) string {
	if value == nil {
		return ""
	}
	msg := key + " must be a positive integer"
	n, ok := toInt64(value)
	if !ok {
		return msg
	}
	if err := validation.Validate(n, validation.Min(int64(0))); err != nil {
		return msg
	}
	return ""
}

// Float accepts nil and numeric values.
func Float(value any, key string) string {
	if value == nil {
		return ""
	}
	if KindOf(value) != KindPlain {
		return key + " must be a float value"
	}
	if _, ok := toFloat64(value); !ok {
		return key + " must be a float value"
	}
	return ""
}

// ReferenceTo accepts nil or a Reference to className.
func ReferenceTo(className string) Validator {
	return func(value any, key string) string {
		if value == nil {
			return ""
		}
		ref, ok := asReference(value)
		if !ok || ref.ClassName != className {
			return fmt.Sprintf("%s must be a pointer to `%s`", key, className)
		}
		return ""
	}
}

// File accepts nil or an Attachment.
func File(value any, key string) string {
	if value == nil {
		return ""
	}
	if _, ok := asAttachment(value); !ok {
		return key + " must be a Warp File"
	}
	return ""
}

func asReference(v any) (Reference, bool) {
	switch r := v.(type) {
	case Reference:
		return r, true
	case *Reference:
		if r == nil {
			return Reference{}, false
		}
		return *r, true
	}
	return Reference{}, false
}

func asAttachment(v any) (Attachment, bool) {
	switch a := v.(type) {
	case Attachment:
		return a, true
	case *Attachment:
		if a == nil {
			return Attachment{}, false
		}
		return *a, true
	}
	return Attachment{}, false
}
