package field

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/artpar/warpmodel/ports"
)

// Type names a declarative field type usable in model files.
type Type string

const (
	TypeString          Type = "string"
	TypePassword        Type = "password"
	TypeEmail           Type = "email"
	TypeInteger         Type = "integer"
	TypePositiveInteger Type = "positive_integer"
	TypeFloat           Type = "float"
	TypeDate            Type = "date"
	TypeObject          Type = "object"
	TypeJSON            Type = "json"
	TypeNoSpaces        Type = "no_spaces"
)

// DefaultPasswordCost is the bcrypt work factor used when none is configured.
const DefaultPasswordCost = 8

// Spec is the declarative description of a field.
type Spec struct {
	Type     Type `yaml:"type" json:"type"`
	Min      int  `yaml:"min,omitempty" json:"min,omitempty"`
	Max      int  `yaml:"max,omitempty" json:"max,omitempty"`
	Decimals int  `yaml:"decimals,omitempty" json:"decimals,omitempty"`
}

// Validate checks the spec's shape.
func (s Spec) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Type, validation.Required, validation.In(
			TypeString, TypePassword, TypeEmail, TypeInteger, TypePositiveInteger,
			TypeFloat, TypeDate, TypeObject, TypeJSON, TypeNoSpaces,
		)),
		validation.Field(&s.Min, validation.Min(0)),
		validation.Field(&s.Max, validation.Min(0)),
		validation.Field(&s.Decimals, validation.Min(0), validation.Max(15)),
	)
}

// Env carries the collaborators some descriptors need.
type Env struct {
	Hasher       ports.Hasher
	PasswordCost int
}

// Descriptor resolves the spec to library functions.
func (s Spec) Descriptor(env Env) (Descriptor, error) {
	if err := s.Validate(); err != nil {
		return Descriptor{}, err
	}

	switch s.Type {
	case TypeString:
		d := Descriptor{}
		if s.Min > 0 || s.Max > 0 {
			d.Validate = FixedString(s.Min, s.Max)
		}
		return d, nil
	case TypePassword:
		if env.Hasher == nil {
			return Descriptor{}, fmt.Errorf("password field requires a hasher")
		}
		cost := env.PasswordCost
		if cost <= 0 {
			cost = DefaultPasswordCost
		}
		return Descriptor{
			Validate: Password(s.Min, s.Max),
			Parse:    PasswordHash(env.Hasher, cost),
		}, nil
	case TypeEmail:
		return Descriptor{Validate: Email}, nil
	case TypeInteger:
		return Descriptor{Validate: Integer, Parse: IntegerParser, Format: IntegerFormatter}, nil
	case TypePositiveInteger:
		return Descriptor{Validate: PositiveInteger, Parse: IntegerParser, Format: IntegerFormatter}, nil
	case TypeFloat:
		return Descriptor{Validate: Float, Parse: FloatParser(s.Decimals), Format: FloatFormatter(s.Decimals)}, nil
	case TypeDate:
		return Descriptor{Parse: DateParser, Format: DateFormatter}, nil
	case TypeObject:
		return Descriptor{Parse: ObjectParser, Format: ObjectFormatter}, nil
	case TypeJSON:
		return Descriptor{Parse: JSONParser, Format: JSONFormatter}, nil
	case TypeNoSpaces:
		return Descriptor{Parse: NoSpaces}, nil
	}
	return Descriptor{}, fmt.Errorf("unknown field type %q", s.Type)
}

// ReferenceDescriptor is the descriptor given to reference fields of className.
func ReferenceDescriptor(className string) Descriptor {
	return Descriptor{
		Validate: ReferenceTo(className),
		Parse:    ReferenceParser,
		Format:   ReferenceFormatter(className),
	}
}

// FileDescriptor is the descriptor given to attachment fields.
func FileDescriptor() Descriptor {
	return Descriptor{Validate: File, Parse: FileParser, Format: FileFormatter}
}

// SQLType returns the SQLite column type for values of this spec.
func (s Spec) SQLType() string {
	switch s.Type {
	case TypeInteger, TypePositiveInteger:
		return "INTEGER"
	case TypeFloat:
		return "REAL"
	default:
		return "TEXT"
	}
}
