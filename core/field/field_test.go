package field

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type urlContext string

func (c urlContext) FileURL(key string) string { return string(c) + key }

type fakeHasher struct{ lastCost int }

func (h *fakeHasher) Hash(plaintext string, cost int) (string, error) {
	h.lastCost = cost
	return "hashed:" + plaintext, nil
}

func (h *fakeHasher) Compare(hash, plaintext string) bool { return hash == "hashed:"+plaintext }

func TestDecode(t *testing.T) {
	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{
		"author": {"type": "Pointer", "className": "User", "id": 7},
		"avatar": {"type": "File", "key": "a.png"},
		"views":  {"type": "Increment", "value": 2},
		"tags":   {"type": "JsonAppend", "path": "$.list", "value": "x"},
		"meta":   {"type": "JsonSet", "path": "$.a", "value": {"b": 1}},
		"plain":  {"type": "Other"},
		"title":  "hello"
	}`), &raw))

	got := DecodeFields(raw)

	assert.Equal(t, Reference{ClassName: "User", ID: int64(7)}, got["author"])
	assert.Equal(t, Attachment{Key: "a.png"}, got["avatar"])
	assert.Equal(t, Increment{Amount: int64(2)}, got["views"])
	assert.Equal(t, JSONAppend{Path: "$.list", Value: "x"}, got["tags"])
	assert.Equal(t, JSONSet{Path: "$.a", Value: map[string]any{"b": float64(1)}}, got["meta"])
	assert.Equal(t, map[string]any{"type": "Other"}, got["plain"])
	assert.Equal(t, "hello", got["title"])
}

func TestReference_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(Reference{ClassName: "User", ID: int64(7)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"Pointer","className":"User","id":7}`, string(b))

	b, err = json.Marshal(Reference{ClassName: "User", ID: int64(7), Attributes: map[string]any{"name": "Ann"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"Pointer","className":"User","id":7,"attributes":{"name":"Ann"}}`, string(b))
}

func TestCheckKind(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		parser Parser
		want   string
	}{
		{"plain on anything", "x", Parser{}, ""},
		{"pointer on pointer", Reference{ClassName: "User", ID: 1}, ReferenceParser, ""},
		{"pointer on plain", Reference{ClassName: "User", ID: 1}, Parser{}, "Pointers can only be used by keys defined as pointers"},
		{"file on pointer", Attachment{Key: "k"}, ReferenceParser, "Files can only be used by keys defined as files"},
		{"increment on integer", Increment{Amount: 1}, IntegerParser, ""},
		{"increment on float", Increment{Amount: 1}, FloatParser(2), "Increments can only be used by keys with Integer parsers"},
		{"json set on json", JSONSet{Path: "$.a"}, JSONParser, ""},
		{"json append on object", JSONAppend{Path: "$.a"}, ObjectParser, "JSON operations can only be used by keys with JSON parsers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckKind(tt.value, tt.parser))
		})
	}
}

func TestValidators(t *testing.T) {
	tests := []struct {
		name  string
		fn    Validator
		value any
		fails bool
	}{
		{"fixed string ok", FixedString(2, 5), "abc", false},
		{"fixed string short", FixedString(2, 5), "a", true},
		{"fixed string empty", FixedString(2, 5), "", true},
		{"fixed string long", FixedString(2, 5), "abcdef", true},
		{"fixed string unbounded", FixedString(1, 0), "a very long string", false},
		{"fixed string no bounds", FixedString(0, 0), "anything", false},
		{"fixed string no bounds empty", FixedString(0, 0), "", false},
		{"fixed string max only", FixedString(0, 3), "abcd", true},
		{"password no bounds", Password(0, 0), "hunter22", false},
		{"password no bounds number", Password(0, 0), 42, true},
		{"password min only", Password(8, 0), "hunter2", true},
		{"email ok", Email, "ann@example.com", false},
		{"email bad", Email, "not an email", true},
		{"integer ok", Integer, int64(3), false},
		{"integer float", Integer, 3.5, true},
		{"integer increment", Integer, Increment{Amount: 1}, false},
		{"integer nil", Integer, nil, false},
		{"positive integer negative", PositiveInteger, int64(-1), true},
		{"positive integer zero", PositiveInteger, int64(0), false},
		{"float ok", Float, 3.5, false},
		{"float string", Float, "abc", true},
		{"reference ok", ReferenceTo("User"), Reference{ClassName: "User", ID: 1}, false},
		{"reference wrong class", ReferenceTo("User"), Reference{ClassName: "Post", ID: 1}, true},
		{"reference raw id", ReferenceTo("User"), int64(1), true},
		{"file ok", File, Attachment{Key: "k"}, false},
		{"file string", File, "k", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.fn(tt.value, "key")
			if tt.fails {
				assert.NotEmpty(t, msg)
			} else {
				assert.Empty(t, msg)
			}
		})
	}
}

func TestValidatorMessages(t *testing.T) {
	assert.Equal(t, "author must be a pointer to `User`", ReferenceTo("User")(int64(1), "author"))
	assert.Equal(t, "name must be greater than or equal to 2 characters, and less than or equal to 5 characters",
		FixedString(2, 5)("a", "name"))
	assert.Equal(t, "avatar must be a Warp File", File("x", "avatar"))
}

func TestParsers(t *testing.T) {
	v, err := NoSpaces.Parse("a b c")
	require.NoError(t, err)
	assert.Equal(t, "abc", v)

	v, err = IntegerParser.Parse("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	v, err = IntegerParser.Parse(Increment{Amount: int64(2)})
	require.NoError(t, err)
	assert.Equal(t, IncrementOp{Amount: int64(2)}, v)

	v, err = FloatParser(2).Parse(3.14159)
	require.NoError(t, err)
	assert.Equal(t, "3.14", v)

	v, err = DateParser.Parse("2024-03-01T10:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01 08:00:00", v)

	_, err = DateParser.Parse("not a date")
	assert.Error(t, err)

	v, err = ObjectParser.Parse(map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, v)

	v, err = JSONParser.Parse(JSONAppend{Path: "$.list", Value: "x"})
	require.NoError(t, err)
	assert.Equal(t, JSONOp{Op: JSONOpAppend, Path: "$.list", Value: `"x"`}, v)

	v, err = Parser{}.Parse("unchanged")
	require.NoError(t, err)
	assert.Equal(t, "unchanged", v)
}

func TestPasswordHash_UsesCost(t *testing.T) {
	h := &fakeHasher{}
	v, err := PasswordHash(h, 10).Parse("secret")
	require.NoError(t, err)
	assert.Equal(t, "hashed:secret", v)
	assert.Equal(t, 10, h.lastCost)
}

func TestFormatters(t *testing.T) {
	ctx := urlContext("https://files.example.com/")

	assert.Equal(t, int64(5), IntegerFormatter("5", ctx))
	assert.Equal(t, Unset, IntegerFormatter(IncrementOp{Amount: 1}, ctx))
	assert.Equal(t, 3.14, FloatFormatter(2)("3.14159", ctx))
	assert.Equal(t, "2024-03-01T08:00:00+00:00", DateFormatter("2024-03-01 08:00:00", ctx))
	assert.Equal(t, "2024-03-01T08:00:00+00:00",
		DateFormatter(time.Date(2024, 3, 1, 10, 0, 0, 0, time.FixedZone("x", 7200)), ctx))
	assert.Nil(t, DateFormatter(nil, ctx))
	assert.Equal(t, Attachment{Key: "a.png", URL: "https://files.example.com/a.png"}, FileFormatter("a.png", ctx))
	assert.Equal(t, map[string]any{"a": float64(1)}, ObjectFormatter(`{"a":1}`, ctx))
	assert.Equal(t, Unset, JSONFormatter(JSONOp{Op: JSONOpSet}, ctx))
	assert.Nil(t, ReferenceFormatter("User")(nil, ctx))
	assert.Equal(t, "x", FormatValue(nil, "x", ctx))
}

func TestReference_RoundTripKeepsID(t *testing.T) {
	d := ReferenceDescriptor("User")
	parsed, err := d.Parse.Parse(Reference{ClassName: "User", ID: int64(7)})
	require.NoError(t, err)
	assert.Equal(t, int64(7), parsed)
	assert.Equal(t, Reference{ClassName: "User", ID: int64(7)}, d.Format(parsed, nil))
}

func TestSpec_Descriptor(t *testing.T) {
	h := &fakeHasher{}
	env := Env{Hasher: h}

	d, err := Spec{Type: TypePassword, Min: 8}.Descriptor(env)
	require.NoError(t, err)
	assert.NotEmpty(t, d.Validate("short", "password"))
	_, err = d.Parse.Parse("long enough")
	require.NoError(t, err)
	assert.Equal(t, DefaultPasswordCost, h.lastCost)

	d, err = Spec{Type: TypeInteger}.Descriptor(env)
	require.NoError(t, err)
	assert.Equal(t, KindIncrement, d.Parse.Accepts)

	_, err = Spec{Type: "blob"}.Descriptor(env)
	assert.Error(t, err)

	_, err = Spec{Type: TypePassword}.Descriptor(Env{})
	assert.Error(t, err)
}
