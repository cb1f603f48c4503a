package schema

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/artpar/warpmodel/core/field"
	"github.com/artpar/warpmodel/core/query"
)

func TestParse(t *testing.T) {
	yaml := `
className: Post
source: post

keys:
  viewable:   [title, views, author, company, cover]
  actionable: [title, views, author, cover]
  pointers:
    author:  { className: User }
    company:
      className: Company
      via: author.company_id
      where:
        active: { eq: true }
  files: [cover]

fields:
  title: { type: string, min: 1, max: 120 }
  views: { type: integer }

hooks:
  beforeSave: { type: session, days: 7 }
`

	mod, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if mod.ClassName != "Post" {
		t.Errorf("ClassName = %q, want %q", mod.ClassName, "Post")
	}
	if mod.SourceName() != "post" {
		t.Errorf("SourceName() = %q, want %q", mod.SourceName(), "post")
	}
	if mod.Keys == nil {
		t.Fatal("Keys should be set")
	}

	names := mod.Keys.Pointers.Names()
	if strings.Join(names, ",") != "author,company" {
		t.Errorf("pointer order = %v, want [author company]", names)
	}

	company, ok := mod.Keys.Pointers.Get("company")
	if !ok {
		t.Fatal("company pointer missing")
	}
	if company.Via != "author.company_id" {
		t.Errorf("Via = %q", company.Via)
	}
	want := query.Where{{Column: "active", Op: query.OpEq, Value: true}}
	if len(company.Where) != 1 || company.Where[0].Column != want[0].Column || company.Where[0].Value != true {
		t.Errorf("Where = %+v, want %+v", company.Where, want)
	}

	if mod.Fields["views"].Type != field.TypeInteger {
		t.Errorf("views type = %q", mod.Fields["views"].Type)
	}
	if mod.Hooks.BeforeSave == nil || mod.Hooks.BeforeSave.Days != 7 {
		t.Errorf("beforeSave hook = %+v", mod.Hooks.BeforeSave)
	}
}

func TestParse_SiblingPointersKept(t *testing.T) {
	mod, err := Parse([]byte(`
className: Post
keys:
  viewable: [title]
pointers:
  author: { className: User }
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(mod.Pointers) != 1 {
		t.Errorf("sibling pointers should be decoded for the compiler to reject, got %d", len(mod.Pointers))
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{
			name: "valid minimal",
			yaml: `
className: Post
keys:
  viewable: [title]
`,
			wantErr: false,
		},
		{
			name: "bad class name",
			yaml: `
className: "my post"
keys: {}
`,
			wantErr: true,
		},
		{
			name: "bad key",
			yaml: `
className: Post
keys:
  viewable: ["title; drop table"]
`,
			wantErr: true,
		},
		{
			name: "unknown field type",
			yaml: `
className: Post
keys:
  viewable: [title]
fields:
  title: { type: blob }
`,
			wantErr: true,
		},
		{
			name: "missing hook type",
			yaml: `
className: Post
keys:
  viewable: [title]
hooks:
  beforeSave: { days: 3 }
`,
			wantErr: true,
		},
		{
			name: "bad pointer where",
			yaml: `
className: Post
keys:
  pointers:
    author:
      className: User
      where: { name: { like: x } }
`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if (err != nil) != tt.wantErr {
				t.Errorf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseDir(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	files := map[string]string{
		filepath.Join(dir, "a.yaml"):   "className: A\nkeys: {viewable: [x]}\n",
		filepath.Join(sub, "b.yml"):    "className: B\nkeys: {viewable: [y]}\n",
		filepath.Join(dir, "notes.md"): "ignored",
	}
	for path, content := range files {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	models, err := ParseDir(dir)
	if err != nil {
		t.Fatalf("ParseDir failed: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("got %d models, want 2", len(models))
	}
	if models[0].ClassName != "A" || models[1].ClassName != "B" {
		t.Errorf("order = %s, %s", models[0].ClassName, models[1].ClassName)
	}
}

func TestParseGlob(t *testing.T) {
	dir := t.TempDir()
	for _, sub := range []string{"blog", "drafts"} {
		if err := os.Mkdir(filepath.Join(dir, sub), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	files := map[string]string{
		"root.yaml":         "className: Root\nkeys: {viewable: [x]}\n",
		"blog/post.yaml":    "className: Post\nkeys: {viewable: [title]}\n",
		"blog/comment.yml":  "className: Comment\nkeys: {viewable: [body]}\n",
		"drafts/idea.yaml":  "className: Idea\nkeys: {viewable: [text]}\n",
		"blog/readme.md":    "ignored",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, filepath.FromSlash(name)), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		pattern string
		want    []string
	}{
		{"", []string{"Comment", "Post", "Idea", "Root"}},
		{"blog/*.yaml", []string{"Post"}},
		{"blog/*.{yaml,yml}", []string{"Comment", "Post"}},
		{"*.yaml", []string{"Root"}},
		{"none/**/*.yaml", nil},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			models, err := ParseGlob(dir, tt.pattern)
			if err != nil {
				t.Fatalf("ParseGlob failed: %v", err)
			}
			var got []string
			for _, m := range models {
				got = append(got, m.ClassName)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseGlob_Errors(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("className: [\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := ParseGlob(dir, ""); err == nil || !strings.Contains(err.Error(), "bad.yaml") {
		t.Errorf("parse error should name the file, got %v", err)
	}
	if _, err := ParseGlob(dir, "[unclosed"); err == nil {
		t.Error("invalid pattern should fail")
	}
	if _, err := ParseGlob(filepath.Join(dir, "missing"), ""); err == nil {
		t.Error("missing directory should fail")
	}
	if _, err := ParseGlob(filepath.Join(dir, "bad.yaml"), ""); err == nil {
		t.Error("file root should fail")
	}
}
