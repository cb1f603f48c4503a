package registry

import (
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/artpar/warpmodel/core/convention"
	"github.com/artpar/warpmodel/core/schema"
)

// Helper function to create a simple test model
func makeTestModel(className, source string) schema.Model {
	return schema.Model{
		ClassName: className,
		Source:    source,
		Keys: &schema.Keys{
			Viewable:   []string{"name"},
			Actionable: []string{"name"},
		},
	}
}

func newTestRegistry() *Registry {
	return New(convention.Options{Logger: zerolog.Nop()})
}

func TestRegistry_Register(t *testing.T) {
	r := newTestRegistry()

	def, err := r.Register(makeTestModel("User", "user"))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if def.Source() != "user" {
		t.Errorf("Source() = %s, want user", def.Source())
	}

	got, ok := r.Get("User")
	if !ok {
		t.Fatal("Get() should find registered class")
	}
	if got != def {
		t.Error("Get() should return the registered definition")
	}
	if r.SourceOf("User") != "user" {
		t.Errorf("SourceOf() = %s, want user", r.SourceOf("User"))
	}
	if r.SourceOf("Missing") != "Missing" {
		t.Errorf("SourceOf() should fall back to the class name")
	}
}

func TestRegistry_DuplicateClass(t *testing.T) {
	r := newTestRegistry()
	if _, err := r.Register(makeTestModel("User", "user")); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Register(makeTestModel("User", "people")); err == nil {
		t.Error("Register() should reject a duplicate class name")
	}
}

func TestRegistry_DuplicateSource(t *testing.T) {
	r := newTestRegistry()
	if _, err := r.Register(makeTestModel("User", "people")); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Register(makeTestModel("Person", "people")); err == nil {
		t.Error("Register() should reject a duplicate source")
	}
}

func TestRegistry_CompileError(t *testing.T) {
	r := newTestRegistry()
	if _, err := r.Register(schema.Model{ClassName: "Broken"}); err == nil {
		t.Error("Register() should surface compile errors")
	}
	if _, ok := r.Get("Broken"); ok {
		t.Error("failed models must not be registered")
	}
}

func TestRegistry_Unregister(t *testing.T) {
	r := newTestRegistry()
	if _, err := r.Register(makeTestModel("User", "user")); err != nil {
		t.Fatal(err)
	}
	if err := r.Unregister("User"); err != nil {
		t.Fatalf("Unregister() error = %v", err)
	}
	if _, ok := r.Get("User"); ok {
		t.Error("Get() should not find unregistered class")
	}
	if _, err := r.Register(makeTestModel("Person", "user")); err != nil {
		t.Errorf("source should be free after Unregister: %v", err)
	}
	if err := r.Unregister("User"); err == nil {
		t.Error("Unregister() of unknown class should fail")
	}
}

func TestRegistry_List(t *testing.T) {
	r := newTestRegistry()
	for _, name := range []string{"Zebra", "Apple", "Mango"} {
		if _, err := r.Register(makeTestModel(name, "")); err != nil {
			t.Fatal(err)
		}
	}

	defs := r.List()
	if len(defs) != 3 {
		t.Fatalf("List() len = %d, want 3", len(defs))
	}
	want := []string{"Apple", "Mango", "Zebra"}
	for i, def := range defs {
		if def.ClassName() != want[i] {
			t.Errorf("List()[%d] = %s, want %s", i, def.ClassName(), want[i])
		}
	}
}

func TestRegistry_CheckReferences(t *testing.T) {
	r := newTestRegistry()
	post := makeTestModel("Post", "")
	post.Keys.Pointers = schema.Pointers{{Name: "author", ClassName: "User"}}
	if _, err := r.Register(post); err != nil {
		t.Fatal(err)
	}

	err := r.CheckReferences()
	var unresolved *UnresolvedError
	if !errors.As(err, &unresolved) {
		t.Fatalf("CheckReferences() error = %v, want *UnresolvedError", err)
	}
	if len(unresolved.References) != 1 || unresolved.References[0] != "Post.author -> User" {
		t.Errorf("References = %v", unresolved.References)
	}

	if _, err := r.Register(makeTestModel("User", "")); err != nil {
		t.Fatal(err)
	}
	if err := r.CheckReferences(); err != nil {
		t.Errorf("CheckReferences() error = %v, want nil", err)
	}
}

func TestRegistry_ConcurrentReads(t *testing.T) {
	r := newTestRegistry()
	if _, err := r.Register(makeTestModel("User", "")); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := r.Get("User"); !ok {
				t.Error("Get() failed under concurrency")
			}
			_ = r.List()
		}()
	}
	wg.Wait()
}
