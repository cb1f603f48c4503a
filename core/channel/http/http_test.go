package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/warpmodel/adapters/clock"
	"github.com/artpar/warpmodel/core/convention"
	"github.com/artpar/warpmodel/core/field"
	"github.com/artpar/warpmodel/core/query"
	"github.com/artpar/warpmodel/core/registry"
	"github.com/artpar/warpmodel/core/runtime"
	"github.com/artpar/warpmodel/core/schema"
	"github.com/artpar/warpmodel/core/storage"
)

func setup(t *testing.T) http.Handler {
	t.Helper()
	return New(newRuntime(t), Config{Logger: zerolog.Nop()}).Handler()
}

func newRuntime(t *testing.T) *runtime.Runtime {
	t.Helper()

	store, err := storage.NewSQLiteStore(":memory:", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	reg := registry.New(convention.Options{Logger: zerolog.Nop()})
	rt := runtime.New(reg, store, runtime.Config{
		Clock:  clock.NewFake(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)),
		Logger: zerolog.Nop(),
	})

	models := []schema.Model{
		{
			ClassName: "User",
			Source:    "users",
			Keys: &schema.Keys{
				Viewable:   []string{"name"},
				Actionable: []string{"name"},
			},
		},
		{
			ClassName: "Post",
			Source:    "posts",
			Keys: &schema.Keys{
				Viewable:   []string{"title", "views", "author"},
				Actionable: []string{"title", "views", "author"},
				Pointers:   schema.Pointers{{Name: "author", ClassName: "User"}},
			},
			Fields: map[string]field.Spec{
				"title": {Type: field.TypeString, Min: 1, Max: 40},
				"views": {Type: field.TypeInteger},
			},
		},
	}
	for _, mod := range models {
		if _, err := rt.Load(mod); err != nil {
			t.Fatalf("Load %s failed: %v", mod.ClassName, err)
		}
	}
	if err := store.Migrate(context.Background(), reg.List()); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	return rt
}

type envelopeBody struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

func do(t *testing.T, h http.Handler, method, target string, body any) (int, envelopeBody) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set(HeaderClient, "test")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelopeBody
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: invalid body %q: %v", method, target, rec.Body.String(), err)
	}
	return rec.Code, env
}

func result(t *testing.T, env envelopeBody, v any) {
	t.Helper()
	if err := json.Unmarshal(env.Result, v); err != nil {
		t.Fatalf("decode result %s: %v", env.Result, err)
	}
}

func TestChannel_Name(t *testing.T) {
	c := &Channel{}
	if c.Name() != "http" {
		t.Errorf("Name() = %q, want %q", c.Name(), "http")
	}
}

func TestChannel_Start_NoAddr(t *testing.T) {
	c := &Channel{}
	if err := c.Start(context.Background()); err != nil {
		t.Errorf("Start() with no addr should not error: %v", err)
	}
	if err := c.Stop(context.Background()); err != nil {
		t.Errorf("Stop() with no server should not error: %v", err)
	}
}

func TestChannel_CRUD(t *testing.T) {
	h := setup(t)

	code, env := do(t, h, http.MethodPost, "/classes/User", map[string]any{"name": "ann"})
	if code != http.StatusCreated {
		t.Fatalf("create user: status = %d, body = %+v", code, env)
	}
	var user map[string]any
	result(t, env, &user)
	if user["id"] != float64(1) {
		t.Fatalf("user id = %v", user["id"])
	}

	code, env = do(t, h, http.MethodPost, "/classes/Post", map[string]any{
		"title":  "hello",
		"views":  1,
		"author": map[string]any{"type": "Pointer", "className": "User", "id": 1},
	})
	if code != http.StatusCreated {
		t.Fatalf("create post: status = %d, body = %+v", code, env)
	}
	var post map[string]any
	result(t, env, &post)
	if post["created_at"] != "2024-01-02T03:04:05+00:00" {
		t.Errorf("created_at = %v", post["created_at"])
	}
	author, _ := post["author"].(map[string]any)
	if author["type"] != "Pointer" || author["className"] != "User" || author["id"] != float64(1) {
		t.Errorf("author = %v", post["author"])
	}

	code, env = do(t, h, http.MethodPut, "/classes/Post/1", map[string]any{
		"views": map[string]any{"type": "Increment", "value": 4},
	})
	if code != http.StatusOK {
		t.Fatalf("update: status = %d, body = %+v", code, env)
	}

	code, env = do(t, h, http.MethodGet, "/classes/Post/1?include=author.name", nil)
	if code != http.StatusOK {
		t.Fatalf("first: status = %d, body = %+v", code, env)
	}
	result(t, env, &post)
	if post["views"] != float64(5) {
		t.Errorf("views = %v, want 5", post["views"])
	}
	author, _ = post["author"].(map[string]any)
	attrs, _ := author["attributes"].(map[string]any)
	if attrs["name"] != "ann" {
		t.Errorf("author attributes = %v", author["attributes"])
	}

	code, env = do(t, h, http.MethodDelete, "/classes/Post/1", nil)
	if code != http.StatusOK {
		t.Fatalf("destroy: status = %d, body = %+v", code, env)
	}

	code, env = do(t, h, http.MethodGet, "/classes/Post/1", nil)
	if code != http.StatusNotFound || env.Status != 101 {
		t.Errorf("first after destroy: status = %d, body = %+v", code, env)
	}

	code, env = do(t, h, http.MethodPut, "/classes/Post/1", map[string]any{"title": "again"})
	if code != http.StatusNotFound || env.Status != 101 {
		t.Errorf("update after destroy: status = %d, body = %+v", code, env)
	}
}

func TestChannel_Find(t *testing.T) {
	h := setup(t)

	for _, title := range []string{"b", "a", "c"} {
		if code, env := do(t, h, http.MethodPost, "/classes/Post", map[string]any{"title": title}); code != http.StatusCreated {
			t.Fatalf("create %s: %d %+v", title, code, env)
		}
	}

	q := url.Values{}
	q.Set("where", `{"title":{"neq":"c"}}`)
	q.Set("sort", `[{"title":-1}]`)
	q.Set("select", "title")

	code, env := do(t, h, http.MethodGet, "/classes/Post?"+q.Encode(), nil)
	if code != http.StatusOK {
		t.Fatalf("find: status = %d, body = %+v", code, env)
	}

	var rows []map[string]any
	result(t, env, &rows)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2: %v", len(rows), rows)
	}
	if rows[0]["title"] != "b" || rows[1]["title"] != "a" {
		t.Errorf("order = %v, %v", rows[0]["title"], rows[1]["title"])
	}
	if _, ok := rows[0]["views"]; ok {
		t.Error("unselected keys should not be returned")
	}
	if _, ok := rows[0]["id"]; !ok {
		t.Error("id is always returned")
	}

	code, env = do(t, h, http.MethodGet, "/classes/Post?limit=1&skip=2&sort=title", nil)
	if code != http.StatusOK {
		t.Fatalf("find paged: status = %d", code)
	}
	result(t, env, &rows)
	if len(rows) != 1 || rows[0]["title"] != "c" {
		t.Errorf("paged rows = %v", rows)
	}
}

func TestChannel_Errors(t *testing.T) {
	h := setup(t)

	tests := []struct {
		name       string
		method     string
		target     string
		body       any
		wantHTTP   int
		wantStatus int
	}{
		{"unknown class", http.MethodGet, "/classes/Nope", nil, 404, 101},
		{"invalid value", http.MethodPost, "/classes/Post", map[string]any{"title": ""}, 400, 105},
		{"bad type tag", http.MethodPost, "/classes/Post", map[string]any{
			"title": map[string]any{"type": "Pointer", "className": "User", "id": 1},
		}, 400, 105},
		{"bad where json", http.MethodGet, "/classes/Post?where=nope", nil, 400, 102},
		{"bad operator", http.MethodGet, "/classes/Post?where=" + url.QueryEscape(`{"title":{"like":"x"}}`), nil, 400, 102},
		{"bad limit", http.MethodGet, "/classes/Post?limit=-1", nil, 400, 102},
		{"malformed include", http.MethodGet, "/classes/Post?include=author.a.b", nil, 400, 102},
		{"unknown pointer in where", http.MethodGet, "/classes/Post?where=" + url.QueryEscape(`{"ghost.name":{"eq":"x"}}`), nil, 400, 102},
		{"unknown subfield in where", http.MethodGet, "/classes/Post?where=" + url.QueryEscape(`{"author.nosuch":{"eq":"x"}}`), nil, 400, 102},
		{"unknown subfield in sort", http.MethodGet, "/classes/Post?sort=" + url.QueryEscape(`[{"author.nosuch":1}]`), nil, 400, 102},
		{"missing record", http.MethodGet, "/classes/Post/42", nil, 404, 101},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := do(t, h, tt.method, tt.target, tt.body)
			if code != tt.wantHTTP {
				t.Errorf("HTTP status = %d, want %d (%+v)", code, tt.wantHTTP, env)
			}
			if env.Status != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", env.Status, tt.wantStatus, env.Message)
			}
		})
	}
}

func TestParseFindOptions(t *testing.T) {
	q := url.Values{}
	q.Set("where", `{"views":{"gt":2}}`)
	q.Set("select", `["title","views"]`)
	q.Set("include", "author.name, author.email")
	q.Set("sort", "-views,title")
	q.Set("skip", "5")

	opts, err := ParseFindOptions(q)
	if err != nil {
		t.Fatalf("ParseFindOptions failed: %v", err)
	}

	if len(opts.Where) != 1 || opts.Where[0].Column != "views" || opts.Where[0].Op != query.OpGt {
		t.Errorf("Where = %+v", opts.Where)
	}
	if len(opts.Select) != 2 || opts.Select[1] != "views" {
		t.Errorf("Select = %v", opts.Select)
	}
	if len(opts.Include) != 2 || opts.Include[1] != "author.email" {
		t.Errorf("Include = %v", opts.Include)
	}
	want := []query.Sort{{Column: "views", Desc: true}, {Column: "title"}}
	if len(opts.Sort) != 2 || opts.Sort[0] != want[0] || opts.Sort[1] != want[1] {
		t.Errorf("Sort = %+v, want %+v", opts.Sort, want)
	}
	if opts.Limit != DefaultLimit || opts.Skip != 5 {
		t.Errorf("Limit, Skip = %d, %d", opts.Limit, opts.Skip)
	}
}

func TestSchemaEndpoints(t *testing.T) {
	h := setup(t)

	code, env := do(t, h, http.MethodGet, "/_schema/", nil)
	if code != http.StatusOK {
		t.Fatalf("list: status = %d", code)
	}
	var list []ModelSummary
	result(t, env, &list)
	if len(list) != 2 || list[0].ClassName != "Post" || list[1].Source != "users" {
		t.Errorf("list = %+v", list)
	}

	code, env = do(t, h, http.MethodGet, "/_schema/Post", nil)
	if code != http.StatusOK {
		t.Fatalf("get: status = %d", code)
	}
	var s ModelSchema
	result(t, env, &s)
	if len(s.Pointers) != 1 || s.Pointers[0].Via != "author_id" {
		t.Errorf("pointers = %+v", s.Pointers)
	}

	code, _ = do(t, h, http.MethodGet, "/_schema/Nope", nil)
	if code != http.StatusNotFound {
		t.Errorf("unknown class: status = %d", code)
	}
}

func TestOpenAPIEndpoints(t *testing.T) {
	h := setup(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/_schema/openapi.json", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("openapi.json status = %d", rec.Code)
	}
	var doc struct {
		OpenAPI string                    `json:"openapi"`
		Paths   map[string]map[string]any `json:"paths"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("invalid openapi.json: %v", err)
	}
	if doc.OpenAPI != "3.0.3" {
		t.Errorf("openapi = %q", doc.OpenAPI)
	}
	if _, ok := doc.Paths["/classes/Post/{id}"]["delete"]; !ok {
		t.Errorf("missing destroy route in %v", doc.Paths)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/_schema/openapi.yaml", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "/classes/User:") {
		t.Errorf("openapi.yaml = %d %s", rec.Code, rec.Body.String())
	}
}

func TestDocsUI(t *testing.T) {
	rt := newRuntime(t)

	off := New(rt, Config{Logger: zerolog.Nop()}).Handler()
	rec := httptest.NewRecorder()
	off.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/_docs/doc.json", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("docs disabled: status = %d, want 404", rec.Code)
	}

	ch := New(rt, Config{Logger: zerolog.Nop(), Docs: true, DocsTitle: "Blog API"})
	rec = httptest.NewRecorder()
	ch.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/_docs/doc.json", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("doc.json status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"title":"Blog API"`) {
		t.Errorf("doc.json = %s", rec.Body.String())
	}
	if ch.Docs().Spec().Info.Title != "Blog API" {
		t.Errorf("Docs().Spec().Info.Title = %q", ch.Docs().Spec().Info.Title)
	}
}
