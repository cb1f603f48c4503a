package events

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// testLogger returns a disabled logger for tests
func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestName(t *testing.T) {
	if got := Name("Post", OpCreate); got != "Post.create" {
		t.Errorf("Name() = %q, want Post.create", got)
	}
}

func TestPublish_Wildcards(t *testing.T) {
	bus := NewBus(testLogger())

	var order []string
	record := func(tag string) Handler {
		return func(ctx context.Context, event Event) error {
			order = append(order, tag)
			return nil
		}
	}

	bus.Subscribe("*", record("global"))
	bus.Subscribe("Post.*", record("class"))
	bus.Subscribe("Post.create", record("exact"))
	bus.Subscribe("User.create", record("other"))

	bus.Publish(context.Background(), Event{Name: "Post.create", Class: "Post", Operation: OpCreate})

	want := "exact,class,global"
	if got := strings.Join(order, ","); got != want {
		t.Errorf("handler order = %s, want %s", got, want)
	}
}

func TestPublish_PassesEvent(t *testing.T) {
	bus := NewBus(testLogger())

	var got Event
	bus.Subscribe("Post.destroy", func(ctx context.Context, event Event) error {
		got = event
		return nil
	})

	bus.Publish(context.Background(), Event{
		Name:      Name("Post", OpDestroy),
		Class:     "Post",
		Operation: OpDestroy,
		ID:        int64(3),
		Data:      map[string]any{"id": int64(3)},
	})

	if got.ID != int64(3) {
		t.Errorf("ID = %v, want 3", got.ID)
	}
	if got.Data["id"] != int64(3) {
		t.Errorf("Data[id] = %v, want 3", got.Data["id"])
	}
}

func TestPublish_ErrorsAndPanicsDoNotStopDelivery(t *testing.T) {
	var buf bytes.Buffer
	bus := NewBus(zerolog.New(&buf))

	var calls int32
	bus.Subscribe("Post.update", func(ctx context.Context, event Event) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("boom")
	})
	bus.Subscribe("Post.update", func(ctx context.Context, event Event) error {
		atomic.AddInt32(&calls, 1)
		panic("kaboom")
	})
	bus.Subscribe("Post.update", func(ctx context.Context, event Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	bus.Publish(context.Background(), Event{Name: "Post.update"})

	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if !strings.Contains(buf.String(), "boom") || !strings.Contains(buf.String(), "kaboom") {
		t.Errorf("expected both failures logged, got %s", buf.String())
	}
}

func TestPublishAsync(t *testing.T) {
	bus := NewBus(testLogger())

	done := make(chan struct{})
	bus.Subscribe("Post.create", func(ctx context.Context, event Event) error {
		close(done)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	bus.PublishAsync(ctx, Event{Name: "Post.create"})
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("async handler was not called")
	}
}

func TestHasSubscribers(t *testing.T) {
	bus := NewBus(testLogger())
	if bus.HasSubscribers("Post.create") {
		t.Error("empty bus should have no subscribers")
	}

	bus.Subscribe("Post.*", func(ctx context.Context, event Event) error { return nil })
	if !bus.HasSubscribers("Post.create") {
		t.Error("class wildcard should match")
	}
	if bus.HasSubscribers("User.create") {
		t.Error("other classes should not match")
	}
}
