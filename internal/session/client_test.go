package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/manash/splendid/pkg/models"
)

type fakeCreator struct {
	calls atomic.Int32
	err   error
	empty bool
	delay time.Duration
}

func (f *fakeCreator) CreateSession(ctx context.Context, slug string) (string, error) {
	n := f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return "", f.err
	}
	if f.empty {
		return "", nil
	}
	return fmt.Sprintf("%s-%d", slug, n), nil
}

func testClient(creator Creator) *Client {
	return NewClient(creator, NewCache(), log.New(io.Discard))
}

var (
	kling    = &models.Tool{ID: 4, Slug: "kling"}
	upscaler = &models.Tool{ID: 5, Slug: "image-upscaler"}
)

func TestClient_EnsureCreatesOncePerTool(t *testing.T) {
	creator := &fakeCreator{}
	c := testClient(creator)
	ctx := context.Background()

	first, err := c.Ensure(ctx, kling)
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	second, err := c.Ensure(ctx, kling)
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if first != second {
		t.Errorf("Ensure() = %q then %q, want reuse", first, second)
	}
	if creator.calls.Load() != 1 {
		t.Errorf("CreateSession calls = %d, want 1", creator.calls.Load())
	}

	other, err := c.Ensure(ctx, upscaler)
	if err != nil {
		t.Fatalf("Ensure(upscaler) error = %v", err)
	}
	if other == first {
		t.Error("Ensure() returned a session belonging to another tool")
	}
	if creator.calls.Load() != 2 {
		t.Errorf("CreateSession calls = %d, want 2", creator.calls.Load())
	}
}

func TestClient_CreateFailureNotCached(t *testing.T) {
	creator := &fakeCreator{err: errors.New("connection refused")}
	c := testClient(creator)

	_, err := c.Ensure(context.Background(), kling)
	if !errors.Is(err, models.ErrSessionCreation) {
		t.Fatalf("Ensure() error = %v, want ErrSessionCreation", err)
	}
	if _, ok := c.Resume(kling); ok {
		t.Error("failed creation should not be cached")
	}

	creator.err = nil
	if _, err := c.Ensure(context.Background(), kling); err != nil {
		t.Fatalf("Ensure() after recovery error = %v", err)
	}
	if creator.calls.Load() != 2 {
		t.Errorf("CreateSession calls = %d, want 2", creator.calls.Load())
	}
}

func TestClient_CreateEmptyID(t *testing.T) {
	c := testClient(&fakeCreator{empty: true})

	_, err := c.Create(context.Background(), kling)
	if !errors.Is(err, models.ErrSessionCreation) {
		t.Errorf("Create() error = %v, want ErrSessionCreation", err)
	}
	if c.Cache().Len() != 0 {
		t.Error("empty id should not be cached")
	}
}

func TestClient_CreateReplaces(t *testing.T) {
	c := testClient(&fakeCreator{})
	ctx := context.Background()

	first, _ := c.Ensure(ctx, kling)
	fresh, err := c.Create(ctx, kling)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if fresh == first {
		t.Error("Create() should always open a new session")
	}
	if got, _ := c.Resume(kling); got != fresh {
		t.Errorf("Resume() = %q, want %q", got, fresh)
	}
}

func TestClient_EnsureConcurrent(t *testing.T) {
	creator := &fakeCreator{delay: 20 * time.Millisecond}
	c := testClient(creator)

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := c.Ensure(context.Background(), kling)
			if err != nil {
				t.Errorf("Ensure() error = %v", err)
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()

	if creator.calls.Load() != 1 {
		t.Errorf("CreateSession calls = %d, want 1", creator.calls.Load())
	}
	for _, id := range ids {
		if id != ids[0] {
			t.Errorf("Ensure() ids differ: %v", ids)
			break
		}
	}
}

func TestCache_Snapshot(t *testing.T) {
	cache := NewCache()
	cache.Put(1, "a")
	snap := cache.Snapshot()
	snap[2] = "b"

	if cache.Len() != 1 {
		t.Error("Snapshot() should be a copy")
	}
	cache.Clear()
	if _, ok := cache.Get(1); ok {
		t.Error("Clear() left entries")
	}
}
