package splits

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type module struct{ name string }

func TestDefineAppendOnly(t *testing.T) {
	c := New[*module]()
	load := func(context.Context) (*module, error) { return &module{"a"}, nil }

	if err := c.Define("a", "chunk-a", load); err != nil {
		t.Fatalf("Define() error = %v", err)
	}
	if err := c.Define("a", "chunk-b", load); !errors.Is(err, ErrDuplicate) {
		t.Errorf("second Define() error = %v, want ErrDuplicate", err)
	}
	if chunk, _ := c.Chunk("a"); chunk != "chunk-a" {
		t.Errorf("Chunk(a) = %q, want the first definition", chunk)
	}
	if err := c.Define("", "x", load); err == nil {
		t.Error("Define with empty id should fail")
	}
}

func TestDefineRejectsInvalidIDs(t *testing.T) {
	load := func(context.Context) (*module, error) { return &module{"a"}, nil }
	tests := []struct {
		id   string
		want bool
	}{
		{"comments", true},
		{"user/profile-card", true},
		{"a-b_c.d", true},
		{"", false},
		{"a--b", false},
		{"end-->", false},
		{"<script>", false},
		{"a>b", false},
		{"line\nbreak", false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := ValidID(tt.id); got != tt.want {
				t.Errorf("ValidID(%q) = %v, want %v", tt.id, got, tt.want)
			}
			err := New[*module]().Define(tt.id, "chunk", load)
			if (err == nil) != tt.want {
				t.Errorf("Define(%q) error = %v, want valid=%v", tt.id, err, tt.want)
			}
		})
	}
}

func TestLoadCachesModule(t *testing.T) {
	c := New[*module]()
	var calls atomic.Int32
	c.MustDefine("a", "a", func(context.Context) (*module, error) {
		calls.Add(1)
		return &module{"a"}, nil
	})

	if _, ok := c.Loaded("a"); ok {
		t.Fatal("module should not be loaded before Load")
	}

	first := <-c.Load("a")
	if first.Err != nil {
		t.Fatalf("Load() error = %v", first.Err)
	}
	second := <-c.Load("a")
	if second.Module != first.Module {
		t.Error("second Load returned a different module")
	}
	if m, ok := c.Loaded("a"); !ok || m != first.Module {
		t.Error("Loaded(a) should return the cached module")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("loader called %d times, want 1", n)
	}
}

func TestConcurrentLoadsShareOneCall(t *testing.T) {
	c := New[*module]()
	release := make(chan struct{})
	var calls atomic.Int32
	c.MustDefine("slow", "slow", func(context.Context) (*module, error) {
		calls.Add(1)
		<-release
		return &module{"slow"}, nil
	})

	var wg sync.WaitGroup
	results := make([]*module, 8)
	for i := range results {
		ch := c.Load("slow")
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = (<-ch).Module
		}(i)
	}
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("loader called %d times, want 1", n)
	}
	for i, m := range results {
		if m != results[0] {
			t.Errorf("result %d differs from result 0", i)
		}
	}
}

func TestLoadErrorIsNotCached(t *testing.T) {
	c := New[*module]()
	var calls atomic.Int32
	c.MustDefine("flaky", "flaky", func(context.Context) (*module, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("network down")
		}
		return &module{"flaky"}, nil
	})

	if res := <-c.Load("flaky"); res.Err == nil {
		t.Fatal("first Load() should fail")
	}
	if _, ok := c.Loaded("flaky"); ok {
		t.Fatal("failed loads must not be cached")
	}
	if res := <-c.Load("flaky"); res.Err != nil {
		t.Fatalf("retry Load() error = %v", res.Err)
	}
}

func TestLoadUnknown(t *testing.T) {
	c := New[*module]()
	if res := <-c.Load("nope"); !errors.Is(res.Err, ErrUnknown) {
		t.Errorf("Load(unknown) error = %v, want ErrUnknown", res.Err)
	}
}

func TestLoadTimeout(t *testing.T) {
	c := New[*module](WithLoadTimeout(10 * time.Millisecond))
	c.MustDefine("stuck", "stuck", func(ctx context.Context) (*module, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	select {
	case res := <-c.Load("stuck"):
		if !errors.Is(res.Err, context.DeadlineExceeded) {
			t.Errorf("Load() error = %v, want DeadlineExceeded", res.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("load timeout did not fire")
	}
}

func TestProvide(t *testing.T) {
	c := New[*module]()
	m := &module{"warm"}
	if err := c.Provide("warm", "warm-chunk", m); err != nil {
		t.Fatal(err)
	}
	if got, ok := c.Loaded("warm"); !ok || got != m {
		t.Error("Provide should make the module available immediately")
	}
}

func TestPreload(t *testing.T) {
	c := New[*module]()
	for _, id := range []string{"a", "b", "c"} {
		id := id
		c.MustDefine(id, id, func(context.Context) (*module, error) { return &module{id}, nil })
	}

	if err := c.Preload(context.Background()); err != nil {
		t.Fatalf("Preload() error = %v", err)
	}

	ids := c.IDs()
	sort.Strings(ids)
	for _, id := range ids {
		if _, ok := c.Loaded(id); !ok {
			t.Errorf("%s not loaded after Preload", id)
		}
	}
	if len(ids) != 3 {
		t.Errorf("IDs() = %v", ids)
	}
}
