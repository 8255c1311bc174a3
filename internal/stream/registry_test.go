package stream

import (
	"slices"
	"sync"
	"testing"
)

func TestRegistrySubscribeIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Subscribe("v1", "c1")
	r.Subscribe("v1", "c1")
	r.Subscribe("v1", "c2")

	got := r.Subscribers("v1")
	if !slices.Equal(got, []string{"c1", "c2"}) {
		t.Fatalf("unexpected subscribers: %v", got)
	}
}

func TestRegistryUnsubscribe(t *testing.T) {
	r := NewRegistry()
	r.Subscribe("v1", "c1")
	r.Unsubscribe("v1", "c1")
	if got := r.Subscribers("v1"); len(got) != 0 {
		t.Fatalf("expected empty set, got %v", got)
	}
	if !slices.Equal(r.Topics(), []string{"v1"}) {
		t.Fatalf("empty topic should be kept")
	}

	// never subscribed client and unknown topic are no-ops
	r.Unsubscribe("v1", "ghost")
	r.Unsubscribe("missing", "c1")
	if got := r.Subscribers("missing"); got != nil && len(got) != 0 {
		t.Fatalf("expected no subscribers for unknown topic")
	}
}

func TestRegistrySubscribersIsCopy(t *testing.T) {
	r := NewRegistry()
	r.Subscribe("high", "c1")
	got := r.Subscribers("high")
	got[0] = "mutated"
	if r.Subscribers("high")[0] != "c1" {
		t.Fatalf("subscribers leaked internal slice")
	}
}

func TestRegistryRemoveClient(t *testing.T) {
	r := NewRegistry()
	r.Subscribe("low", "c1")
	r.Subscribe("high", "c1")
	r.Subscribe("high", "c2")

	if n := r.RemoveClient("c1"); n != 2 {
		t.Fatalf("expected 2 removals, got %d", n)
	}
	if len(r.Subscribers("low")) != 0 || !slices.Equal(r.Subscribers("high"), []string{"c2"}) {
		t.Fatalf("client not purged")
	}
	if !slices.Equal(r.Topics(), []string{"low", "high"}) {
		t.Fatalf("unexpected topic order: %v", r.Topics())
	}
}

func TestRegistryConcurrent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Subscribe("v1", "c1")
			_ = r.Subscribers("v1")
		}()
	}
	wg.Wait()
	if len(r.Subscribers("v1")) != 1 {
		t.Fatalf("duplicate subscription under concurrency")
	}
}
