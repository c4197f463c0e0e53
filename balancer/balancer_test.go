package balancer

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"
	"testing"

	"github.com/sngo/actorkit/actor"
	"github.com/sngo/actorkit/endpoint"
)

func echoBehaviorFactory() BehaviorFactory {
	return func() actor.Behavior {
		return actor.Map{
			"whoami": func(ctx context.Context, args json.RawMessage) (interface{}, error) {
				return nil, nil
			},
		}
	}
}

// indexedBehaviorFactory hands out behaviors in creation order, each
// recording its own index into calls whenever it is invoked. New calls
// the factory sequentially while spawning replica-0, replica-1, ...,
// so the index assigned here matches selection order.
func indexedBehaviorFactory(calls *[]int, mu *sync.Mutex) BehaviorFactory {
	next := 0
	return func() actor.Behavior {
		i := next
		next++
		return actor.Map{
			"whoami": func(ctx context.Context, args json.RawMessage) (interface{}, error) {
				mu.Lock()
				*calls = append(*calls, i)
				mu.Unlock()
				return nil, nil
			},
		}
	}
}

func TestRoundRobinDistributesInOrder(t *testing.T) {
	ctx := context.Background()
	cfg := actor.Config{ClusterSize: 3}

	var mu sync.Mutex
	var calls []int

	proxy, err := New(ctx, nil, "balancer", cfg, &RoundRobin{}, indexedBehaviorFactory(&calls, &mu), endpoint.NewInMemory)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 0; i < 9; i++ {
		if err := proxy.SendAndReceive(ctx, "whoami", nil, nil); err != nil {
			t.Fatalf("SendAndReceive iteration %d: %v", i, err)
		}
	}

	want := []int{0, 1, 2, 0, 1, 2, 0, 1, 2}
	mu.Lock()
	got := append([]int(nil), calls...)
	mu.Unlock()
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected round-robin order %v, got %v", want, got)
	}
}

func TestGrowAddsReplicas(t *testing.T) {
	ctx := context.Background()
	cfg := actor.Config{ClusterSize: 2}

	proxy, err := New(ctx, nil, "growable", cfg, &RoundRobin{}, echoBehaviorFactory(), endpoint.NewInMemory)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := Grow(ctx, proxy, 2, echoBehaviorFactory(), endpoint.NewInMemory); err != nil {
		t.Fatalf("Grow: %v", err)
	}

	bep := proxy.Core().Endpoint().(*Endpoint)
	if got := len(bep.Replicas()); got != 4 {
		t.Fatalf("expected 4 replicas after growth, got %d", got)
	}
}

func TestShrinkRemovesAndDestroysReplicas(t *testing.T) {
	ctx := context.Background()
	cfg := actor.Config{ClusterSize: 3}

	proxy, err := New(ctx, nil, "shrinkable", cfg, &RoundRobin{}, echoBehaviorFactory(), endpoint.NewInMemory)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := Shrink(ctx, proxy, 1); err != nil {
		t.Fatalf("Shrink: %v", err)
	}

	bep := proxy.Core().Endpoint().(*Endpoint)
	if got := len(bep.Replicas()); got != 2 {
		t.Fatalf("expected 2 replicas after shrink, got %d", got)
	}
	if got := len(proxy.Children()); got != 2 {
		t.Fatalf("expected 2 tracked children after shrink, got %d", got)
	}
}

func TestNoChildReturnsErrWhenNoReplicasRemain(t *testing.T) {
	ctx := context.Background()
	cfg := actor.Config{ClusterSize: 1}

	proxy, err := New(ctx, nil, "lonely", cfg, &RoundRobin{}, echoBehaviorFactory(), endpoint.NewInMemory)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := Shrink(ctx, proxy, 1); err != nil {
		t.Fatalf("Shrink: %v", err)
	}

	err = proxy.SendAndReceive(ctx, "whoami", nil, nil)
	if err == nil {
		t.Fatal("expected error when no replicas remain")
	}
}
