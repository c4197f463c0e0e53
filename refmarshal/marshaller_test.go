package refmarshal

import (
	"context"
	"testing"

	"github.com/sngo/actorkit/actor"
	"github.com/sngo/actorkit/actorid"
	"github.com/sngo/actorkit/endpoint"
	"github.com/sngo/actorkit/transport"
)

func TestMarshalThenUnmarshalOfOwnActorSkipsDial(t *testing.T) {
	m := New("", 0, "", func(Descriptor) (transport.Bus, error) {
		t.Fatal("dial should not be called for a locally exported actor")
		return nil, nil
	}, nil)

	id := actorid.New()
	ep, err := endpoint.NewInMemory(id, actor.Config{}, actor.Map{})
	if err != nil {
		t.Fatalf("NewInMemory: %v", err)
	}
	core := actor.NewCore(id, "local", nil, actor.Config{}, actor.Map{}, ep)
	proxy := actor.NewClientProxy(core, nil)
	if err := proxy.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	desc := m.Marshal(proxy)
	if desc.ActorID != id {
		t.Fatalf("expected descriptor actorId %s, got %s", id, desc.ActorID)
	}

	resolved, err := m.Unmarshal(desc)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if resolved != proxy {
		t.Fatal("expected the exact same proxy back for a locally exported actor")
	}
}

func TestUnmarshalCachesImportedProxyAcrossCalls(t *testing.T) {
	dialCount := 0
	parentBus, childBus := transport.NewInProcBus()
	_ = childBus

	m := New("", 0, "", func(Descriptor) (transport.Bus, error) {
		dialCount++
		return parentBus, nil
	}, nil)

	desc := Descriptor{ActorID: actorid.New(), Host: "remote-host", Port: 9999}

	first, err := m.Unmarshal(desc)
	if err != nil {
		t.Fatalf("first Unmarshal: %v", err)
	}
	second, err := m.Unmarshal(desc)
	if err != nil {
		t.Fatalf("second Unmarshal: %v", err)
	}

	if first != second {
		t.Fatal("expected the same cached proxy across repeated unmarshals")
	}
	if dialCount != 1 {
		t.Fatalf("expected exactly one dial, got %d", dialCount)
	}
}
