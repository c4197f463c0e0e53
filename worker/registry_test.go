package worker

import (
	"testing"

	"github.com/sngo/actorkit/actor"
)

func TestRegisterBehaviorThenResolve(t *testing.T) {
	RegisterBehavior("test.echo", func() actor.Behavior { return actor.Map{} })

	behavior, err := Resolve("test.echo")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if behavior == nil {
		t.Fatal("expected non-nil behavior")
	}
}

func TestResolveUnknownDefinitionErrors(t *testing.T) {
	if _, err := Resolve("test.does-not-exist"); err == nil {
		t.Fatal("expected an error for an unregistered definition")
	}
}

func TestWithNameCarriesDefinition(t *testing.T) {
	n := WithName("test.named", actor.Map{})
	if n.Definition() != "test.named" {
		t.Fatalf("expected definition %q, got %q", "test.named", n.Definition())
	}
	if _, ok := n.Handler("anything"); ok {
		t.Fatal("expected no handler on an empty Map")
	}
}
