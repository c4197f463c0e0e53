package actor

import "testing"

func TestNormalizedFillsDefaults(t *testing.T) {
	cfg := Config{}.normalized()
	if cfg.PingTimeout != DefaultPingTimeout {
		t.Fatalf("expected default ping timeout, got %v", cfg.PingTimeout)
	}
	if cfg.OnCrash != OnCrashStop {
		t.Fatalf("expected default OnCrashStop, got %v", cfg.OnCrash)
	}
	if cfg.Mode != ModeInMemory {
		t.Fatalf("expected default ModeInMemory, got %v", cfg.Mode)
	}
}

func TestEqualModuloCustomParameters(t *testing.T) {
	a := Config{Mode: ModeForked, Host: []string{"h1"}, CustomParameters: map[string]interface{}{"x": 1}}
	b := Config{Mode: ModeForked, Host: []string{"h1"}, CustomParameters: map[string]interface{}{"x": 2}}

	if !a.equalModuloCustomParameters(b) {
		t.Fatal("expected configs differing only by CustomParameters to be equal")
	}

	c := Config{Mode: ModeRemote, Host: []string{"h1"}}
	if a.equalModuloCustomParameters(c) {
		t.Fatal("expected differing Mode to break equality")
	}
}
