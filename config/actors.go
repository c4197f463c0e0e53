package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sngo/actorkit/actor"
	"github.com/sngo/actorkit/protocol"
	"github.com/sngo/actorkit/worker"
)

// ActorConfigSet is the decoded shape of an actors.json/actors.yaml
// file: the reserved per-actor config keys (spec §6.5), keyed by actor
// name, exactly as changeGlobalConfiguration's map argument expects
// (spec §4.4.1/§4.7).
type ActorConfigSet map[string]protocol.ActorConfigWire

// ToActorConfigs converts every wire entry to its in-process
// actor.Config, stamping each with its own map key as Name so
// ChangeGlobalConfiguration's per-actor lookup has something to match
// against even if the entry's own body omits it.
func (s ActorConfigSet) ToActorConfigs() map[string]actor.Config {
	out := make(map[string]actor.Config, len(s))
	for name, wire := range s {
		cfg := worker.FromWireConfig(wire)
		cfg.Name = name
		out[name] = cfg
	}
	return out
}

// LoadActorConfigFile reads and parses a single actors-config file,
// dispatching on extension the same way Loader.loadFromFile does for
// the application's own config file.
func LoadActorConfigFile(filename string) (ActorConfigSet, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigFileNotFound, filename, err)
	}

	set := make(ActorConfigSet)
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &set); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrConfigParseError, filename, err)
		}
	case ".json", "":
		if err := json.Unmarshal(data, &set); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrConfigParseError, filename, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported actor config format %q", ErrConfigParseError, ext)
	}
	return set, nil
}

// LoadActorConfig reads primary and, if present, overlays secondary on
// top of it entry-by-entry (spec §4.7: "reads actors.json at startup,
// overlay with an optional secondary file"). Either path may be empty
// or name a file that doesn't exist; both are treated as contributing
// no entries rather than an error, matching AutoLoad's own tolerance
// for a missing config file.
func LoadActorConfig(primary, secondary string) (ActorConfigSet, error) {
	result := make(ActorConfigSet)
	for _, path := range []string{primary, secondary} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		set, err := LoadActorConfigFile(path)
		if err != nil {
			return nil, err
		}
		for name, entry := range set {
			result[name] = entry
		}
	}
	return result, nil
}
