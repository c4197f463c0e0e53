package actor

import "time"

// OnCrash selects supervision behavior after an endpoint is observed
// crashed (spec §4.4.5).
type OnCrash string

const (
	OnCrashStop    OnCrash = "stop"
	OnCrashRespawn OnCrash = "respawn"
)

// DefaultPingTimeout is the mandatory remote/forked liveness check
// default (spec §5).
const DefaultPingTimeout = 15 * time.Second

// Config is the persistent, hot-swappable per-actor configuration
// (spec §3's `config` attribute and §6.5's reserved config keys).
type Config struct {
	Mode                   Mode
	ClusterSize            int
	CustomParameters       map[string]interface{}
	OnCrash                OnCrash
	DropMessagesOnOverload bool
	Balancer               string
	Host                   []string
	Port                   int
	Cluster                string
	PingTimeout            time.Duration
	Name                   string
}

// equalModuloCustomParameters implements step 1 of hot reconfiguration
// (spec §4.4.4): a changeConfiguration call is a no-op if the new config
// is equal to the current one except for CustomParameters.
func (c Config) equalModuloCustomParameters(other Config) bool {
	return c.Mode == other.Mode &&
		c.ClusterSize == other.ClusterSize &&
		c.OnCrash == other.OnCrash &&
		c.DropMessagesOnOverload == other.DropMessagesOnOverload &&
		c.Balancer == other.Balancer &&
		c.Cluster == other.Cluster &&
		c.PingTimeout == other.PingTimeout &&
		c.Port == other.Port &&
		stringSliceEqual(c.Host, other.Host)
}

// equalModuloClusterSizeAndCustomParameters reports whether c and other
// differ, at most, in ClusterSize and CustomParameters: the balancer
// carve-out of spec §4.4.4, which handles a pure cluster-size change in
// place rather than rebuilding the endpoint.
func (c Config) equalModuloClusterSizeAndCustomParameters(other Config) bool {
	return c.Mode == other.Mode &&
		c.OnCrash == other.OnCrash &&
		c.DropMessagesOnOverload == other.DropMessagesOnOverload &&
		c.Balancer == other.Balancer &&
		c.Cluster == other.Cluster &&
		c.PingTimeout == other.PingTimeout &&
		c.Port == other.Port &&
		stringSliceEqual(c.Host, other.Host)
}

func stringSliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// normalized fills in defaults the way DefaultActorOptions does in the
// teacher (core/types.go).
func (c Config) normalized() Config {
	if c.PingTimeout <= 0 {
		c.PingTimeout = DefaultPingTimeout
	}
	if c.OnCrash == "" {
		c.OnCrash = OnCrashStop
	}
	if c.Mode == "" {
		c.Mode = ModeInMemory
	}
	return c
}
