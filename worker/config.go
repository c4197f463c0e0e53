// Package worker implements the Worker Entry (C9): the bootstrap a
// forked child, remote host process, or threaded goroutine runs to turn
// one create-actor frame into a live behavior instance wired to its
// parent over a transport.Bus. Grounded on core/actor.go's actor loop,
// generalized from an in-process mailbox to a wire frame handler so the
// same loop code backs both the process worker (cmd/sngoworker) and the
// in-process threaded endpoint variant.
package worker

import (
	"time"

	"github.com/sngo/actorkit/actor"
	"github.com/sngo/actorkit/protocol"
)

// ToWireConfig converts an actor.Config to its wire representation for a
// create-actor or child-config-change frame.
func ToWireConfig(cfg actor.Config) protocol.ActorConfigWire {
	return protocol.ActorConfigWire{
		Mode:                   string(cfg.Mode),
		ClusterSize:            cfg.ClusterSize,
		CustomParameters:       cfg.CustomParameters,
		OnCrash:                string(cfg.OnCrash),
		DropMessagesOnOverload: cfg.DropMessagesOnOverload,
		Balancer:               cfg.Balancer,
		Host:                   cfg.Host,
		Cluster:                cfg.Cluster,
		PingTimeoutMillis:      cfg.PingTimeout.Milliseconds(),
	}
}

// FromWireConfig reverses ToWireConfig.
func FromWireConfig(w protocol.ActorConfigWire) actor.Config {
	return actor.Config{
		Mode:                   actor.Mode(w.Mode),
		ClusterSize:            w.ClusterSize,
		CustomParameters:       w.CustomParameters,
		OnCrash:                actor.OnCrash(w.OnCrash),
		DropMessagesOnOverload: w.DropMessagesOnOverload,
		Balancer:               w.Balancer,
		Host:                   w.Host,
		Cluster:                w.Cluster,
		PingTimeout:            time.Duration(w.PingTimeoutMillis) * time.Millisecond,
	}
}
