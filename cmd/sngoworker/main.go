// Command sngoworker is the Worker Entry (C9): the process a forked
// actor runs in. It is dual-purposed into the same binary as the host
// application (spec §9) — launched with -worker, it reads exactly one
// create-actor frame from its parent over stdio, builds the named
// behavior from the registry every behavior package registers itself
// into via worker.RegisterBehavior, and serves it until the parent
// exits.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sngo/actorkit/transport"
	"github.com/sngo/actorkit/worker"
)

func main() {
	if len(os.Args) < 2 || os.Args[1] != "-worker" {
		fmt.Fprintln(os.Stderr, "sngoworker: not meant to be run directly; launched by the parent process with -worker")
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	bus := transport.NewStdioBus()
	if err := worker.Serve(ctx, bus, worker.Resolve); err != nil {
		fmt.Fprintf(os.Stderr, "sngoworker: %v\n", err)
		os.Exit(1)
	}
}
