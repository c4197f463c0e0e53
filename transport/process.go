package transport

import (
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/sngo/actorkit/protocol"
	"github.com/sngo/actorkit/wire"
)

// processBus is the parent-side IPC Transport Bus variant (§4.2 item 1):
// the platform's built-in parent-child channel, here the spawned
// worker's stdin/stdout pipes framed with the Message Socket. The
// teacher has no child-process transport of its own; the accept/run/
// wait-in-a-goroutine shape is adapted from bootstrap.Service's
// Start/Stop contract (bootstrap/interfaces.go) and
// bootstrap.DefaultLifecycleManager's per-service goroutine lifecycle.
type processBus struct {
	*emitter

	cmd  *exec.Cmd
	sock *wire.Socket

	writeMu sync.Mutex
	once    sync.Once
}

// NewProcessBus starts cmd with its Stdin/Stdout wired into a Message
// Socket and returns a Bus fronting it. cmd must not already have Stdin
// or Stdout set.
func NewProcessBus(cmd *exec.Cmd) (Bus, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("transport: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("transport: stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("transport: start worker: %w", err)
	}

	b := &processBus{
		emitter: newEmitter(),
		cmd:     cmd,
		sock:    wire.NewSocket(pipePair{ReadCloser: stdout, WriteCloser: stdin}),
	}

	go b.readLoop()
	go func() {
		cmd.Wait()
		b.closeAndEmitExit()
	}()

	return b, nil
}

// pipePair adapts a read side and a write side opened independently
// (exec.Cmd hands back two separate pipes) into the single
// io.ReadWriteCloser wire.Socket expects.
type pipePair struct {
	io.ReadCloser
	io.WriteCloser
}

func (p pipePair) Close() error {
	werr := p.WriteCloser.Close()
	rerr := p.ReadCloser.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

func (b *processBus) readLoop() {
	for {
		var frame protocol.Frame
		if err := b.sock.ReadFrame(&frame); err != nil {
			b.closeAndEmitExit()
			return
		}
		b.emit(EventMessage, frame)
	}
}

func (b *processBus) Send(frame protocol.Frame, cb func(error)) {
	b.writeMu.Lock()
	err := b.sock.WriteFrame(frame)
	b.writeMu.Unlock()

	if err != nil {
		b.closeAndEmitExit()
	}
	if cb != nil {
		cb(err)
	}
}

func (b *processBus) Close() error {
	err := b.sock.Close()
	if b.cmd.Process != nil {
		b.cmd.Process.Kill()
	}
	b.closeAndEmitExit()
	return err
}

func (b *processBus) closeAndEmitExit() {
	b.once.Do(func() {
		b.sock.Close()
		b.emit(EventExit, protocol.Frame{})
	})
}
