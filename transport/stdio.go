package transport

import (
	"io"
	"os"
	"sync"

	"github.com/sngo/actorkit/protocol"
	"github.com/sngo/actorkit/wire"
)

// stdioBus is the child-side counterpart to processBus: the worker
// process's own view of the same pipe pair its parent opened with
// NewProcessBus, read from os.Stdin and written to os.Stdout.
type stdioBus struct {
	*emitter

	sock    *wire.Socket
	writeMu sync.Mutex
	once    sync.Once
}

// NewStdioBus wraps the calling process's standard input/output as a
// Bus, for use by a forked worker process (spec §9's worker entry
// point) talking back to the parent that spawned it via NewProcessBus.
func NewStdioBus() Bus {
	b := &stdioBus{
		emitter: newEmitter(),
		sock:    wire.NewSocket(stdioReadWriteCloser{}),
	}
	go b.readLoop()
	return b
}

type stdioReadWriteCloser struct{}

func (stdioReadWriteCloser) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdioReadWriteCloser) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdioReadWriteCloser) Close() error {
	werr := os.Stdout.Close()
	rerr := os.Stdin.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

func (b *stdioBus) readLoop() {
	for {
		var frame protocol.Frame
		if err := b.sock.ReadFrame(&frame); err != nil {
			b.closeAndEmitExit()
			return
		}
		b.emit(EventMessage, frame)
	}
}

func (b *stdioBus) Send(frame protocol.Frame, cb func(error)) {
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

func (b *stdioBus) Close() error {
	err := b.sock.Close()
	b.closeAndEmitExit()
	return err
}

func (b *stdioBus) closeAndEmitExit() {
	b.once.Do(func() {
		b.emit(EventExit, protocol.Frame{})
	})
}

var _ io.ReadWriteCloser = stdioReadWriteCloser{}
