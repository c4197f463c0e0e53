package transport

import (
	"net"
	"sync"

	"github.com/sngo/actorkit/protocol"
	"github.com/sngo/actorkit/wire"
)

// tcpBus is the TCP Transport Bus variant (§4.2 item 2): C1 framing on
// top of a stream socket. The read loop and close-triggers-exit shape
// are grounded on the teacher's tcpConnection send/receive goroutines
// (network/tcp_connection.go), replacing its BinaryMessageCodec with
// wire.Socket.
type tcpBus struct {
	*emitter

	sock *wire.Socket

	writeMu sync.Mutex
	once    sync.Once
}

// NewTCPBus wraps an already-dialed or accepted net.Conn as a Bus and
// starts its read loop.
func NewTCPBus(conn net.Conn) Bus {
	b := &tcpBus{
		emitter: newEmitter(),
		sock:    wire.NewSocket(conn),
	}
	go b.readLoop()
	return b
}

func (b *tcpBus) readLoop() {
	for {
		var frame protocol.Frame
		if err := b.sock.ReadFrame(&frame); err != nil {
			b.closeAndEmitExit()
			return
		}
		b.emit(EventMessage, frame)
	}
}

func (b *tcpBus) Send(frame protocol.Frame, cb func(error)) {
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

func (b *tcpBus) Close() error {
	err := b.sock.Close()
	b.closeAndEmitExit()
	return err
}

func (b *tcpBus) closeAndEmitExit() {
	b.once.Do(func() {
		b.sock.Close()
		b.emit(EventExit, protocol.Frame{})
	})
}
