package system

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/sngo/actorkit/endpoint"
	"github.com/sngo/actorkit/protocol"
	"github.com/sngo/actorkit/transport"
	"github.com/sngo/actorkit/worker"
)

// listener is the remote-host accept side of spec §4.5.3: it binds a
// TCP address and, for every inbound connection, routes actor-message/
// destroy-actor/actor-tree/actor-metrics frames addressed to one of
// this process's exported actors, and satisfies create-actor requests
// for a registered behavior run in-memory on this host. Grounded on
// network.tcpServer's accept-loop/ctx/cancel/WaitGroup shape.
type listener struct {
	sys *System
	ln  net.Listener

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Listen binds addr and starts accepting remote-host actor traffic
// (spec §4.5.3's inter-host dispatch endpoint, server side). It must be
// called at most once per System.
func (s *System) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("system: listen %s: %w", addr, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	l := &listener{sys: s, ln: ln, ctx: ctx, cancel: cancel}
	s.listener = l

	l.wg.Add(1)
	go l.acceptLoop()
	return nil
}

func (l *listener) acceptLoop() {
	defer l.wg.Done()
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			return
		}
		l.wg.Add(1)
		go l.serveConn(conn)
	}
}

func (l *listener) serveConn(conn net.Conn) {
	defer l.wg.Done()
	bus := transport.NewTCPBus(conn)
	bus.On(transport.EventMessage, func(frame protocol.Frame) {
		l.handleFrame(bus, frame)
	})
	<-l.ctx.Done()
}

func (l *listener) handleFrame(bus transport.Bus, frame protocol.Frame) {
	switch frame.Type {
	case protocol.FrameCreateActor:
		l.handleCreateActor(bus, frame)
	case protocol.FrameActorMessage:
		l.handleActorMessage(bus, frame)
	case protocol.FrameDestroyActor:
		l.handleDestroyActor(bus, frame)
	case protocol.FrameActorTree:
		l.handleActorTree(bus, frame)
	case protocol.FrameActorMetrics:
		l.handleActorMetrics(bus, frame)
	}
}

func (l *listener) handleActorMessage(bus transport.Bus, frame protocol.Frame) {
	proxy, ok := l.sys.Refs.Lookup(frame.ActorID)
	if !ok {
		if proxy, ok = l.sys.locate(frame.ActorID); !ok {
			return
		}
	}

	var body protocol.ActorMessageBody
	if err := frame.DecodeBody(&body); err != nil {
		return
	}

	if !body.Receive {
		proxy.Send(body.Topic, body.Message, nil)
		return
	}

	go func() {
		var raw []byte
		callErr := proxy.SendAndReceive(l.ctx, body.Topic, body.Message, (*rawMessage)(&raw))
		respBody := protocol.ActorResponseBody{Response: raw}
		if callErr != nil {
			respBody.Error = callErr.Error()
		}
		resp, err := protocol.Frame{Type: protocol.FrameActorResponse, ID: frame.ID, ActorID: frame.ActorID}.WithBody(respBody)
		if err == nil {
			bus.Send(resp, nil)
		}
	}()
}

func (l *listener) handleDestroyActor(bus transport.Bus, frame protocol.Frame) {
	proxy, ok := l.sys.locate(frame.ActorID)
	if !ok {
		return
	}
	go func() {
		proxy.Destroy(l.ctx)
		done, err := protocol.Frame{Type: protocol.FrameActorDestroyed, ID: frame.ID, ActorID: frame.ActorID}.WithBody(struct{}{})
		if err == nil {
			bus.Send(done, nil)
		}
	}()
}

func (l *listener) handleActorTree(bus transport.Bus, frame protocol.Frame) {
	proxy, ok := l.sys.locate(frame.ActorID)
	if !ok {
		return
	}
	resp, err := protocol.Frame{Type: protocol.FrameActorTree, ID: frame.ID, ActorID: frame.ActorID}.WithBody(proxy.Tree())
	if err == nil {
		bus.Send(resp, nil)
	}
}

func (l *listener) handleActorMetrics(bus transport.Bus, frame protocol.Frame) {
	proxy, ok := l.sys.locate(frame.ActorID)
	if !ok {
		return
	}
	resp, err := protocol.Frame{Type: protocol.FrameActorMetrics, ID: frame.ID, ActorID: frame.ActorID}.WithBody(proxy.Metrics())
	if err == nil {
		bus.Send(resp, nil)
	}
}

// handleCreateActor satisfies a create-actor frame by building an
// in-memory actor under root from a registered behavior definition and
// exporting it so subsequent frames addressed to its id are routable
// (spec §6.2).
func (l *listener) handleCreateActor(bus transport.Bus, frame protocol.Frame) {
	var body protocol.CreateActorBody
	if err := frame.DecodeBody(&body); err != nil {
		l.replyCreateFailed(bus, frame, err)
		return
	}

	behavior, err := worker.Resolve(body.Name)
	if err != nil {
		l.replyCreateFailed(bus, frame, err)
		return
	}

	cfg := worker.FromWireConfig(body.Config)
	proxy, err := l.sys.root.CreateChild(l.ctx, body.Name, behavior, cfg, endpoint.NewInMemory, l.sys.rebuilder())
	if err != nil {
		l.replyCreateFailed(bus, frame, err)
		return
	}
	l.sys.actors.Store(proxy.ID(), proxy)
	l.sys.Refs.Marshal(proxy)

	reply, err := protocol.Frame{Type: protocol.FrameActorCreated, ID: frame.ID, ActorID: proxy.ID()}.WithBody(protocol.ActorCreatedBody{ID: proxy.ID()})
	if err == nil {
		bus.Send(reply, nil)
	}
}

func (l *listener) replyCreateFailed(bus transport.Bus, frame protocol.Frame, err error) {
	reply := protocol.Frame{Type: protocol.FrameActorCreated, ID: frame.ID, Error: err.Error()}
	bus.Send(reply, nil)
}

func (l *listener) close() {
	l.cancel()
	l.ln.Close()
	l.wg.Wait()
}

// rawMessage adapts a []byte destination to SendAndReceive's
// json.Unmarshal-based out parameter, copying the raw response bytes
// verbatim instead of decoding them, since the listener is only
// relaying them on to another process.
type rawMessage []byte

func (r *rawMessage) UnmarshalJSON(data []byte) error {
	*r = append((*r)[:0], data...)
	return nil
}
