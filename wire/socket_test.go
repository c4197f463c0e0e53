package wire

import (
	"io"
	"net"
	"testing"
	"time"
)

type pingBody struct {
	Seq int    `json:"seq"`
	Msg string `json:"msg"`
}

func TestSocketRoundTrip(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	client := NewSocket(clientConn)
	server := NewSocket(serverConn)

	done := make(chan error, 1)
	go func() {
		var got pingBody
		done <- server.ReadFrame(&got)
		if got.Seq != 42 || got.Msg != "hello" {
			t.Errorf("unexpected body: %+v", got)
		}
	}()

	if err := client.WriteFrame(pingBody{Seq: 42, Msg: "hello"}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
}

func TestSocketMultipleFramesOneChunk(t *testing.T) {
	r, w := io.Pipe()
	sock := NewSocket(struct {
		io.Reader
		io.Writer
		io.Closer
	}{r, w, io.NopCloser(nil)})

	go func() {
		writer := NewSocket(struct {
			io.Reader
			io.Writer
			io.Closer
		}{nil, w, io.NopCloser(nil)})
		writer.WriteFrame(pingBody{Seq: 1, Msg: "a"})
		writer.WriteFrame(pingBody{Seq: 2, Msg: "b"})
	}()

	var first, second pingBody
	if err := sock.ReadFrame(&first); err != nil {
		t.Fatalf("first ReadFrame: %v", err)
	}
	if err := sock.ReadFrame(&second); err != nil {
		t.Fatalf("second ReadFrame: %v", err)
	}
	if first.Seq != 1 || second.Seq != 2 {
		t.Errorf("frames out of order: %+v %+v", first, second)
	}
}

func TestSocketRejectsUnknownType(t *testing.T) {
	r, w := io.Pipe()
	sock := NewSocket(struct {
		io.Reader
		io.Writer
		io.Closer
	}{r, w, io.NopCloser(nil)})

	go func() {
		w.Write([]byte{9, 0, 0, 0, 0})
	}()

	var v pingBody
	if err := sock.ReadFrame(&v); err == nil {
		t.Fatal("expected error for unknown frame type")
	}
}
