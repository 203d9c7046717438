// Package mcptest runs an in-process stand-in for the host add-on.
package mcptest

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/legosorter/internal/protocol"
)

// Handler answers one decoded request on conn. The server closes conn afterwards.
type Handler func(t testing.TB, req protocol.Request, conn net.Conn)

// Server accepts one request per connection and dispatches it to Handler.
type Server struct {
	t        testing.TB
	listener net.Listener
	handler  Handler

	mu       sync.Mutex
	requests []protocol.Request
	conns    int

	wg sync.WaitGroup
}

// Start listens on a random loopback port; the server stops at test cleanup.
func Start(t testing.TB, handler Handler) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &Server{t: t, listener: ln, handler: handler}
	s.wg.Add(1)
	go s.serve()
	t.Cleanup(s.Close)
	return s
}

func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

func (s *Server) Close() {
	_ = s.listener.Close()
	s.wg.Wait()
}

// Requests returns every request decoded so far.
func (s *Server) Requests() []protocol.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Connections counts accepted connections, including ones that sent nothing.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns++
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer conn.Close()
			line, err := bufio.NewReader(conn).ReadBytes('\n')
			if err != nil {
				return
			}
			req, err := protocol.DecodeRequest(line)
			if err != nil {
				return
			}
			s.mu.Lock()
			s.requests = append(s.requests, req)
			s.mu.Unlock()
			if s.handler != nil {
				s.handler(s.t, req, conn)
			}
		}()
	}
}

// Reply answers every request with output.
func Reply(output string) Handler {
	return func(t testing.TB, _ protocol.Request, conn net.Conn) {
		write(t, conn, protocol.SuccessResponse(output))
	}
}

// ReplyFunc builds the output from the request code.
func ReplyFunc(fn func(code string) string) Handler {
	return func(t testing.TB, req protocol.Request, conn net.Conn) {
		write(t, conn, protocol.SuccessResponse(fn(req.Params.Code)))
	}
}

// Fail answers status:"error" with message.
func Fail(message string) Handler {
	return func(t testing.TB, _ protocol.Request, conn net.Conn) {
		write(t, conn, protocol.ErrorResponse(message))
	}
}

// Delay waits d before delegating to next, or until the client hangs up.
func Delay(d time.Duration, next Handler) Handler {
	return func(t testing.TB, req protocol.Request, conn net.Conn) {
		time.Sleep(d)
		if next != nil {
			next(t, req, conn)
		}
	}
}

// Split writes the success reply in pieces of size bytes with a pause between them.
func Split(output string, size int, pause time.Duration) Handler {
	return func(t testing.TB, _ protocol.Request, conn net.Conn) {
		payload, err := protocol.EncodeResponse(protocol.SuccessResponse(output))
		if err != nil {
			t.Errorf("encode response: %v", err)
			return
		}
		if size <= 0 {
			size = 1
		}
		for len(payload) > 0 {
			n := size
			if n > len(payload) {
				n = len(payload)
			}
			if _, err := conn.Write(payload[:n]); err != nil {
				return
			}
			payload = payload[n:]
			time.Sleep(pause)
		}
	}
}

// Raw writes body verbatim.
func Raw(body string) Handler {
	return func(_ testing.TB, _ protocol.Request, conn net.Conn) {
		_, _ = conn.Write([]byte(body))
	}
}

// Hangup closes without replying.
func Hangup() Handler {
	return func(testing.TB, protocol.Request, net.Conn) {}
}

// Sequence uses handlers in order per request; the last one repeats.
func Sequence(handlers ...Handler) Handler {
	var mu sync.Mutex
	next := 0
	return func(t testing.TB, req protocol.Request, conn net.Conn) {
		mu.Lock()
		h := handlers[len(handlers)-1]
		if next < len(handlers) {
			h = handlers[next]
		}
		next++
		mu.Unlock()
		h(t, req, conn)
	}
}

// Payload replies with log lines followed by v as a probe payload line.
func Payload(v any, logs ...string) Handler {
	return func(t testing.TB, _ protocol.Request, conn net.Conn) {
		line, err := protocol.FormatPayload(v)
		if err != nil {
			t.Errorf("format payload: %v", err)
			return
		}
		write(t, conn, protocol.SuccessResponse(strings.Join(append(logs, line), "\n")))
	}
}

// Route dispatches to the handler whose key occurs in the request code, else fallback.
// Keys must not overlap.
func Route(routes map[string]Handler, fallback Handler) Handler {
	return func(t testing.TB, req protocol.Request, conn net.Conn) {
		for key, h := range routes {
			if strings.Contains(req.Params.Code, key) {
				h(t, req, conn)
				return
			}
		}
		if fallback != nil {
			fallback(t, req, conn)
		}
	}
}

// ClosedAddr returns a loopback address with nothing listening on it.
func ClosedAddr(t testing.TB) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

func write(t testing.TB, conn net.Conn, resp protocol.Response) {
	payload, err := protocol.EncodeResponse(resp)
	if err != nil {
		t.Errorf("encode response: %v", err)
		return
	}
	_, _ = conn.Write(payload)
}
