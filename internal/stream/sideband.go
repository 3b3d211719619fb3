package stream

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
)

// sidebandBufSize sizes the scratch buffer for the drain-only channels.
const sidebandBufSize = 16 * 1024

// Event accepts TCP connections on the advertised event port and drains
// them. The channel is an out-of-band signalling placeholder; nothing is
// parsed.
type Event struct {
	log      *slog.Logger
	listener net.Listener

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// NewEvent creates an event processor on listener. If log is nil,
// slog.Default() is used.
func NewEvent(listener net.Listener, log *slog.Logger) *Event {
	if log == nil {
		log = slog.Default()
	}
	return &Event{
		log:      log.With("component", "event"),
		listener: listener,
		conns:    make(map[net.Conn]struct{}),
	}
}

// Run accepts and drains event connections until the listener fails or
// ctx is cancelled. Teardown closes the accepted connections along with
// the listener, so no drain outlives the processor.
func (p *Event) Run(ctx context.Context) error {
	defer p.closeConns()
	defer p.listener.Close()
	go func() {
		<-ctx.Done()
		p.listener.Close()
	}()

	for {
		conn, err := p.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("event accept: %w", err)
		}
		p.log.Debug("event connection", "remote", conn.RemoteAddr())
		p.mu.Lock()
		p.conns[conn] = struct{}{}
		p.mu.Unlock()
		go p.drain(conn)
	}
}

func (p *Event) closeConns() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for conn := range p.conns {
		conn.Close()
	}
}

func (p *Event) drain(conn net.Conn) {
	defer func() {
		conn.Close()
		p.mu.Lock()
		delete(p.conns, conn)
		p.mu.Unlock()
	}()

	buf := make([]byte, sidebandBufSize)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		p.log.Debug("event data", "len", n, "remote", conn.RemoteAddr())
	}
}

// Control drains the realtime audio control port. Retransmit and sync
// datagrams arrive here; they are reserved and discarded unparsed.
type Control struct {
	log  *slog.Logger
	conn net.PacketConn
}

// NewControl creates a control processor bound to conn. If log is nil,
// slog.Default() is used.
func NewControl(conn net.PacketConn, log *slog.Logger) *Control {
	if log == nil {
		log = slog.Default()
	}
	return &Control{
		log:  log.With("component", "control"),
		conn: conn,
	}
}

// Run drains control datagrams until the socket fails or ctx is
// cancelled.
func (p *Control) Run(ctx context.Context) error {
	defer p.conn.Close()
	go func() {
		<-ctx.Done()
		p.conn.Close()
	}()

	buf := make([]byte, sidebandBufSize)
	for {
		if _, _, err := p.conn.ReadFrom(buf); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("control read: %w", err)
		}
	}
}
