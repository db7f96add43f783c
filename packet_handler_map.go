package quic

import (
	"sync"

	"github.com/draftquic/draftquic/internal/protocol"
)

// packetHandlerMap demultiplexes a single shared net.PacketConn across every
// live Connection, keyed by the destination connection ID each inbound
// datagram carries. Server uses it for its accepted connections; the
// client's dial path does not use it.
type packetHandlerMap struct {
	mutex sync.RWMutex

	handlers map[string]*Connection
	closed   bool
}

func newPacketHandlerMap() *packetHandlerMap {
	return &packetHandlerMap{handlers: make(map[string]*Connection)}
}

func (m *packetHandlerMap) Get(id protocol.ConnectionID) (*Connection, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	c, ok := m.handlers[string(id.Bytes())]
	return c, ok
}

func (m *packetHandlerMap) Add(id protocol.ConnectionID, c *Connection) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.handlers[string(id.Bytes())] = c
}

func (m *packetHandlerMap) Remove(id protocol.ConnectionID) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.handlers, string(id.Bytes()))
}

// Close initiates a CONNECTION_CLOSE on every handled connection and waits
// for each to finish draining before returning.
func (m *packetHandlerMap) Close() error {
	m.mutex.Lock()
	if m.closed {
		m.mutex.Unlock()
		return nil
	}
	m.closed = true
	conns := make([]*Connection, 0, len(m.handlers))
	for _, c := range m.handlers {
		conns = append(conns, c)
	}
	m.mutex.Unlock()

	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func(c *Connection) {
			defer wg.Done()
			_ = c.CloseWithError(0, "server shutting down")
		}(c)
	}
	wg.Wait()
	return nil
}
