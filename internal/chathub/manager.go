package chathub

import (
	"context"
	"log"
	"sync"
)

// ManagerService tracks connected clients keyed by connection id.
type ManagerService struct {
	clients map[string]Client
	mu      sync.RWMutex

	RegisterCh   chan Client
	UnregisterCh chan Client

	done     chan struct{}
	doneOnce sync.Once
}

func NewManagerService() *ManagerService {
	return &ManagerService{
		clients:      make(map[string]Client),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		done:         make(chan struct{}),
	}
}

// Run обробляє реєстрацію клієнтів, доки ctx не скасовано.
// On exit every remaining client is closed.
func (m *ManagerService) Run(ctx context.Context) {
	log.Println("INFO: Chat hub started.")
	defer m.shutdown()

	for {
		select {
		case client := <-m.RegisterCh:
			m.mu.Lock()
			m.clients[client.GetConnID()] = client
			m.mu.Unlock()
			client.Run()
			log.Printf("INFO: Client %s connected as %s", client.GetConnID(), client.GetUserID())

		case client := <-m.UnregisterCh:
			m.mu.Lock()
			_, ok := m.clients[client.GetConnID()]
			delete(m.clients, client.GetConnID())
			m.mu.Unlock()
			if ok {
				client.Close()
				log.Printf("INFO: Client %s disconnected", client.GetConnID())
			}

		case <-ctx.Done():
			return
		}
	}
}

// Register hands client to the hub loop. It reports false once the hub
// has stopped.
func (m *ManagerService) Register(client Client) bool {
	select {
	case m.RegisterCh <- client:
		return true
	case <-m.done:
		return false
	}
}

// Unregister never blocks after the hub has stopped.
func (m *ManagerService) Unregister(client Client) {
	select {
	case m.UnregisterCh <- client:
	case <-m.done:
		client.Close()
	}
}

// Count returns the number of connected clients.
func (m *ManagerService) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

func (m *ManagerService) Client(connID string) (Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[connID]
	return c, ok
}

// Done is closed when Run returns.
func (m *ManagerService) Done() <-chan struct{} { return m.done }

func (m *ManagerService) shutdown() {
	m.doneOnce.Do(func() { close(m.done) })

	m.mu.Lock()
	clients := m.clients
	m.clients = make(map[string]Client)
	m.mu.Unlock()

	for _, client := range clients {
		client.Close()
	}
	log.Printf("INFO: Chat hub stopped, closed %d clients.", len(clients))
}
