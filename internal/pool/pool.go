package pool

import (
	"context"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"VolunteerHub/server/internal/models"
)

type ClientPool interface {
	AddClient(actor models.Actor, conn *websocket.Conn)
	GetClient(actor models.Actor) *Client
	RemoveClient(actor models.Actor)
	SendTo(actor models.Actor, event string, data any) bool
}

type Client struct {
	Actor  models.Actor
	Conn   *websocket.Conn
	Ctx    context.Context
	Cancel context.CancelFunc
}

type Pool struct {
	mu      sync.Mutex
	clients map[models.Actor]*Client
}

func NewPool() *Pool {
	return &Pool{clients: make(map[models.Actor]*Client)}
}

func (p *Pool) AddClient(actor models.Actor, conn *websocket.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.clients[actor]; ok {
		existing.Cancel()
		existing.Conn.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.clients[actor] = &Client{
		Actor:  actor,
		Conn:   conn,
		Ctx:    ctx,
		Cancel: cancel,
	}
	log.Printf("Client %s:%d added to pool", actor.Role, actor.ID)
}

func (p *Pool) GetClient(actor models.Actor) *Client {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.clients[actor]
}

func (p *Pool) RemoveClient(actor models.Actor) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if client, ok := p.clients[actor]; ok {
		client.Cancel()
		delete(p.clients, actor)
		log.Printf("Client %s:%d removed from pool", actor.Role, actor.ID)
	}
}

// SendTo writes an event to a connected client. Returns false when the
// client is offline or the write failed; a failed connection is dropped.
func (p *Pool) SendTo(actor models.Actor, event string, data any) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	client := p.clients[actor]
	if client == nil {
		return false
	}

	err := client.Conn.WriteJSON(map[string]any{
		"event": event,
		"data":  data,
	})
	if err != nil {
		log.Printf("Error sending event to %s:%d: %v", actor.Role, actor.ID, err)
		client.Cancel()
		client.Conn.Close()
		delete(p.clients, actor)
		return false
	}

	return true
}
