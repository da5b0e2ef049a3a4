package notify

import (
	"context"
	"sync"

	"marketplace/internal/models"
)

// Emitter fans new notifications out to connected SSE clients, keyed by user.
type Emitter struct {
	clients     map[string][]chan models.Notification
	clientMutex sync.RWMutex
}

func NewEmitter() *Emitter {
	return &Emitter{
		clients: make(map[string][]chan models.Notification),
	}
}

// Subscribe adds a client stream for the user's notifications. The channel
// is removed and closed when ctx is done.
func (e *Emitter) Subscribe(ctx context.Context, userID string) chan models.Notification {
	clientChan := make(chan models.Notification, 10)

	e.clientMutex.Lock()
	e.clients[userID] = append(e.clients[userID], clientChan)
	e.clientMutex.Unlock()

	go func() {
		<-ctx.Done()
		e.removeClient(userID, clientChan)
	}()

	return clientChan
}

// Emit pushes a notification to every channel the user has open. Sends are
// non-blocking; a client with a full buffer misses the push but still has
// the durable row.
func (e *Emitter) Emit(n models.Notification) {
	e.clientMutex.RLock()
	clients := e.clients[n.UserID]
	e.clientMutex.RUnlock()

	for _, clientChan := range clients {
		select {
		case clientChan <- n:
		default:
		}
	}
}

func (e *Emitter) removeClient(userID string, clientChan chan models.Notification) {
	e.clientMutex.Lock()
	defer e.clientMutex.Unlock()

	clients := e.clients[userID]
	for i, ch := range clients {
		if ch == clientChan {
			e.clients[userID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}
	if len(e.clients[userID]) == 0 {
		delete(e.clients, userID)
	}
}
