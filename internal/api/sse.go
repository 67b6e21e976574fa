package api

import (
	"fmt"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"
)

// SSEBroker fans messages out to connected event-stream clients. Slow
// clients miss messages rather than block producers.
type SSEBroker struct {
	clients map[chan string]bool
	mu      sync.RWMutex
}

func NewSSEBroker() *SSEBroker {
	return &SSEBroker{clients: make(map[chan string]bool)}
}

func (b *SSEBroker) Subscribe() chan string {
	ch := make(chan string, 10)
	b.mu.Lock()
	b.clients[ch] = true
	b.mu.Unlock()
	return ch
}

func (b *SSEBroker) Unsubscribe(ch chan string) {
	b.mu.Lock()
	delete(b.clients, ch)
	close(ch)
	b.mu.Unlock()
}

func (b *SSEBroker) Broadcast(msg string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (b *SSEBroker) Clients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (s *Server) events(c echo.Context) error {
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")

	ch := s.sse.Subscribe()
	defer s.sse.Unsubscribe(ch)

	fmt.Fprintf(c.Response(), ": ping\n\n")
	c.Response().Flush()

	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		case msg := <-ch:
			fmt.Fprintf(c.Response(), "event: analysis\n")
			for _, line := range strings.Split(msg, "\n") {
				fmt.Fprintf(c.Response(), "data: %s\n", line)
			}
			fmt.Fprintf(c.Response(), "\n")
			c.Response().Flush()
		}
	}
}
