package http

import (
	"encoding/json"
	"log"

	"live-quiz-service/internal/domain"
)

// Dispatcher serializes an event once and fans it out to a connection
// subset. It implements app.Broadcaster. Individual send failures are
// logged and skipped; one dead socket never blocks the rest of the fan-out.
type Dispatcher struct {
	registry *Registry
}

func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

func (d *Dispatcher) BroadcastAll(event domain.Event) {
	d.deliver(d.registry.All(), event)
}

func (d *Dispatcher) BroadcastUsers(userIDs []string, event domain.Event) {
	d.deliver(d.registry.ByUserIDs(userIDs), event)
}

func (d *Dispatcher) deliver(conns []*Connection, event domain.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("broadcast %s: marshal failed: %v", event.Type, err)
		return
	}
	for _, conn := range conns {
		if !conn.enqueue(data) {
			log.Printf("broadcast %s: dropping frame for slow connection %s", event.Type, conn.ID)
		}
	}
}
