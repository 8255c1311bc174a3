package stream

import (
	"slices"
	"sync"
)

// Registry maps a topic (vehicle id, alert severity) to the ordered set of
// connection ids subscribed to it. A connection id appears at most once per
// topic. Topic sets are created lazily and are kept once empty.
type Registry struct {
	mu     sync.RWMutex
	topics map[string][]string
	order  []string
}

func NewRegistry() *Registry {
	return &Registry{topics: map[string][]string{}}
}

func (r *Registry) Subscribe(topic, clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.topics[topic]
	if !ok {
		r.order = append(r.order, topic)
	}
	if slices.Contains(subs, clientID) {
		return
	}
	r.topics[topic] = append(subs, clientID)
}

func (r *Registry) Unsubscribe(topic, clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.topics[topic]
	if !ok {
		return
	}
	if i := slices.Index(subs, clientID); i >= 0 {
		r.topics[topic] = slices.Delete(subs, i, i+1)
	}
}

// Subscribers returns a copy of the topic's subscribers in subscription order.
func (r *Registry) Subscribers(topic string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.topics[topic])
}

// Topics returns the known topics in creation order.
func (r *Registry) Topics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// RemoveClient drops clientID from every topic and reports how many
// subscriptions were removed.
func (r *Registry) RemoveClient(clientID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for topic, subs := range r.topics {
		if i := slices.Index(subs, clientID); i >= 0 {
			r.topics[topic] = slices.Delete(subs, i, i+1)
			removed++
		}
	}
	return removed
}
