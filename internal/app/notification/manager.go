// Package notification fans elevator events out to watching clients.
package notification

import (
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

const (
	// sendTimeout bounds a single Send; a subscriber exceeding it is dropped.
	sendTimeout = 500 * time.Millisecond

	// queueSize is the number of notifications buffered per subscriber.
	queueSize = 64
)

// Notification is a single event delivered to subscribers.
type Notification struct {
	SequenceNo uint64
	Type       string
	Time       time.Time
	Payload    map[string]any
}

// Stream represents a notification stream for a subscriber.
type Stream interface {
	Send(*Notification) error
}

// subscription represents a subscriber's subscription. Its stream is only
// ever sent to from its own sendLoop goroutine.
type subscription struct {
	id     string
	stream Stream
	queue  chan *Notification
	done   chan struct{}
	once   sync.Once
}

func (s *subscription) stop() {
	s.once.Do(func() { close(s.done) })
}

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription

	// broadcastMu orders sequence numbers with their enqueueing.
	broadcastMu sync.Mutex
	sequenceNo  uint64
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*subscription),
	}
}

// Subscribe adds a new subscription and returns its ID along with a channel
// closed once the subscription ends, whether by Unsubscribe, Close, or being
// dropped for a failed or slow send.
func (m *Manager) Subscribe(stream Stream) (string, <-chan struct{}) {
	sub := &subscription{
		id:     uuid.New().String(),
		stream: stream,
		queue:  make(chan *Notification, queueSize),
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	m.subscriptions[sub.id] = sub
	total := len(m.subscriptions)
	m.mu.Unlock()

	go m.sendLoop(sub)

	zlog.Debug().Msgf("notification: subscribed: id=%s total=%d", sub.id, total)
	return sub.id, sub.done
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	sub, ok := m.subscriptions[subscriptionID]
	delete(m.subscriptions, subscriptionID)
	m.mu.Unlock()

	if ok {
		sub.stop()
	}
}

// Broadcast stamps the notification with the next sequence number and
// queues it for every subscriber. A subscriber whose queue is full is
// dropped. It returns the number of subscribers the notification was
// queued for.
func (m *Manager) Broadcast(n *Notification) int {
	m.broadcastMu.Lock()
	defer m.broadcastMu.Unlock()

	m.sequenceNo++
	n.SequenceNo = m.sequenceNo
	if n.Time.IsZero() {
		n.Time = time.Now()
	}

	m.mu.RLock()
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	queued := 0
	for _, sub := range subs {
		select {
		case <-sub.done:
		case sub.queue <- n:
			queued++
		default:
			zlog.Warn().Msgf("notification: queue full, dropping subscriber: id=%s type=%s seq=%d",
				sub.id, n.Type, n.SequenceNo)
			m.Unsubscribe(sub.id)
		}
	}
	return queued
}

// sendLoop delivers queued notifications to one subscriber in order.
func (m *Manager) sendLoop(sub *subscription) {
	for {
		select {
		case <-sub.done:
			return
		case n := <-sub.queue:
			timer := time.AfterFunc(sendTimeout, func() {
				zlog.Warn().Msgf("notification: send timed out, dropping subscriber: id=%s type=%s seq=%d",
					sub.id, n.Type, n.SequenceNo)
				m.Unsubscribe(sub.id)
			})
			err := sub.stream.Send(n)
			if !timer.Stop() {
				return
			}
			if err != nil {
				zlog.Warn().Msgf("notification: send failed, dropping subscriber: id=%s error=%v", sub.id, err)
				m.Unsubscribe(sub.id)
				return
			}
		}
	}
}

// SequenceNo returns the sequence number of the last broadcast.
func (m *Manager) SequenceNo() uint64 {
	m.broadcastMu.Lock()
	defer m.broadcastMu.Unlock()
	return m.sequenceNo
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close closes the manager and removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	subs := m.subscriptions
	m.subscriptions = make(map[string]*subscription)
	m.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
}
