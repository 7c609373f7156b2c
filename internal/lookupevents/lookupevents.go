// Package lookupevents publishes codec lookups to Kafka for offline
// analysis of which areas are being addressed.
package lookupevents

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/mohammed-shakir/digipin/internal/core/observability"
)

type Event struct {
	ID      string    `json:"id"`
	Op      string    `json:"op"`
	Code    string    `json:"code,omitempty"`
	Lat     float64   `json:"lat"`
	Lon     float64   `json:"lon"`
	Outcome string    `json:"outcome"`
	TS      time.Time `json:"ts"`
}

// Sink accepts events without blocking.
type Sink interface {
	Publish(ev Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(Event) {}

type Publisher struct {
	topic   string
	events  chan Event
	prod    sarama.AsyncProducer
	log     *slog.Logger
	stopped chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewPublisher(brokers []string, topic string, queueSize int, log *slog.Logger) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Compression = sarama.CompressionSnappy

	prod, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("lookupevents: create async producer: %w", err)
	}
	return newPublisher(prod, topic, queueSize, log), nil
}

func newPublisher(prod sarama.AsyncProducer, topic string, queueSize int, log *slog.Logger) *Publisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	p := &Publisher{
		topic:   topic,
		events:  make(chan Event, queueSize),
		prod:    prod,
		log:     log,
		stopped: make(chan struct{}),
	}

	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				p.log.Warn("lookupevents: marshal", "err", err)
				continue
			}
			msg := &sarama.ProducerMessage{
				Topic: p.topic,
				Value: sarama.ByteEncoder(b),
			}
			if ev.Code != "" {
				// keep lookups of one area on one partition
				msg.Key = sarama.StringEncoder(areaKey(ev.Code))
			}
			p.prod.Input() <- msg
		}
	}()

	go func() {
		for err := range p.prod.Errors() {
			if err != nil {
				observability.IncEvent("failed")
				p.log.Warn("lookupevents: producer error", "err", err)
			}
		}
	}()

	return p
}

// Publish enqueues ev; a full queue drops it rather than blocking the
// request path. Events published after Close are dropped.
func (p *Publisher) Publish(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		observability.IncEvent("dropped")
		return
	}
	select {
	case p.events <- ev:
		observability.IncEvent("queued")
	default:
		observability.IncEvent("dropped")
	}
}

// Close drains queued events and closes the producer. Calls after the
// first are no-ops.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()
	<-p.stopped

	if err := p.prod.Close(); err != nil {
		return fmt.Errorf("lookupevents: close producer: %w", err)
	}
	return nil
}

// areaKey is the level-4 prefix of a code (~15km square).
func areaKey(code string) string {
	const areaLevel = 4
	n := make([]byte, 0, areaLevel)
	for i := 0; i < len(code) && len(n) < areaLevel; i++ {
		if code[i] != '-' {
			n = append(n, code[i])
		}
	}
	return string(n)
}
