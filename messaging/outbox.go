package messaging

import (
	"context"
	"log"
	"time"

	"slotrecycler/store"
)

const (
	drainBatch      = 50
	maxRetries      = 10
	sentRetention   = 24 * time.Hour
	purgeEveryTicks = 720
)

// OutboxStore is the subset of store.DB the drainer needs.
type OutboxStore interface {
	EnqueueOutbox(topic string, payload []byte, msgType, stationID string) error
	ListPendingOutbox(limit, maxRetries int) ([]*store.OutboxMessage, error)
	AckOutbox(id int64) error
	IncrementOutboxRetries(id int64) error
	PurgeSentOutbox(cutoff time.Time) (int64, error)
}

// Publisher sends one message to the broker.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
}

// Enqueue encodes env and stores it for the drainer. Events are never
// published inline so a broker outage cannot slow a pass.
func Enqueue(db OutboxStore, topic string, env *Envelope) error {
	data, err := env.Encode()
	if err != nil {
		return err
	}
	return db.EnqueueOutbox(topic, data, env.MsgType, env.StationID)
}

// OutboxDrainer periodically sends pending outbox messages.
type OutboxDrainer struct {
	db       OutboxStore
	pub      Publisher
	interval time.Duration
	stopChan chan struct{}
	done     chan struct{}
}

func NewOutboxDrainer(db OutboxStore, pub Publisher, interval time.Duration) *OutboxDrainer {
	return &OutboxDrainer{
		db:       db,
		pub:      pub,
		interval: interval,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (d *OutboxDrainer) Start() {
	go d.run()
}

// Stop ends the drain loop and waits for it to exit.
func (d *OutboxDrainer) Stop() {
	close(d.stopChan)
	<-d.done
}

func (d *OutboxDrainer) run() {
	defer close(d.done)
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	ticks := 0
	for {
		select {
		case <-d.stopChan:
			return
		case <-ticker.C:
			d.Drain(context.Background())
			ticks++
			if ticks%purgeEveryTicks == 0 {
				d.purge()
			}
		}
	}
}

// Drain publishes one batch of pending messages and returns how many were sent.
func (d *OutboxDrainer) Drain(ctx context.Context) int {
	msgs, err := d.db.ListPendingOutbox(drainBatch, maxRetries)
	if err != nil {
		log.Printf("outbox: list pending: %v", err)
		return 0
	}
	sent := 0
	for _, msg := range msgs {
		if err := d.pub.Publish(ctx, msg.Topic, msg.MsgType, msg.Payload); err != nil {
			log.Printf("outbox: publish %d to %s failed: %v", msg.ID, msg.Topic, err)
			if err := d.db.IncrementOutboxRetries(msg.ID); err != nil {
				log.Printf("outbox: increment retries %d: %v", msg.ID, err)
			}
			continue
		}
		if err := d.db.AckOutbox(msg.ID); err != nil {
			log.Printf("outbox: ack %d: %v", msg.ID, err)
			continue
		}
		sent++
	}
	return sent
}

func (d *OutboxDrainer) purge() {
	n, err := d.db.PurgeSentOutbox(time.Now().Add(-sentRetention))
	if err != nil {
		log.Printf("outbox: purge: %v", err)
		return
	}
	if n > 0 {
		log.Printf("outbox: purged %d sent messages", n)
	}
}
