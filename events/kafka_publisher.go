package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-bdpay/core"
	"github.com/goliatone/go-logger/glog"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kprom"
)

const (
	EventTypeStatusChanged = "bdpay.transaction.status_changed"
	HeaderEventType        = "event-type"
	DefaultTopic           = "bdpay.transactions"
)

// Producer is the slice of *kgo.Client the publisher needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

type KafkaConfig struct {
	Brokers  []string `koanf:"brokers"`
	Topic    string   `koanf:"topic"`
	ClientID string   `koanf:"client_id"`
}

// NewKafkaClient builds a producer client with kprom hooks attached when
// metrics is non-nil.
func NewKafkaClient(cfg KafkaConfig, metrics *kprom.Metrics) (*kgo.Client, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("events: kafka brokers are required")
	}
	topic := strings.TrimSpace(cfg.Topic)
	if topic == "" {
		topic = DefaultTopic
	}
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}
	if id := strings.TrimSpace(cfg.ClientID); id != "" {
		opts = append(opts, kgo.ClientID(id))
	}
	if metrics != nil {
		opts = append(opts, kgo.WithHooks(metrics))
	}
	return kgo.NewClient(opts...)
}

// StatusEvent is the record value published for each applied transition.
type StatusEvent struct {
	EventType      string    `json:"event_type"`
	TransactionRef string    `json:"id"`
	OrderID        string    `json:"order_id"`
	TransactionID  string    `json:"transaction_id,omitempty"`
	Kind           string    `json:"type"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	Created        bool      `json:"created"`
	Amount         string    `json:"amount"`
	Currency       string    `json:"currency"`
	PaymentMethod  string    `json:"payment_method,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

func NewStatusEvent(change core.StatusChange) StatusEvent {
	tx := change.Transaction
	occurredAt := change.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	return StatusEvent{
		EventType:      EventTypeStatusChanged,
		TransactionRef: tx.ID,
		OrderID:        tx.OrderID,
		TransactionID:  tx.TransactionID,
		Kind:           string(tx.Kind),
		Status:         string(tx.Status),
		PreviousStatus: string(change.Previous),
		Created:        change.Created,
		Amount:         tx.Amount.StringFixed(2),
		Currency:       tx.Currency,
		PaymentMethod:  tx.PaymentMethod,
		OccurredAt:     occurredAt.UTC(),
	}
}

// KafkaPublisher is a core.StatusObserver that emits one record per ledger
// transition, keyed by order id so a single order stays on one partition.
type KafkaPublisher struct {
	producer Producer
	topic    string
	logger   core.Logger
}

type PublisherOption func(*KafkaPublisher)

func WithTopic(topic string) PublisherOption {
	return func(p *KafkaPublisher) {
		if topic = strings.TrimSpace(topic); topic != "" {
			p.topic = topic
		}
	}
}

func WithLogger(logger core.Logger) PublisherOption {
	return func(p *KafkaPublisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewKafkaPublisher(producer Producer, opts ...PublisherOption) (*KafkaPublisher, error) {
	if producer == nil {
		return nil, fmt.Errorf("events: kafka producer is required")
	}
	publisher := &KafkaPublisher{
		producer: producer,
		topic:    DefaultTopic,
		logger:   glog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(publisher)
		}
	}
	return publisher, nil
}

func (p *KafkaPublisher) OnStatusChange(ctx context.Context, change core.StatusChange) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("events: kafka publisher is not configured")
	}
	event := NewStatusEvent(change)
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: encode status event: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.OrderID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: HeaderEventType, Value: []byte(EventTypeStatusChanged)},
			{Key: "transaction-type", Value: []byte(event.Kind)},
		},
		Timestamp: event.OccurredAt,
	}
	if err := p.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		p.logger.Error("failed to publish status event",
			"topic", p.topic,
			"order_id", event.OrderID,
			"status", event.Status,
			"error", err,
		)
		return fmt.Errorf("events: publish status event: %w", err)
	}
	p.logger.Debug("published status event",
		"topic", p.topic,
		"order_id", event.OrderID,
		"status", event.Status,
	)
	return nil
}

var _ core.StatusObserver = (*KafkaPublisher)(nil)
