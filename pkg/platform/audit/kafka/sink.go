// Package kafka publishes audit records to a Kafka topic.
package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "qochi/pkg/platform/audit"
)

// Sink produces audit records synchronously. Records are keyed by household
// so one household's history stays ordered within a partition.
type Sink struct {
	client *kgo.Client
	topic  string
}

func NewSink(brokers []string, topic string, opts ...kgo.Opt) (*Sink, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if topic == "" {
		return nil, errors.New("kafka: topic is required")
	}
	base := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ClientID("qochi-audit"),
	}
	client, err := kgo.NewClient(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("kafka: create client: %w", err)
	}
	return &Sink{client: client, topic: topic}, nil
}

// EnsureTopic creates the audit topic when it does not exist yet.
func (s *Sink) EnsureTopic(ctx context.Context, partitions int32, replication int16) error {
	admin := kadm.NewClient(s.client)
	resp, err := admin.CreateTopic(ctx, partitions, replication, nil, s.topic)
	if err != nil {
		return fmt.Errorf("kafka: create topic: %w", err)
	}
	if resp.Err != nil && !isTopicExists(resp.Err) {
		return fmt.Errorf("kafka: create topic %s: %w", s.topic, resp.Err)
	}
	return nil
}

func (s *Sink) Publish(ctx context.Context, records []audit.Record) error {
	if len(records) == 0 {
		return nil
	}
	batch := make([]*kgo.Record, 0, len(records))
	for _, rec := range records {
		batch = append(batch, &kgo.Record{
			Key:   []byte(rec.Key),
			Value: rec.Payload,
			Headers: []kgo.RecordHeader{
				{Key: "event_id", Value: []byte(rec.ID)},
				{Key: "action", Value: []byte(rec.Action)},
			},
		})
	}
	if err := s.client.ProduceSync(ctx, batch...).FirstErr(); err != nil {
		return fmt.Errorf("kafka: produce: %w", err)
	}
	return nil
}

func (s *Sink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s *Sink) Close() {
	s.client.Close()
}

func isTopicExists(err error) bool {
	return errors.Is(err, kerr.TopicAlreadyExists)
}
