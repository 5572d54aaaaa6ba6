//go:build integration

package kafka_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	id "qochi/pkg/domain"
	audit "qochi/pkg/platform/audit"
	auditkafka "qochi/pkg/platform/audit/kafka"
	"qochi/pkg/testutil/containers"
)

func TestSinkPublishesDecodableRecords(t *testing.T) {
	rp := containers.NewRedpandaContainer(t)
	t.Cleanup(func() { _ = rp.Container.Terminate(context.Background()) })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	const topic = "qochi.audit.test"
	sink, err := auditkafka.NewSink([]string{rp.Broker}, topic)
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.Ping(ctx))
	require.NoError(t, sink.EnsureTopic(ctx, 1, 1))
	// A second call sees the existing topic.
	require.NoError(t, sink.EnsureTopic(ctx, 1, 1))

	householdID := id.NewHouseholdID()
	rec, err := audit.Encode(audit.Event{
		Category:    audit.CategoryCompliance,
		Timestamp:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		HouseholdID: householdID,
		Subject:     "request:abc",
		Action:      string(audit.EventRequestSubmitted),
		Kind:        "death",
		ActorID:     "household",
	})
	require.NoError(t, err)
	require.NoError(t, sink.Publish(ctx, []audit.Record{rec}))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.Empty(t, fetches.Errors())
	records := fetches.Records()
	require.Len(t, records, 1)

	got := records[0]
	assert.Equal(t, rec.Key, string(got.Key))
	headers := map[string]string{}
	for _, h := range got.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, rec.ID, headers["event_id"])
	assert.Equal(t, string(audit.EventRequestSubmitted), headers["action"])

	event, err := audit.Decode(got.Value)
	require.NoError(t, err)
	assert.Equal(t, householdID, event.HouseholdID)
	assert.Equal(t, "request:abc", event.Subject)
	assert.Equal(t, "death", event.Kind)
}

func TestNewSinkValidatesConfig(t *testing.T) {
	_, err := auditkafka.NewSink(nil, "topic")
	assert.Error(t, err)
	_, err = auditkafka.NewSink([]string{"localhost:9092"}, "")
	assert.Error(t, err)
}
