//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"nidapi/internal/usage/models"
	"nidapi/internal/usage/publisher/kafka"
	id "nidapi/pkg/domain"
	"nidapi/pkg/testutil/containers"
)

func TestPublishRoundTripThroughBroker(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	broker := containers.GetManager().GetRedpanda(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	const topic = "nid.usage.it"
	pub, err := kafka.Dial(ctx, broker.Brokers, topic)
	require.NoError(t, err)
	defer pub.Close()

	rec, err := models.NewRecord(id.NewAPIKeyID(), id.NewPrincipalID(), "10.0.0.1", "curl/8.4.0", 1, http.StatusOK, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, pub.Publish(ctx, rec))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.Empty(t, fetches.Errors())
	var got []*kgo.Record
	fetches.EachRecord(func(r *kgo.Record) { got = append(got, r) })
	require.NotEmpty(t, got)

	var decoded models.Record
	require.NoError(t, json.Unmarshal(got[0].Value, &decoded))
	require.Equal(t, rec.ID, decoded.ID)
}
