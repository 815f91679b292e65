//go:build integration

package integration_test

import (
	"context"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	mongoadapter "github.com/couchcryptid/outage-verify-service/internal/adapter/mongo"
	redisadapter "github.com/couchcryptid/outage-verify-service/internal/adapter/redis"
)

var discard = slog.New(slog.DiscardHandler)

// startMongo runs a single-node replica set so transactions are available.
func startMongo(ctx context.Context, t *testing.T) *mongoadapter.Store {
	t.Helper()

	ctr, err := tcmongo.Run(ctx, "mongo:7", tcmongo.WithReplicaSet("rs0"))
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err, "start mongo")

	uri, err := ctr.ConnectionString(ctx)
	require.NoError(t, err)

	store, err := mongoadapter.Connect(ctx, uri, "outages_test")
	require.NoError(t, err, "connect mongo")
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	require.NoError(t, store.EnsureIndexes(ctx))
	return store
}

func startRedis(ctx context.Context, t *testing.T) *goredis.Client {
	t.Helper()

	ctr, err := tcredis.Run(ctx, "redis:7-alpine")
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err, "start redis")

	uri, err := ctr.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := goredis.ParseURL(uri)
	require.NoError(t, err)

	client, err := redisadapter.NewClient(ctx, opts.Addr, opts.Password, opts.DB, discard)
	require.NoError(t, err, "connect redis")
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()

	ctr, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("outage-test"))
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err, "start kafka")

	brokers, err := ctr.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cc, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cc.Close()

	require.NoError(t, cc.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     3,
		ReplicationFactor: 1,
	}))
	// Give the broker a moment to elect partition leaders.
	time.Sleep(time.Second)
}
