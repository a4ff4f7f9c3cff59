//go:build integration

package rabbitmq_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"storefront/pkg/rabbitmq"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupBroker(t *testing.T) string {
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "rabbitmq:3-alpine",
			ExposedPorts: []string{"5672/tcp"},
			WaitingFor:   wait.ForLog("Server startup complete").WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "start rabbitmq container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5672")
	require.NoError(t, err)
	return fmt.Sprintf("amqp://guest:guest@%s:%s/", host, port.Port())
}

func TestPublishAndConsume(t *testing.T) {
	client, err := rabbitmq.NewClient(rabbitmq.Config{URL: setupBroker(t), Queue: "order_events_test"})
	require.NoError(t, err)
	defer client.Close()

	received := make(chan string, 2)
	require.NoError(t, client.ConsumeOrderEvents(func(body []byte) error {
		received <- string(body)
		if string(body) == "poison" {
			return errors.New("cannot decode")
		}
		return nil
	}))

	require.NoError(t, client.Publish([]byte("poison")))
	require.NoError(t, client.Publish([]byte(`{"type":"order.created"}`)))

	var got []string
	for len(got) < 2 {
		select {
		case body := <-received:
			got = append(got, body)
		case <-time.After(10 * time.Second):
			t.Fatalf("timed out waiting for messages, got %v", got)
		}
	}
	// The rejected message is not requeued, so exactly two deliveries arrive.
	assert.Equal(t, []string{"poison", `{"type":"order.created"}`}, got)
	select {
	case body := <-received:
		t.Fatalf("unexpected redelivery of %q", body)
	case <-time.After(500 * time.Millisecond):
	}
}
