// Package broker abstracts the message transport used by the distributed
// triage mode and provides in-memory and Redpanda implementations.
package broker

import "context"

// Broker publishes and consumes triage messages.
type Broker interface {
	// Publish sends a message to a topic. The key selects the partition on
	// Kafka-compatible brokers; the in-memory broker ignores it.
	Publish(ctx context.Context, topic string, key string, value []byte) error

	// Subscribe returns a channel of messages for a topic. groupID coordinates
	// consumer groups on Kafka-compatible brokers; the in-memory broker
	// ignores it.
	Subscribe(ctx context.Context, topic string, groupID string) (<-chan Message, error)

	// Close shuts down the broker connection gracefully.
	Close() error
}

// Message is one consumed record.
type Message struct {
	Topic     string
	Key       string
	Value     []byte
	Offset    int64
	Partition int32
	Timestamp int64
}
