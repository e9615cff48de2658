package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// producer is the slice of the Kafka producer the sink needs.
type producer interface {
	Publish(ctx context.Context, key, value []byte) error
}

// KafkaSink exports audit events to a Kafka topic. Events are keyed by
// domain ID so each domain's history stays ordered within a partition.
type KafkaSink struct {
	producer producer
}

// NewKafkaSink constructs a sink over an existing producer.
func NewKafkaSink(p producer) *KafkaSink {
	return &KafkaSink{producer: p}
}

// kafkaPayload is the wire form of an exported audit event.
type kafkaPayload struct {
	Timestamp  string `json:"timestamp"`
	Category   string `json:"category"`
	Action     string `json:"action"`
	DomainID   string `json:"domain_id,omitempty"`
	DomainName string `json:"domain_name,omitempty"`
	Detail     string `json:"detail,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}

func (s *KafkaSink) Publish(ctx context.Context, event Event) error {
	payload := kafkaPayload{
		Timestamp:  event.Timestamp.Format(time.RFC3339Nano),
		Category:   string(event.Category),
		Action:     event.Action,
		DomainName: event.DomainName,
		Detail:     event.Detail,
		RequestID:  event.RequestID,
	}

	var key []byte
	if !event.DomainID.IsNil() {
		payload.DomainID = event.DomainID.String()
		key = []byte(payload.DomainID)
	}

	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}
	return s.producer.Publish(ctx, key, value)
}
