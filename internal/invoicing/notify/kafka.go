package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/twmb/franz-go/pkg/kgo"

	"fakturo/internal/invoicing/models"
)

// Kafka publishes invoice-created events to the external event topic.
// Records are keyed by payment id so replays for the same payment stay in
// partition order.
type Kafka struct {
	client *kgo.Client
	topic  string
}

// NewKafka creates a Kafka notifier on the given topic.
func NewKafka(client *kgo.Client, topic string) *Kafka {
	return &Kafka{client: client, topic: topic}
}

func (k *Kafka) InvoiceCreated(ctx context.Context, event models.InvoiceCreated) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal invoice created event: %w", err)
	}
	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(strconv.FormatInt(event.PaymentID, 10)),
		Value: payload,
	}
	if err := k.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce invoice created event: %w", err)
	}
	return nil
}
