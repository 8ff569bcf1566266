package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/harborstay/api/internal/services"
)

func TestPubSubTransactionPublisherPublishesMessage(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	topic, err := client.CreateTopic(ctx, "transaction-events")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubTransactionPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubTransactionPublisher: %v", err)
	}

	event := services.TransactionEvent{
		Type:          "booking.payment_confirmed",
		TransactionID: "txn-1",
		ListingID:     "listing-1",
		CustomerID:    "customer-1",
		ProviderID:    "provider-1",
		OccurredAt:    time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Attributes:    map[string]string{"paymentIntentId": "pi_123"},
	}

	if err := publisher.PublishTransactionEvent(ctx, event); err != nil {
		t.Fatalf("PublishTransactionEvent: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload services.TransactionEvent
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.TransactionID != event.TransactionID || payload.Type != event.Type {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["type"]; attr != event.Type {
		t.Fatalf("expected type attribute, got %q", attr)
	}
	if attr := messages[0].Attributes["transactionId"]; attr != "txn-1" {
		t.Fatalf("expected transactionId attribute, got %q", attr)
	}
}

func TestNewPubSubTransactionPublisherRequiresTopic(t *testing.T) {
	if _, err := NewPubSubTransactionPublisher(nil); err == nil {
		t.Fatal("expected error for nil topic")
	}
}
