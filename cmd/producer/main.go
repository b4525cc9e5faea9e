package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"go-redeliver/internal/service"
	"go-redeliver/pkg/models"

	"github.com/google/uuid"
	kafka "github.com/segmentio/kafka-go"
)

// Publishes sample orders to the source topic, mostly for driving the
// consumer by hand. One in every `bad` orders carries a negative amount so
// it fails validation and lands on the dead-letter topic.
func main() {
	brokers := flag.String("brokers", "localhost:9092", "comma-separated broker list")
	topic := flag.String("topic", "orders", "destination topic")
	count := flag.Int("count", 10, "number of orders to publish")
	bad := flag.Int("bad", 5, "every n-th order gets an invalid amount (0 disables)")
	flag.Parse()

	writer := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(*brokers, ",")...),
		Topic:        *topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
	}
	defer writer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for i := 1; i <= *count; i++ {
		order := service.Order{
			OrderID:   fmt.Sprintf("U%d", i),
			ArticleID: fmt.Sprintf("A%d", i),
			Amount:    i,
		}
		if *bad > 0 && i%*bad == 0 {
			order.Amount = -order.Amount
		}

		value, err := json.Marshal(order)
		if err != nil {
			log.Fatalf("failed to marshal order: %v", err)
		}

		msg := kafka.Message{
			Key:   []byte(order.OrderID),
			Value: value,
			Headers: []kafka.Header{
				{Key: models.HeaderMessageID, Value: []byte(uuid.NewString())},
			},
			Time: time.Now(),
		}

		if err := writer.WriteMessages(ctx, msg); err != nil {
			log.Fatalf("failed to publish order %s: %v", order.OrderID, err)
		}
		fmt.Printf("published order %s (amount=%d)\n", order.OrderID, order.Amount)
	}
}
