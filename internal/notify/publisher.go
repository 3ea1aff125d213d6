// Package notify publishes confirmation events to RabbitMQ for the email
// worker. Publishing is fire-and-forget: a committed payment transition is
// never rolled back because the broker was unreachable.
package notify

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/nationalninesgolf/api/internal/entry"
	"github.com/nationalninesgolf/api/internal/order"
)

// Queue names consumed by the email worker.
const (
	QueueEntryPaid = "entry.payment_confirmed"
	QueueOrderPaid = "order.payment_confirmed"
)

const publishTimeout = 5 * time.Second

// EntryPaidEvent carries enough for the confirmation email without a
// read-back from the worker.
type EntryPaidEvent struct {
	EntryID      string    `json:"entry_id"`
	Event        string    `json:"event"`
	ClubName     string    `json:"club_name"`
	Player1Name  string    `json:"player1_name"`
	Player1Email string    `json:"player1_email"`
	Player2Name  string    `json:"player2_name"`
	Player2Email string    `json:"player2_email"`
	EntryFee     float64   `json:"entry_fee"`
	PaidAt       time.Time `json:"paid_at"`
}

type OrderPaidEvent struct {
	OrderID        string    `json:"order_id"`
	OrderNumber    string    `json:"order_number"`
	CustomerName   string    `json:"customer_name"`
	CustomerEmail  string    `json:"customer_email"`
	DeliveryMethod string    `json:"delivery_method"`
	Total          float64   `json:"total"`
	PaidAt         time.Time `json:"paid_at"`
}

// Publisher satisfies entry.Notifier and order.Notifier.
type Publisher struct {
	url string
}

func NewPublisher(url string) *Publisher {
	return &Publisher{url: url}
}

func (p *Publisher) EntryPaid(ctx context.Context, e *entry.Entry) {
	paidAt := time.Now().UTC()
	if e.PaidAt != nil {
		paidAt = *e.PaidAt
	}
	p.publishAsync(QueueEntryPaid, EntryPaidEvent{
		EntryID:      e.ID.String(),
		Event:        e.Event,
		ClubName:     e.ClubName,
		Player1Name:  e.Player1Name,
		Player1Email: e.Player1Email,
		Player2Name:  e.Player2Name,
		Player2Email: e.Player2Email,
		EntryFee:     e.EntryFee,
		PaidAt:       paidAt,
	})
}

func (p *Publisher) OrderPaid(ctx context.Context, o *order.Order) {
	paidAt := time.Now().UTC()
	if o.PaidAt != nil {
		paidAt = *o.PaidAt
	}
	p.publishAsync(QueueOrderPaid, OrderPaidEvent{
		OrderID:        o.ID.String(),
		OrderNumber:    o.OrderNumber,
		CustomerName:   o.CustomerName,
		CustomerEmail:  o.CustomerEmail,
		DeliveryMethod: string(o.DeliveryMethod),
		Total:          o.Total,
		PaidAt:         paidAt,
	})
}

// publishAsync detaches from the request context so a slow broker never
// blocks the webhook response. Failures are logged and dropped.
func (p *Publisher) publishAsync(queue string, event any) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := p.publish(ctx, queue, event); err != nil {
			log.Error().Err(err).Str("queue", queue).Msg("notify: failed to publish event")
		}
	}()
}

func (p *Publisher) publish(ctx context.Context, queue string, event any) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	// Durable queue so confirmations survive a broker restart.
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}
