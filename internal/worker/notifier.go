package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"roombook/internal/domain"
	"roombook/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

// notification is the body delivered to every notifier.
type notification struct {
	TaskID    int64           `json:"task_id"`
	EventType string          `json:"event_type"`
	BookingID int64           `json:"booking_id"`
	Payload   json.RawMessage `json:"payload"`
}

func encodeNotification(task *models.NotificationTask) ([]byte, error) {
	payload := json.RawMessage(task.Payload)
	if !json.Valid(payload) {
		return nil, errors.New("payload is not valid JSON")
	}
	return json.Marshal(notification{
		TaskID:    task.ID,
		EventType: task.EventType,
		BookingID: task.BookingID,
		Payload:   payload,
	})
}

// WebhookNotifier POSTs each notification to a fixed URL. Any non-2xx
// answer counts as a failed delivery.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string, client *http.Client) *WebhookNotifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookNotifier{url: url, client: client}
}

func (n *WebhookNotifier) Notify(ctx context.Context, task *models.NotificationTask) error {
	body, err := encodeNotification(task)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", task.EventType)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// AMQPNotifier publishes notifications to a topic exchange. The routing key
// is the event type unless a fixed one is configured.
type AMQPNotifier struct {
	url        string
	exchange   string
	routingKey string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPNotifier(url, exchange, routingKey string) (*AMQPNotifier, error) {
	n := &AMQPNotifier{url: url, exchange: exchange, routingKey: routingKey}
	if err := n.connect(); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *AMQPNotifier) connect() error {
	conn, err := amqp.Dial(n.url)
	if err != nil {
		return fmt.Errorf("connect to AMQP: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open AMQP channel: %w", err)
	}
	if err := ch.ExchangeDeclare(n.exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare exchange %s: %w", n.exchange, err)
	}
	n.conn, n.ch = conn, ch
	return nil
}

func (n *AMQPNotifier) Notify(ctx context.Context, task *models.NotificationTask) error {
	body, err := encodeNotification(task)
	if err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.conn == nil || n.conn.IsClosed() {
		if err := n.connect(); err != nil {
			return err
		}
	}

	key := n.routingKey
	if key == "" {
		key = task.EventType
	}
	err = n.ch.PublishWithContext(ctx, n.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    fmt.Sprintf("notification-%d", task.ID),
		Type:         task.EventType,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", n.exchange, err)
	}
	return nil
}

func (n *AMQPNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.ch != nil {
		n.ch.Close()
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}

// Notifiers delivers to every notifier in order and fails on the first error.
type Notifiers []domain.Notifier

func (ns Notifiers) Notify(ctx context.Context, task *models.NotificationTask) error {
	for _, n := range ns {
		if err := n.Notify(ctx, task); err != nil {
			return err
		}
	}
	return nil
}
