package jobs

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPDispatcher — очередь на RabbitMQ. Каждая очередь объявляется
// durable при первой публикации, сообщения публикуются persistent
// через exchange по умолчанию.
type AMQPDispatcher struct {
	conn *amqp.Connection

	mu       sync.Mutex
	ch       *amqp.Channel
	declared map[string]bool
}

// NewAMQPDispatcher подключается к брокеру по url и открывает канал.
func NewAMQPDispatcher(url string) (*AMQPDispatcher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ошибка открытия канала RabbitMQ: %w", err)
	}
	return &AMQPDispatcher{conn: conn, ch: ch, declared: make(map[string]bool)}, nil
}

// Enqueue публикует задачу в очередь queue.
// Канал AMQP не потокобезопасен, публикация сериализуется мьютексом.
func (d *AMQPDispatcher) Enqueue(ctx context.Context, queue string, payload any) error {
	body, err := encode(queue, payload)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.declared[queue] {
		if _, err := d.ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("ошибка объявления очереди %s: %w", queue, err)
		}
		d.declared[queue] = true
	}

	err = d.ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("ошибка публикации в очередь %s: %w", queue, err)
	}
	return nil
}

// Ping сообщает, открыто ли соединение с брокером.
func (d *AMQPDispatcher) Ping(context.Context) error {
	if d.conn.IsClosed() {
		return amqp.ErrClosed
	}
	return nil
}

// Close закрывает канал и соединение.
func (d *AMQPDispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ch.Close(); err != nil && err != amqp.ErrClosed {
		d.conn.Close()
		return fmt.Errorf("ошибка закрытия канала RabbitMQ: %w", err)
	}
	return d.conn.Close()
}
