package queue

import (
	"log"
	"sync"

	"github.com/streadway/amqp"
)

// TopicCampaignDispatch carries due-campaign ids from the scheduler poll to
// the dispatch consumer.
const TopicCampaignDispatch = "campaign_dispatch"

// Queue interface
type Queue interface {
	Publish(topic string, payload []byte) error
	Subscribe(topic string, handler func(payload []byte) error) error
	Close() error
}

// InMemoryQueue delivers synchronously to subscribers. Used by tests and
// single-process runs where RabbitMQ is not available.
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]func(payload []byte) error
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		handlers: make(map[string][]func(payload []byte) error),
	}
}

func (q *InMemoryQueue) Publish(topic string, payload []byte) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	for _, handler := range handlers {
		if err := handler(payload); err != nil {
			log.Printf("handler for %s failed: %v\n", topic, err)
		}
	}
	return nil
}

func (q *InMemoryQueue) Subscribe(topic string, handler func(payload []byte) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

func (q *InMemoryQueue) Close() error { return nil }

// AMQPQueue is the RabbitMQ-backed implementation used between the cron
// poller and the dispatch worker.
type AMQPQueue struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPQueue(url string) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &AMQPQueue{conn: conn, ch: ch}, nil
}

func (q *AMQPQueue) Publish(topic string, payload []byte) error {
	queue, err := q.ch.QueueDeclare(topic, true, false, false, false, nil)
	if err != nil {
		return err
	}
	return q.ch.Publish("", queue.Name, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        payload,
	})
}

const (
	maxDeliveryAttempts = 3
	retryCountHeader    = "x-retry-count"
)

// nextRetry returns the attempt count to stamp on a requeued copy of a
// failed delivery, and whether the message is out of attempts.
func nextRetry(headers amqp.Table) (int32, bool) {
	var count int32
	if v, ok := headers[retryCountHeader].(int32); ok {
		count = v
	}
	return count + 1, count+1 >= maxDeliveryAttempts
}

// Subscribe consumes with manual acks. A failed handler requeues a copy of
// the message with an incremented retry-count header; after three failed
// attempts the delivery is dropped. A plain nack would redeliver the
// original headers untouched and the bound would never be reached.
func (q *AMQPQueue) Subscribe(topic string, handler func(payload []byte) error) error {
	queue, err := q.ch.QueueDeclare(topic, true, false, false, false, nil)
	if err != nil {
		return err
	}
	msgs, err := q.ch.Consume(queue.Name, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	go func() {
		for d := range msgs {
			err := handler(d.Body)
			if err == nil {
				d.Ack(false)
				continue
			}
			log.Println("handler failed:", err)

			retry, exhausted := nextRetry(d.Headers)
			if exhausted {
				log.Printf("dropping message after %d attempts\n", maxDeliveryAttempts)
				d.Ack(false)
				continue
			}
			pub := amqp.Publishing{
				ContentType: "application/json",
				Body:        d.Body,
				Headers:     amqp.Table{retryCountHeader: retry},
			}
			if perr := q.ch.Publish("", queue.Name, false, false, pub); perr != nil {
				log.Println("failed to requeue message:", perr)
				d.Nack(false, true)
				continue
			}
			d.Ack(false)
		}
	}()
	return nil
}

func (q *AMQPQueue) Close() error {
	if err := q.ch.Close(); err != nil {
		return err
	}
	return q.conn.Close()
}

var (
	_ Queue = (*InMemoryQueue)(nil)
	_ Queue = (*AMQPQueue)(nil)
)
