package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"gulfquotes/internal/metrics"
)

const emailQueueName = "gulfquotes.email"

// AMQPQueue publishes email jobs to a durable RabbitMQ queue and consumes them
// in the same process. A failed job is requeued once, then dropped.
type AMQPQueue struct {
	conn    *amqp.Connection
	pub     *amqp.Channel
	sub     *amqp.Channel
	pubMu   sync.Mutex
	queue   string
	mailer  Mailer
	log     logrus.FieldLogger
	metrics *metrics.Metrics

	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewAMQPQueue(url string, mailer Mailer, log logrus.FieldLogger, m *metrics.Metrics) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	q := &AMQPQueue{
		conn:    conn,
		queue:   emailQueueName,
		mailer:  mailer,
		log:     log,
		metrics: m,
	}
	if err := q.setup(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := q.start(); err != nil {
		q.Close()
		return nil, err
	}
	return q, nil
}

func (q *AMQPQueue) setup() error {
	var err error
	if q.pub, err = q.conn.Channel(); err != nil {
		return fmt.Errorf("failed to open publish channel: %w", err)
	}
	if q.sub, err = q.conn.Channel(); err != nil {
		return fmt.Errorf("failed to open consume channel: %w", err)
	}

	_, err = q.pub.QueueDeclare(
		q.queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	// 一次只取一条，失败重投不会堆积在本进程
	if err := q.sub.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}
	return nil
}

func (q *AMQPQueue) start() error {
	msgs, err := q.sub.Consume(
		q.queue,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register a consumer: %w", err)
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for d := range msgs {
			q.handle(d)
		}
	}()
	return nil
}

func (q *AMQPQueue) handle(d amqp.Delivery) {
	var job EmailJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		q.log.WithError(err).Error("discarding malformed email job")
		_ = d.Nack(false, false)
		return
	}

	err := q.mailer.Send(context.Background(), job)
	switch {
	case err == nil:
		if q.metrics != nil {
			q.metrics.EmailsSent.Inc()
		}
		_ = d.Ack(false)
	case errors.Is(err, ErrMailDisabled):
		_ = d.Ack(false)
	case !d.Redelivered:
		q.log.WithError(err).WithField("to", job.To).Warn("email send failed, requeueing")
		_ = d.Nack(false, true)
	default:
		q.log.WithError(err).WithField("to", job.To).Error("email dropped after redelivery")
		if q.metrics != nil {
			q.metrics.EmailsFailed.Inc()
		}
		_ = d.Nack(false, false)
	}
}

func (q *AMQPQueue) Enqueue(ctx context.Context, job EmailJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}

	q.pubMu.Lock()
	defer q.pubMu.Unlock()
	return q.pub.PublishWithContext(ctx,
		"",
		q.queue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
}

func (q *AMQPQueue) Close() {
	q.closeOnce.Do(func() {
		if q.sub != nil {
			_ = q.sub.Close()
		}
		if q.pub != nil {
			_ = q.pub.Close()
		}
		if q.conn != nil {
			_ = q.conn.Close()
		}
		q.wg.Wait()
	})
}
