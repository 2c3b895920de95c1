package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// Queue is the durable delayed producer side. Delivery is at-least-once; the
// dispatch state machine is responsible for making duplicates harmless.
type Queue interface {
	Enqueue(job DispatchJob, delay time.Duration) error
}

// ProcessFunc handles one job delivery. A non-zero requeueAfter asks the
// queue to redeliver the same payload later (pause polling, quota deferral).
// A non-nil error triggers the bounded retry/backoff path.
type ProcessFunc func(ctx context.Context, job DispatchJob) (requeueAfter time.Duration, err error)

const (
	exchangeName = "campaign.dispatch"
	queueName    = "campaign.dispatch"
	routingKey   = "send-message"

	maxAttempts  = 3
	retryBackoff = 5 * time.Second

	retryCountHeader = "x-retry-count"
	delayHeader      = "x-delay"
)

// AMQPQueue publishes through a RabbitMQ delayed-message exchange
// (x-delayed-message plugin), which honors a per-message x-delay header.
type AMQPQueue struct {
	ch  *amqp.Channel
	log *zap.Logger
}

func NewAMQPQueue(conn *amqp.Connection, log *zap.Logger) (*AMQPQueue, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	err = ch.ExchangeDeclare(
		exchangeName,
		"x-delayed-message",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		amqp.Table{"x-delayed-type": "direct"},
	)
	if err != nil {
		return nil, err
	}

	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, err
	}

	if err := ch.QueueBind(q.Name, routingKey, exchangeName, false, nil); err != nil {
		return nil, err
	}

	return &AMQPQueue{ch: ch, log: log}, nil
}

func (q *AMQPQueue) Enqueue(job DispatchJob, delay time.Duration) error {
	return q.publish(job, delay, 0)
}

func (q *AMQPQueue) publish(job DispatchJob, delay time.Duration, retryCount int) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}

	headers := amqp.Table{}
	if delay > 0 {
		headers[delayHeader] = delay.Milliseconds()
	}
	if retryCount > 0 {
		headers[retryCountHeader] = int32(retryCount)
	}

	return q.ch.Publish(exchangeName, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Headers:      headers,
		Body:         body,
	})
}

// Consume pulls deliveries until ctx is done, feeding each job to handle.
// Outcomes:
//   - handle ok, no requeue: ack, job finished.
//   - handle asks for requeue: republish with the new delay, then ack.
//   - handle fails: republish with linear backoff up to maxAttempts, then
//     give up (the lead already carries the failure reason).
func (q *AMQPQueue) Consume(ctx context.Context, handle ProcessFunc) error {
	msgs, err := q.ch.Consume(
		queueName,
		"",    // consumer tag
		false, // auto-ack off: ack only after the outcome is decided
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return amqp.ErrClosed
			}
			q.handleDelivery(ctx, d, handle)
		}
	}
}

func (q *AMQPQueue) handleDelivery(ctx context.Context, d amqp.Delivery, handle ProcessFunc) {
	var job DispatchJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		q.log.Error("dropping malformed job payload", zap.Error(err))
		d.Ack(false)
		return
	}

	requeueAfter, err := handle(ctx, job)
	switch {
	case err != nil:
		attempt := retryCount(d.Headers) + 1
		if attempt >= maxAttempts {
			q.log.Warn("job failed permanently",
				zap.String("lead_id", job.LeadID),
				zap.Int("attempts", attempt),
				zap.Error(err))
			d.Ack(false)
			return
		}
		backoff := time.Duration(attempt) * retryBackoff
		if pubErr := q.publish(job, backoff, attempt); pubErr != nil {
			q.log.Error("failed to republish for retry, requeueing raw", zap.Error(pubErr))
			d.Nack(false, true)
			return
		}
		q.log.Info("job scheduled for retry",
			zap.String("lead_id", job.LeadID),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err))
		d.Ack(false)

	case requeueAfter > 0:
		if pubErr := q.publish(job, requeueAfter, retryCount(d.Headers)); pubErr != nil {
			q.log.Error("failed to reschedule job, requeueing raw", zap.Error(pubErr))
			d.Nack(false, true)
			return
		}
		d.Ack(false)

	default:
		d.Ack(false)
	}
}

func retryCount(headers amqp.Table) int {
	switch v := headers[retryCountHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

var _ Queue = (*AMQPQueue)(nil)
