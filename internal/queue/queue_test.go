package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAcknowledger struct {
	acks    int
	nacks   int
	rejects int
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	a.acks++
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	a.nacks++
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	a.rejects++
	return nil
}

func TestRetryCountHeaderTypes(t *testing.T) {
	// The broker hands x-retry-count back as whatever integer width it
	// picked on the wire.
	assert.Equal(t, 2, retryCount(amqp.Table{retryCountHeader: int32(2)}))
	assert.Equal(t, 2, retryCount(amqp.Table{retryCountHeader: int64(2)}))
	assert.Equal(t, 2, retryCount(amqp.Table{retryCountHeader: int(2)}))
	assert.Equal(t, 0, retryCount(amqp.Table{}))
	assert.Equal(t, 0, retryCount(amqp.Table{retryCountHeader: "2"}))
	assert.Equal(t, 0, retryCount(nil))
}

func TestHandleDeliveryAcksMalformedPayload(t *testing.T) {
	q := &AMQPQueue{log: zap.NewNop()}
	ack := &fakeAcknowledger{}

	called := false
	q.handleDelivery(context.Background(), amqp.Delivery{
		Acknowledger: ack,
		Body:         []byte("{not json"),
	}, func(ctx context.Context, job DispatchJob) (time.Duration, error) {
		called = true
		return 0, nil
	})

	assert.False(t, called)
	assert.Equal(t, 1, ack.acks)
	assert.Zero(t, ack.nacks)
}

func TestHandleDeliveryAcksOnSuccess(t *testing.T) {
	q := &AMQPQueue{log: zap.NewNop()}
	ack := &fakeAcknowledger{}

	job := DispatchJob{LeadID: "lead-1", CampaignID: "camp-1"}
	body, err := json.Marshal(job)
	require.NoError(t, err)

	var got DispatchJob
	q.handleDelivery(context.Background(), amqp.Delivery{
		Acknowledger: ack,
		Body:         body,
	}, func(ctx context.Context, j DispatchJob) (time.Duration, error) {
		got = j
		return 0, nil
	})

	assert.Equal(t, "lead-1", got.LeadID)
	assert.Equal(t, 1, ack.acks)
}

func TestHandleDeliveryGivesUpAfterMaxAttempts(t *testing.T) {
	q := &AMQPQueue{log: zap.NewNop()}
	ack := &fakeAcknowledger{}

	body, err := json.Marshal(DispatchJob{LeadID: "lead-1"})
	require.NoError(t, err)

	// Two prior attempts recorded: this failure is the third and last, so
	// the job is acked away instead of republished.
	q.handleDelivery(context.Background(), amqp.Delivery{
		Acknowledger: ack,
		Body:         body,
		Headers:      amqp.Table{retryCountHeader: int32(maxAttempts - 1)},
	}, func(ctx context.Context, j DispatchJob) (time.Duration, error) {
		return 0, errors.New("instance disconnected")
	})

	assert.Equal(t, 1, ack.acks)
	assert.Zero(t, ack.nacks)
}

func TestDispatchJobRoundTripsThroughHeadersAndBody(t *testing.T) {
	job := DispatchJob{
		LeadID:       "lead-1",
		LeadName:     "Ana",
		CampaignID:   "camp-1",
		TenantID:     "tenant-1",
		Recipient:    "5561998655077",
		Message:      "Hi {{name}}!",
		Variations:   []string{"a", "b"},
		InstanceName: "inst-1",
		DailyLimit:   40,
		IsFirst:      true,
	}
	body, err := json.Marshal(job)
	require.NoError(t, err)

	var decoded DispatchJob
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, job, decoded)
}
