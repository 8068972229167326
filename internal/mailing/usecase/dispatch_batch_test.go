package usecase

import (
	"context"
	"testing"

	"github.com/shandysiswandi/jbcast/internal/mailing/entity"
	"github.com/shandysiswandi/jbcast/internal/pkg/goerror"
	"github.com/shandysiswandi/jbcast/internal/pkg/goroutine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchBatch_QueuesOnlyUnsent(t *testing.T) {
	// Arrange
	f := newFixture(t)
	f.seedAccount(t, nil)
	f.seedRecipient(10, nil)
	f.seedRecipient(11, func(r *entity.Recipient) { r.State = entity.DeliveryStateSent; r.Attempts = 1 })
	f.seedRecipient(12, func(r *entity.Recipient) { r.State = entity.DeliveryStateFailed; r.Attempts = 2 })

	// Act
	out, err := f.uc.DispatchBatch(context.Background(), DispatchBatchInput{BatchID: 1})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 2, out.Queued)
	assert.False(t, out.NothingPending)
	assert.Equal(t, 2, f.pool.tasks)
	assert.Equal(t, entity.DeliveryStateSent, f.db.recipient(10).State)
	assert.Equal(t, int32(1), f.db.recipient(11).Attempts)
	assert.Equal(t, int32(3), f.db.recipient(12).Attempts)
	assert.Len(t, f.transport.sent, 2)
}

func TestDispatchBatch_NothingPendingDoesNotTouchAccount(t *testing.T) {
	f := newFixture(t)
	f.seedRecipient(10, func(r *entity.Recipient) { r.State = entity.DeliveryStateSent })

	out, err := f.uc.DispatchBatch(context.Background(), DispatchBatchInput{BatchID: 1})

	require.NoError(t, err)
	assert.True(t, out.NothingPending)
	assert.Zero(t, out.Queued)
	assert.Zero(t, f.pool.tasks)
	assert.Zero(t, f.db.resetCalls)
	assert.Zero(t, f.db.limitCalls)
}

func TestDispatchBatch_SchedulingFailureLeavesRecipientsAlone(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, nil)
	f.seedRecipient(10, nil)
	f.seedRecipient(11, nil)
	f.pool.err = goroutine.ErrQueueFull

	out, err := f.uc.DispatchBatch(context.Background(), DispatchBatchInput{BatchID: 1})

	assert.Nil(t, out)
	assert.Equal(t, goerror.CodeTooManyRequest, goerror.CodeOf(err))
	assert.ErrorIs(t, err, goroutine.ErrQueueFull)
	assert.Zero(t, f.db.attemptCalls)
	assert.Equal(t, entity.DeliveryStatePending, f.db.recipient(10).State)

	// the lock is released on failure so a later trigger can retry
	f.pool.err = nil
	out, err = f.uc.DispatchBatch(context.Background(), DispatchBatchInput{BatchID: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Queued)
}

func TestDispatchBatch_ConcurrentRetriggerIsConflict(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, nil)
	f.seedRecipient(10, nil)

	_, err := f.uc.DispatchBatch(context.Background(), DispatchBatchInput{BatchID: 1})
	require.NoError(t, err)

	_, err = f.uc.DispatchBatch(context.Background(), DispatchBatchInput{BatchID: 1})
	assert.Equal(t, goerror.CodeConflict, goerror.CodeOf(err))
}

func TestDispatchBatch_WithoutDedupe(t *testing.T) {
	f := newFixture(t)
	f.uc.dedupe = nil
	f.seedAccount(t, nil)
	f.seedRecipient(10, nil)

	for range 2 {
		_, err := f.uc.DispatchBatch(context.Background(), DispatchBatchInput{BatchID: 1})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, f.pool.tasks, "second trigger finds nothing pending")
}

func TestDispatchBatch_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.DispatchBatch(context.Background(), DispatchBatchInput{})
	assert.Equal(t, goerror.CodeInvalidInput, goerror.CodeOf(err))

	_, err = f.uc.DispatchBatch(context.Background(), DispatchBatchInput{BatchID: 99})
	assert.Equal(t, goerror.CodeNotFound, goerror.CodeOf(err))

	f.seedRecipient(10, nil)
	_, err = f.uc.DispatchBatch(context.Background(), DispatchBatchInput{BatchID: 1, OwnerID: 8})
	assert.Equal(t, goerror.CodeNotFound, goerror.CodeOf(err), "batch of another owner")
}

func TestDispatchBatch_BatchLargerThanQueueOnIdlePool(t *testing.T) {
	// Arrange
	f := newFixture(t)
	pool := goroutine.NewPool(goroutine.PoolConfig{Workers: 2, QueueSize: 2})
	f.uc.pool = pool
	f.seedAccount(t, nil)
	for id := int64(10); id < 15; id++ {
		f.seedRecipient(id, nil)
	}

	// Act
	out, err := f.uc.DispatchBatch(context.Background(), DispatchBatchInput{BatchID: 1})
	require.NoError(t, err)
	require.NoError(t, pool.Close(context.Background()))

	// Assert
	assert.Equal(t, 5, out.Queued)
	assert.Len(t, f.transport.sent, 5)
	for id := int64(10); id < 15; id++ {
		assert.Equal(t, entity.DeliveryStateSent, f.db.recipient(id).State)
	}
	assert.Zero(t, pool.Stats().Rejected)
}
