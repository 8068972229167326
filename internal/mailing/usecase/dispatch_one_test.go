package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shandysiswandi/jbcast/internal/mailing/entity"
	"github.com/shandysiswandi/jbcast/internal/pkg/goerror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchOne_Sends(t *testing.T) {
	// Arrange
	f := newFixture(t)
	f.seedAccount(t, nil)
	f.seedRecipient(10, func(r *entity.Recipient) {
		r.Cc = "c1@example.com, c2@example.com"
		r.Attachments = "https://files.example.com/a.pdf"
	})
	f.fetcher.result = entity.ResolveResult{ScratchDir: "/tmp/attempt-1"}

	// Act
	out, err := f.uc.DispatchOne(context.Background(), DispatchOneInput{RecipientID: 10})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, entity.OutcomeSent, out.Outcome)
	assert.Empty(t, out.Reason)

	rec := f.db.recipient(10)
	assert.Equal(t, entity.DeliveryStateSent, rec.State)
	assert.Equal(t, int32(1), rec.Attempts)
	assert.Equal(t, f.clock.now, *rec.LastAttemptAt)
	assert.Empty(t, rec.LastError)
	assert.Equal(t, int32(1), f.db.account(testOwner).SentToday)

	require.Len(t, f.transport.sent, 1)
	msg := f.transport.sent[0]
	assert.Equal(t, []string{"alice@example.com"}, msg.To)
	assert.Equal(t, []string{"c1@example.com", "c2@example.com"}, msg.Cc)
	assert.Equal(t, "sender@example.com", msg.From)
	assert.Equal(t, "app-password", f.transport.eps[0].Password)
	assert.Equal(t, [][]string{{"https://files.example.com/a.pdf"}}, f.fetcher.resolved)
	assert.Equal(t, []string{"/tmp/attempt-1"}, f.fetcher.cleaned)
	assert.Equal(t, 1, f.transport.closes)
}

func TestDispatchOne_AlreadySentIsNoop(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, nil)
	last := f.clock.now.Add(-time.Hour)
	f.seedRecipient(10, func(r *entity.Recipient) {
		r.State = entity.DeliveryStateSent
		r.Attempts = 2
		r.LastAttemptAt = &last
	})

	out, err := f.uc.DispatchOne(context.Background(), DispatchOneInput{RecipientID: 10})

	require.NoError(t, err)
	assert.Equal(t, entity.OutcomeAlreadySent, out.Outcome)
	rec := f.db.recipient(10)
	assert.Equal(t, int32(2), rec.Attempts)
	assert.Equal(t, last, *rec.LastAttemptAt)
	assert.Zero(t, f.transport.dials)
	assert.Zero(t, f.db.attemptCalls)
}

func TestDispatchOne_QuotaGateRefusesWithoutNetwork(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, func(a *entity.OutboundAccount) { a.SentToday = entity.DailySendLimit })
	f.seedRecipient(10, nil)

	out, err := f.uc.DispatchOne(context.Background(), DispatchOneInput{RecipientID: 10})

	require.NoError(t, err)
	assert.Equal(t, entity.OutcomeQuotaExhausted, out.Outcome)
	assert.Zero(t, f.transport.dials)
	assert.Zero(t, f.db.attemptCalls)
	assert.True(t, f.db.account(testOwner).RateLimited)
	assert.Equal(t, int32(0), f.db.recipient(10).Attempts)
}

func TestDispatchOne_RateLimitedLeavesEverythingUnchanged(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, func(a *entity.OutboundAccount) {
		a.SentToday = 120
		a.RateLimited = true
	})
	f.seedRecipient(10, nil)
	accBefore, recBefore := f.db.account(testOwner), f.db.recipient(10)

	out, err := f.uc.DispatchOne(context.Background(), DispatchOneInput{RecipientID: 10})

	require.NoError(t, err)
	assert.Equal(t, entity.OutcomeQuotaExhausted, out.Outcome)
	assert.Equal(t, accBefore, f.db.account(testOwner))
	assert.Equal(t, recBefore, f.db.recipient(10))
	assert.Zero(t, f.db.limitCalls)
	assert.Zero(t, f.transport.dials)
}

func TestDispatchOne_DailyResetBeforeGate(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, func(a *entity.OutboundAccount) {
		a.SentToday = entity.DailySendLimit
		a.RateLimited = true
		a.LastReset = f.clock.now.Add(-24 * time.Hour)
	})
	f.seedRecipient(10, nil)

	out, err := f.uc.DispatchOne(context.Background(), DispatchOneInput{RecipientID: 10})

	require.NoError(t, err)
	assert.Equal(t, entity.OutcomeSent, out.Outcome)
	acc := f.db.account(testOwner)
	assert.False(t, acc.RateLimited)
	assert.Equal(t, int32(1), acc.SentToday)
	assert.Equal(t, f.clock.now, acc.LastReset)
	assert.Equal(t, 1, f.db.resetCalls)
}

func TestDispatchOne_AttachmentFailureIsANote(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, nil)
	f.seedRecipient(10, func(r *entity.Recipient) { r.Attachments = "https://files.example.com/missing.pdf" })
	f.fetcher.result = entity.ResolveResult{
		Errors:     []string{"https://files.example.com/missing.pdf: unexpected status 404 Not Found"},
		ScratchDir: "/tmp/attempt-2",
	}

	out, err := f.uc.DispatchOne(context.Background(), DispatchOneInput{RecipientID: 10})

	require.NoError(t, err)
	assert.Equal(t, entity.OutcomeSent, out.Outcome)
	rec := f.db.recipient(10)
	assert.Equal(t, entity.DeliveryStateSent, rec.State)
	assert.Contains(t, rec.LastError, "https://files.example.com/missing.pdf")
	assert.Contains(t, rec.LastError, "404")
	assert.Equal(t, []string{"/tmp/attempt-2"}, f.fetcher.cleaned)
}

func TestDispatchOne_TransportFailure(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, nil)
	f.seedRecipient(10, nil)
	f.fetcher.result = entity.ResolveResult{Errors: []string{"https://x/a: timeout"}, ScratchDir: "/tmp/attempt-3"}
	f.transport.sendErr = errors.New("550 5.4.5 Daily user sending quota exceeded " + strings.Repeat("x", 600))

	out, err := f.uc.DispatchOne(context.Background(), DispatchOneInput{RecipientID: 10})

	require.NoError(t, err)
	assert.Equal(t, entity.OutcomeFailed, out.Outcome)

	rec := f.db.recipient(10)
	assert.Equal(t, entity.DeliveryStateFailed, rec.State)
	assert.Equal(t, int32(1), rec.Attempts)
	assert.True(t, strings.HasPrefix(rec.LastError, "attachment errors: https://x/a: timeout; 550 5.4.5"))
	assert.Len(t, []rune(rec.LastError), entity.MaxLastErrorLen)

	acc := f.db.account(testOwner)
	assert.True(t, acc.RateLimited)
	assert.Equal(t, int32(0), acc.SentToday)
	assert.Equal(t, []string{"/tmp/attempt-3"}, f.fetcher.cleaned)
	assert.Equal(t, 1, f.transport.closes)
}

func TestDispatchOne_DialFailureIsRecorded(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, nil)
	f.seedRecipient(10, nil)
	f.transport.dialErr = errors.New("smtp dial: connection refused")

	out, err := f.uc.DispatchOne(context.Background(), DispatchOneInput{RecipientID: 10})

	require.NoError(t, err)
	assert.Equal(t, entity.OutcomeFailed, out.Outcome)
	rec := f.db.recipient(10)
	assert.Equal(t, "smtp dial: connection refused", rec.LastError)
	assert.False(t, f.db.account(testOwner).RateLimited)
	assert.Empty(t, f.fetcher.resolved)
}

func TestDispatchOne_AttemptsNeverDecrease(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, nil)
	f.seedRecipient(10, nil)
	f.transport.sendErr = errors.New("451 temporary failure")

	var last int32
	for range 3 {
		_, err := f.uc.DispatchOne(context.Background(), DispatchOneInput{RecipientID: 10})
		require.NoError(t, err)
		got := f.db.recipient(10).Attempts
		assert.Greater(t, got, last)
		last = got
	}

	f.transport.sendErr = nil
	out, err := f.uc.DispatchOne(context.Background(), DispatchOneInput{RecipientID: 10})
	require.NoError(t, err)
	assert.Equal(t, entity.OutcomeSent, out.Outcome)
	assert.Equal(t, int32(4), f.db.recipient(10).Attempts)
	assert.Empty(t, f.db.recipient(10).LastError)

	out, err = f.uc.DispatchOne(context.Background(), DispatchOneInput{RecipientID: 10})
	require.NoError(t, err)
	assert.Equal(t, entity.OutcomeAlreadySent, out.Outcome)
	assert.Equal(t, int32(4), f.db.recipient(10).Attempts)
}

func TestDispatchOne_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.DispatchOne(context.Background(), DispatchOneInput{})
	assert.Equal(t, goerror.CodeInvalidInput, goerror.CodeOf(err))

	_, err = f.uc.DispatchOne(context.Background(), DispatchOneInput{RecipientID: 404})
	assert.Equal(t, goerror.CodeNotFound, goerror.CodeOf(err))

	f.seedRecipient(10, nil)
	_, err = f.uc.DispatchOne(context.Background(), DispatchOneInput{RecipientID: 10})
	assert.Equal(t, goerror.CodeNotFound, goerror.CodeOf(err), "no outbound account")
	assert.Zero(t, f.db.attemptCalls)
}
