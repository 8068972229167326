package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/jbcast/internal/mailing/entity"
	"github.com/shandysiswandi/jbcast/internal/pkg/config"
	"github.com/shandysiswandi/jbcast/internal/pkg/goerror"
	"github.com/shandysiswandi/jbcast/internal/pkg/goroutine"
	"github.com/shandysiswandi/jbcast/internal/pkg/idempotency"
	"github.com/shandysiswandi/jbcast/internal/pkg/instrument"
	"github.com/shandysiswandi/jbcast/internal/pkg/mail"
	"github.com/shandysiswandi/jbcast/internal/pkg/secret"
	"github.com/shandysiswandi/jbcast/internal/pkg/storage"
	"github.com/shandysiswandi/jbcast/internal/pkg/validator"
	"github.com/stretchr/testify/require"
)

var testKey = bytes.Repeat([]byte{7}, 32)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type seqID struct {
	mu   sync.Mutex
	next int64
}

func (g *seqID) Generate() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return 1000 + g.next
}

type fakeDB struct {
	mu         sync.Mutex
	batches    map[int64]*entity.Batch
	recipients map[int64]*entity.Recipient
	accounts   map[int64]*entity.OutboundAccount // by owner

	err          error
	attemptCalls int
	resetCalls   int
	limitCalls   int
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		batches:    map[int64]*entity.Batch{},
		recipients: map[int64]*entity.Recipient{},
		accounts:   map[int64]*entity.OutboundAccount{},
	}
}

func (f *fakeDB) CreateBatch(_ context.Context, data entity.CreateBatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.batches[data.ID] = &entity.Batch{ID: data.ID, OwnerID: data.OwnerID, Title: data.Title, SourceKey: data.SourceKey}
	return nil
}

func (f *fakeDB) GetBatchByID(_ context.Context, id int64) (*entity.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	b, ok := f.batches[id]
	if !ok {
		return nil, goerror.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeDB) ListBatchesByOwner(_ context.Context, ownerID int64) ([]entity.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]entity.Batch, 0)
	for _, b := range f.batches {
		if b.OwnerID == ownerID {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (f *fakeDB) DeleteBatch(_ context.Context, id, ownerID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[id]
	if !ok || b.OwnerID != ownerID {
		return false, nil
	}
	delete(f.batches, id)
	for rid, r := range f.recipients {
		if r.BatchID == id {
			delete(f.recipients, rid)
		}
	}
	return true, nil
}

func (f *fakeDB) IngestRecipients(_ context.Context, batchID int64, rows []entity.CreateRecipient, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[batchID]
	if !ok {
		return 0, goerror.ErrNotFound
	}
	if b.IngestedAt != nil {
		return 0, goerror.ErrConflict
	}
	for _, r := range rows {
		f.recipients[r.ID] = &entity.Recipient{
			ID:          r.ID,
			BatchID:     r.BatchID,
			OwnerID:     b.OwnerID,
			Name:        r.Name,
			Email:       r.Email,
			Subject:     r.Subject,
			Body:        r.Body,
			Cc:          r.Cc,
			Bcc:         r.Bcc,
			Attachments: r.Attachments,
			State:       entity.DeliveryStatePending,
		}
	}
	b.IngestedAt = &at
	return int64(len(rows)), nil
}

func (f *fakeDB) GetRecipientByID(_ context.Context, id int64) (*entity.Recipient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.recipients[id]
	if !ok {
		return nil, goerror.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeDB) ListRecipientsByBatch(_ context.Context, batchID int64) ([]entity.Recipient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Recipient
	for _, r := range f.recipients {
		if r.BatchID == batchID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeDB) ListUnsentRecipientIDs(_ context.Context, batchID int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var ids []int64
	for _, r := range f.recipients {
		if r.BatchID == batchID && !r.IsSent() {
			ids = append(ids, r.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakeDB) RecordAttempt(_ context.Context, data entity.RecordAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attemptCalls++
	r, ok := f.recipients[data.RecipientID]
	if !ok {
		return goerror.ErrNotFound
	}
	if r.State != entity.DeliveryStateSent {
		r.State = data.State
	}
	r.Attempts++
	at := data.AttemptedAt
	r.LastAttemptAt = &at
	r.LastError = data.LastError
	return nil
}

func (f *fakeDB) GetAccountByOwner(_ context.Context, ownerID int64) (*entity.OutboundAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[ownerID]
	if !ok {
		return nil, goerror.ErrNotFound
	}
	cp := *a
	cp.Password = ""
	return &cp, nil
}

func (f *fakeDB) UpsertAccount(_ context.Context, data entity.SaveAccount) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[data.OwnerID]
	if !ok {
		a = &entity.OutboundAccount{ID: data.ID, OwnerID: data.OwnerID}
		f.accounts[data.OwnerID] = a
	}
	a.Host, a.Port, a.Username, a.UseTLS = data.Host, data.Port, data.Username, data.UseTLS
	a.SealedPassword = data.SealedPassword
	return nil
}

func (f *fakeDB) accountByID(id int64) *entity.OutboundAccount {
	for _, a := range f.accounts {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (f *fakeDB) ResetAccountQuota(_ context.Context, id int64, now, startOfDay time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetCalls++
	a := f.accountByID(id)
	if a == nil || !a.LastReset.Before(startOfDay) {
		return false, nil
	}
	a.SentToday, a.RateLimited, a.LastReset = 0, false, now
	return true, nil
}

func (f *fakeDB) MarkAccountRateLimited(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limitCalls++
	if a := f.accountByID(id); a != nil {
		a.RateLimited = true
	}
	return nil
}

func (f *fakeDB) IncrementAccountSent(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a := f.accountByID(id); a != nil {
		a.SentToday++
	}
	return nil
}

func (f *fakeDB) recipient(id int64) entity.Recipient {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.recipients[id]
}

func (f *fakeDB) account(ownerID int64) entity.OutboundAccount {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.accounts[ownerID]
}

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string][]byte{}}
}

func (f *fakeStorage) Put(_ context.Context, key string, r io.Reader, _ storage.PutOptions) (storage.ObjectInfo, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = b
	return storage.ObjectInfo{Key: key, Size: int64(len(b))}, nil
}

func (f *fakeStorage) Open(_ context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[key]
	if !ok {
		return nil, storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), storage.ObjectInfo{Key: key, Size: int64(len(b))}, nil
}

func (f *fakeStorage) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

type fakeFetcher struct {
	mu       sync.Mutex
	result   entity.ResolveResult
	resolved [][]string
	cleaned  []string
}

func (f *fakeFetcher) Resolve(_ context.Context, urls []string) entity.ResolveResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolved = append(f.resolved, urls)
	return f.result
}

func (f *fakeFetcher) Cleanup(_ context.Context, dir string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleaned = append(f.cleaned, dir)
}

type fakeTransport struct {
	mu      sync.Mutex
	dialErr error
	sendErr error
	dials   int
	closes  int
	sent    []mail.Message
	eps     []mail.Endpoint
}

func (f *fakeTransport) Dial(_ context.Context, ep mail.Endpoint) (mail.Mail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dials++
	f.eps = append(f.eps, ep)
	if f.dialErr != nil {
		return nil, f.dialErr
	}
	return &fakeConn{t: f}, nil
}

type fakeConn struct{ t *fakeTransport }

func (c *fakeConn) Send(_ context.Context, msg mail.Message) error {
	c.t.mu.Lock()
	defer c.t.mu.Unlock()
	if c.t.sendErr != nil {
		return c.t.sendErr
	}
	c.t.sent = append(c.t.sent, msg)
	return nil
}

func (c *fakeConn) Close() error {
	c.t.mu.Lock()
	defer c.t.mu.Unlock()
	c.t.closes++
	return nil
}

// syncPool runs tasks inline so tests can observe their effects right away.
type syncPool struct {
	err   error
	tasks int
}

func (p *syncPool) SubmitAll(ctx context.Context, tasks []goroutine.Task) error {
	if p.err != nil {
		return p.err
	}
	p.tasks += len(tasks)
	for _, t := range tasks {
		t(context.WithoutCancel(ctx))
	}
	return nil
}

type fakeDedupe struct {
	mu   sync.Mutex
	held map[string]bool
}

func (f *fakeDedupe) Exec(ctx context.Context, key string, fn func(context.Context) error, _ ...idempotency.Option) error {
	f.mu.Lock()
	if f.held == nil {
		f.held = map[string]bool{}
	}
	if f.held[key] {
		f.mu.Unlock()
		return idempotency.ErrAlreadyInProgress
	}
	f.held[key] = true
	f.mu.Unlock()

	if err := fn(ctx); err != nil {
		f.mu.Lock()
		delete(f.held, key)
		f.mu.Unlock()
		return err
	}
	return nil
}

type fakeMQ struct {
	events []BatchUploadedEvent
}

func (f *fakeMQ) PublishBatchUploaded(_ context.Context, msg BatchUploadedEvent) error {
	f.events = append(f.events, msg)
	return nil
}

type fixture struct {
	uc        *Usecase
	db        *fakeDB
	storage   *fakeStorage
	fetcher   *fakeFetcher
	transport *fakeTransport
	pool      *syncPool
	dedupe    *fakeDedupe
	mq        *fakeMQ
	clock     *fakeClock
	box       secret.Box
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte("app:\n  tz: UTC\nmodules:\n  mailing:\n    dispatch:\n      dedupe_seconds: 30\n"))
	require.NoError(t, err)

	v, err := validator.NewV10Validator()
	require.NoError(t, err)

	box, err := secret.NewAESGCM(testKey)
	require.NoError(t, err)

	composer, err := NewComposer(context.Background(), ComposerConfig{FromName: "JB Connect"})
	require.NoError(t, err)

	f := &fixture{
		db:        newFakeDB(),
		storage:   newFakeStorage(),
		fetcher:   &fakeFetcher{},
		transport: &fakeTransport{},
		pool:      &syncPool{},
		dedupe:    &fakeDedupe{},
		mq:        &fakeMQ{},
		clock:     &fakeClock{now: time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)},
		box:       box,
	}
	f.uc = NewMailing(Dependency{
		RepoDB:        f.db,
		RepoStorage:   f.storage,
		RepoFetcher:   f.fetcher,
		RepoTransport: f.transport,
		RepoMQ:        f.mq,
		Pool:          f.pool,
		Dedupe:        f.dedupe,
		Composer:      composer,
		Secret:        box,
		Config:        cfg,
		UID:           &seqID{},
		Clock:         f.clock,
		Validator:     v,
		Instrument:    instrument.NewNoop(),
	})
	return f
}

const testOwner int64 = 7

// seedAccount stores an account for testOwner whose quota was last reset today.
func (f *fixture) seedAccount(t *testing.T, mutate func(a *entity.OutboundAccount)) {
	t.Helper()
	sealed, err := f.box.Seal([]byte("app-password"), secret.Scope{OwnerID: testOwner, Purpose: secret.PurposeSMTPPassword})
	require.NoError(t, err)

	a := &entity.OutboundAccount{
		ID:             500,
		OwnerID:        testOwner,
		Host:           "smtp.example.com",
		Port:           587,
		Username:       "sender@example.com",
		SealedPassword: sealed,
		UseTLS:         true,
		LastReset:      f.clock.now.Add(-time.Hour),
	}
	if mutate != nil {
		mutate(a)
	}
	f.db.accounts[testOwner] = a
}

func (f *fixture) seedRecipient(id int64, mutate func(r *entity.Recipient)) {
	if _, ok := f.db.batches[1]; !ok {
		f.db.batches[1] = &entity.Batch{ID: 1, OwnerID: testOwner, Title: "June", SourceKey: "batches/7/1.csv"}
	}
	r := &entity.Recipient{
		ID:      id,
		BatchID: 1,
		OwnerID: testOwner,
		Name:    "Alice",
		Email:   "alice@example.com",
		Subject: "Hi",
		Body:    entity.PlainBody("Hello there"),
		State:   entity.DeliveryStatePending,
	}
	if mutate != nil {
		mutate(r)
	}
	f.db.recipients[id] = r
}

var errBoom = errors.New("boom")
