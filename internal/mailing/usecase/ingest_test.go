package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/shandysiswandi/jbcast/internal/mailing/entity"
	"github.com/shandysiswandi/jbcast/internal/pkg/goerror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngest_CreatesRecipientsWithFirstRowDefaults(t *testing.T) {
	// Arrange
	f := newFixture(t)
	f.db.batches[1] = &entity.Batch{ID: 1, OwnerID: testOwner, SourceKey: "batches/7/1.csv"}
	f.storage.objects["batches/7/1.csv"] = []byte("Name,Email,Subject,Body\n" +
		"Alice,a@x.com,Hi,\n" +
		"Bob,b@x.com,ignored,ignored\n" +
		",,,\n")

	// Act
	out, err := f.uc.Ingest(context.Background(), IngestInput{BatchID: 1})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.Created)
	assert.False(t, out.NothingToProcess)

	recipients, err := f.db.ListRecipientsByBatch(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recipients, 2)
	for _, r := range recipients {
		assert.Equal(t, "Hi", r.Subject)
		assert.Equal(t, entity.PlainBody(""), r.Body)
		assert.Equal(t, entity.DeliveryStatePending, r.State)
	}
	assert.Equal(t, "a@x.com", recipients[0].Email)
	assert.Equal(t, "b@x.com", recipients[1].Email)
	assert.NotNil(t, f.db.batches[1].IngestedAt)
}

func TestIngest_NothingToProcess(t *testing.T) {
	f := newFixture(t)
	f.db.batches[1] = &entity.Batch{ID: 1, OwnerID: testOwner, SourceKey: "batches/7/1.csv"}
	f.storage.objects["batches/7/1.csv"] = []byte("Name,Email,Subject,Body\n")

	out, err := f.uc.Ingest(context.Background(), IngestInput{BatchID: 1})

	require.NoError(t, err)
	assert.True(t, out.NothingToProcess)
	assert.Empty(t, f.db.recipients)
}

func TestIngest_Errors(t *testing.T) {
	tests := []struct {
		name     string
		in       IngestInput
		setup    func(f *fixture)
		wantCode goerror.Code
	}{
		{
			name:     "invalid input",
			in:       IngestInput{},
			wantCode: goerror.CodeInvalidInput,
		},
		{
			name:     "batch not found",
			in:       IngestInput{BatchID: 9},
			wantCode: goerror.CodeNotFound,
		},
		{
			name: "unsupported format",
			in:   IngestInput{BatchID: 1},
			setup: func(f *fixture) {
				f.db.batches[1] = &entity.Batch{ID: 1, SourceKey: "batches/7/1.xls"}
				f.storage.objects["batches/7/1.xls"] = []byte("binary")
			},
			wantCode: goerror.CodeInvalidFormat,
		},
		{
			name: "already ingested",
			in:   IngestInput{BatchID: 1},
			setup: func(f *fixture) {
				now := f.clock.now
				f.db.batches[1] = &entity.Batch{ID: 1, SourceKey: "batches/7/1.csv", IngestedAt: &now}
			},
			wantCode: goerror.CodeConflict,
		},
		{
			name: "source missing",
			in:   IngestInput{BatchID: 1},
			setup: func(f *fixture) {
				f.db.batches[1] = &entity.Batch{ID: 1, SourceKey: "batches/7/1.csv"}
			},
			wantCode: goerror.CodeInternal,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(f)
			}

			out, err := f.uc.Ingest(context.Background(), tt.in)

			assert.Nil(t, out)
			assert.Equal(t, tt.wantCode, goerror.CodeOf(err))
		})
	}
}

func TestRegisterBatch(t *testing.T) {
	f := newFixture(t)

	batch, err := f.uc.RegisterBatch(context.Background(), RegisterBatchInput{
		OwnerID:  testOwner,
		Title:    "June newsletter",
		Filename: "June.CSV",
		Content:  strings.NewReader("Name,Email\nAlice,a@x.com\n"),
	})

	require.NoError(t, err)
	assert.Equal(t, testOwner, batch.OwnerID)
	assert.True(t, strings.HasPrefix(batch.SourceKey, "batches/7/"))
	assert.True(t, strings.HasSuffix(batch.SourceKey, ".csv"))
	assert.Contains(t, f.storage.objects, batch.SourceKey)
	assert.Contains(t, f.db.batches, batch.ID)
	assert.Equal(t, []BatchUploadedEvent{{BatchID: batch.ID, OwnerID: testOwner}}, f.mq.events)

	_, err = f.uc.RegisterBatch(context.Background(), RegisterBatchInput{
		OwnerID:  testOwner,
		Title:    "Legacy",
		Filename: "old.xls",
		Content:  strings.NewReader("x"),
	})
	assert.Equal(t, goerror.CodeInvalidFormat, goerror.CodeOf(err))
	assert.ErrorIs(t, err, entity.ErrUnsupportedFormat)
}

func TestRegisterBatch_RemovesSourceWhenBatchCannotBeSaved(t *testing.T) {
	f := newFixture(t)
	f.db.err = errBoom

	_, err := f.uc.RegisterBatch(context.Background(), RegisterBatchInput{
		OwnerID:  testOwner,
		Title:    "June",
		Filename: "june.csv",
		Content:  strings.NewReader("Name,Email\n"),
	})

	assert.Equal(t, goerror.CodeInternal, goerror.CodeOf(err))
	assert.Empty(t, f.storage.objects)
	assert.Len(t, f.storage.deleted, 1)
	assert.Empty(t, f.mq.events)
}
