package inbound

import (
	"context"

	"github.com/shandysiswandi/jbcast/internal/mailing/usecase"
)

type uc interface {
	Ingest(ctx context.Context, in usecase.IngestInput) (*usecase.IngestOutput, error)
	DispatchBatch(ctx context.Context, in usecase.DispatchBatchInput) (*usecase.DispatchBatchOutput, error)
	DispatchOne(ctx context.Context, in usecase.DispatchOneInput) (*usecase.DispatchOneOutput, error)
	DeleteBatch(ctx context.Context, in usecase.DeleteBatchInput) error
}
