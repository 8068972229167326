package entity

import (
	"errors"
	"time"

	"github.com/shandysiswandi/jbcast/internal/pkg/spreadsheet"
)

// ErrUnsupportedFormat is returned when a batch source is neither CSV nor XLSX.
var ErrUnsupportedFormat = spreadsheet.ErrUnsupportedFormat

// IsUnsupportedFormat reports whether err was caused by an unknown source extension.
func IsUnsupportedFormat(err error) bool {
	return errors.Is(err, ErrUnsupportedFormat)
}

// Batch is one uploaded spreadsheet. It is immutable after ingestion.
type Batch struct {
	ID         int64
	OwnerID    int64
	Title      string
	SourceKey  string
	IngestedAt *time.Time
	CreatedAt  time.Time
}

type CreateBatch struct {
	ID        int64
	OwnerID   int64
	Title     string
	SourceKey string
}

// BatchCounts tallies recipients of one batch by delivery state.
type BatchCounts struct {
	Total   int64
	Pending int64
	Sent    int64
	Failed  int64
}
