package store

import (
	"context"
	"time"
)

// Report is a persisted abuse report filed with /report.
type Report struct {
	ID        int64
	Reporter  string
	Reported  string
	CreatedAt time.Time
}

// ReportStore persists abuse reports. Chat traffic and registries are never
// persisted; this is the only durable state in the system.
type ReportStore interface {
	// SaveReport records that reporter filed a report against reported.
	SaveReport(ctx context.Context, reporter, reported string) error

	// ListReports returns all reports, oldest first.
	ListReports(ctx context.Context) ([]*Report, error)

	// Close releases the underlying storage.
	Close() error
}
