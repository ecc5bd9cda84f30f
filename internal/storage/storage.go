package storage

import (
	"context"
	"time"

	"stormdex/internal/model"
)

// PoolSink archives published listing snapshots.
type PoolSink interface {
	PutPools(ctx context.Context, observedAt time.Time, pools []model.PoolRecord) error
}

// AuditSink archives merged audit records.
type AuditSink interface {
	PutAudits(ctx context.Context, audits []model.AuditRecord) error
}

// PoolLine is one JSONL row: a pool record stamped with its listing time.
type PoolLine struct {
	ObservedAt time.Time `json:"observed_at"`
	model.PoolRecord
}
