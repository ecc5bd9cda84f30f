package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"stormdex/internal/model"
)

// JsonlStorage appends pool records to a JSONL file.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

var _ PoolSink = (*JsonlStorage)(nil)

// PutPools appends one line per pool record.
func (s *JsonlStorage) PutPools(_ context.Context, observedAt time.Time, pools []model.PoolRecord) error {
	if len(pools) == 0 {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, pool := range pools {
		line, err := json.Marshal(PoolLine{ObservedAt: observedAt.UTC(), PoolRecord: pool})
		if err != nil {
			return fmt.Errorf("marshal pool record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write pool record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}
