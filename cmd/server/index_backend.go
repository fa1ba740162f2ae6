package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"tenacitos.ai/internal/persistence/indexdb"
	"tenacitos.ai/internal/sim/office"
	"tenacitos.ai/internal/sim/tuning"
)

type runtimeIndex interface {
	office.FrameLogger
	office.EventLogger
	Close() error
	RunID() string
	RecordRun(officeID, layoutDigest string, tune tuning.Tuning) error
}

// eventQuerier is implemented by indexes that can be read back locally.
type eventQuerier interface {
	RecentEvents(ctx context.Context, agentID string, limit int) ([]indexdb.EventRow, error)
}

func openRuntimeIndex(officeDir, officeID string, disableDB bool, logger *log.Logger) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("OFFICE_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		dbPath := filepath.Join(officeDir, "index", "office.sqlite")
		return indexdb.OpenSQLite(dbPath)
	case "d1":
		endpoint := strings.TrimSpace(os.Getenv("OFFICE_INDEX_D1_INGEST_URL"))
		token := strings.TrimSpace(os.Getenv("OFFICE_INDEX_D1_TOKEN"))
		if endpoint == "" {
			return nil, fmt.Errorf("OFFICE_INDEX_BACKEND=d1 but OFFICE_INDEX_D1_INGEST_URL is empty")
		}
		flushMS := envInt("OFFICE_INDEX_D1_FLUSH_MS", 500)
		batchSize := envInt("OFFICE_INDEX_D1_BATCH_SIZE", 128)
		idx, err := indexdb.OpenD1(indexdb.D1Config{
			Endpoint:      endpoint,
			Token:         token,
			OfficeID:      officeID,
			BatchSize:     batchSize,
			FlushInterval: time.Duration(flushMS) * time.Millisecond,
			Logger:        logger,
		})
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported OFFICE_INDEX_BACKEND: %s", backend)
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
