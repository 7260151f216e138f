package poller

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github/martinmaurice/apipoller/pkg/sink"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) (*miniredis.Miniredis, *sink.RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rc.Close()
	})
	return mr, sink.NewRedisStore(rc, sink.WithLogger(discardLogger()))
}

// failingStore fails every write.
type failingStore struct {
	sink.Store
}

func (failingStore) Set(context.Context, string, any) error {
	return sink.SinkWriteErr
}

func (failingStore) Update(context.Context, string, map[string]any) error {
	return sink.SinkWriteErr
}
