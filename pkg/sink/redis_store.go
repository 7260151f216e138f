package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github/martinmaurice/apipoller/pkg/env"
)

const (
	changesChannelPrefix = "changes:"
	maxUpdateAttempts    = 5
)

// RedisStore keeps one JSON document per path and announces every write on
// the path's change channel.
type RedisStore struct {
	db     *redis.Client
	prefix string
	logger *slog.Logger
}

var (
	_ Store   = (*RedisStore)(nil)
	_ Watcher = (*RedisStore)(nil)
)

type Option func(s *RedisStore)

// WithPrefix namespaces every key, mostly so tests and deployments can share
// a database.
func WithPrefix(prefix string) Option {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *RedisStore) {
		s.logger = l
	}
}

func NewRedisStore(db *redis.Client, opts ...Option) *RedisStore {
	s := &RedisStore{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewRedisClient builds the client described by the process environment.
func NewRedisClient(spec *env.Specification) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     spec.RedisAddr,
		Password: spec.RedisPassword,
		DB:       spec.RedisDb,
		PoolSize: spec.RedisPoolSize,
	})
}

func (s *RedisStore) key(path string) string {
	return s.prefix + path
}

// Channel is the pub/sub channel carrying changes of path.
func (s *RedisStore) Channel(path string) string {
	return changesChannelPrefix + s.key(path)
}

func (s *RedisStore) Set(ctx context.Context, path string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: encoding %s: %v", SinkWriteErr, path, err)
	}

	_, err = s.db.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(path), b, 0)
		pipe.Publish(ctx, s.Channel(path), b)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: set %s: %v", SinkWriteErr, path, err)
	}
	return nil
}

func (s *RedisStore) Update(ctx context.Context, path string, fields map[string]any) error {
	key := s.key(path)

	encoded := make(map[string]json.RawMessage, len(fields))
	for field, value := range fields {
		if value == nil {
			encoded[field] = nil
			continue
		}
		b, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("%w: encoding %s/%s: %v", SinkWriteErr, path, field, err)
		}
		encoded[field] = b
	}

	merge := func(tx *redis.Tx) error {
		doc := make(map[string]json.RawMessage)
		current, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			// a scalar at path is replaced by the merged object
			if json.Unmarshal(current, &doc) != nil {
				doc = make(map[string]json.RawMessage)
			}
		}

		for field, value := range encoded {
			if value == nil {
				delete(doc, field)
				continue
			}
			doc[field] = value
		}

		b, err := json.Marshal(doc)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, 0)
			pipe.Publish(ctx, s.Channel(path), b)
			return nil
		})
		return err
	}

	var err error
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err = s.db.Watch(ctx, merge, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
		s.logger.Debug("concurrent update, retrying", "path", path, "attempt", attempt+1)
	}
	if err != nil {
		return fmt.Errorf("%w: update %s: %v", SinkWriteErr, path, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, path string, dst any) (bool, error) {
	b, err := s.db.Get(ctx, s.key(path)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", path, err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return false, fmt.Errorf("decoding %s: %w", path, err)
	}
	return true, nil
}

func (s *RedisStore) Delete(ctx context.Context, path string) error {
	_, err := s.db.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(path))
		pipe.Publish(ctx, s.Channel(path), "null")
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: delete %s: %v", SinkWriteErr, path, err)
	}
	return nil
}

// Watch calls fn with the value currently at path, if any, and then with
// every value written to path until ctx is done. The subscription is
// established before the initial read so no write in between is lost.
func (s *RedisStore) Watch(ctx context.Context, path string, fn func(value []byte)) error {
	sub := s.db.Subscribe(ctx, s.Channel(path))
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", path, err)
	}
	messages := sub.Channel()

	current, err := s.db.Get(ctx, s.key(path)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return fmt.Errorf("get %s: %w", path, err)
	default:
		fn(current)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			fn([]byte(msg.Payload))
		}
	}
}

// ToFields turns a JSON encodable struct into Update fields.
func ToFields(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, fmt.Errorf("%T is not an object: %w", v, err)
	}
	return fields, nil
}
