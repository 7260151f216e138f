package sink

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRedisStore starts a fake redis and returns it with a store on top.
func newTestRedisStore(t *testing.T, opts ...Option) (*miniredis.Miniredis, *RedisStore) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rc.Close()
	})
	return mr, NewRedisStore(rc, opts...)
}

func TestPath(t *testing.T) {
	tests := []struct {
		segments []string
		want     string
	}{
		{[]string{"vasttrafik", "departures", "chalmers"}, "vasttrafik/departures/chalmers"},
		{[]string{"/schoolmeal/", "schools", "", "hvitfeldtska/"}, "schoolmeal/schools/hvitfeldtska"},
		{nil, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Path(tt.segments...))
	}
}

func TestRedisStore_SetAndGet(t *testing.T) {
	mr, s := newTestRedisStore(t, WithPrefix("test:"))
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "gbgcamera/12", map[string]any{"image": "12/a.jpg", "lastModified": 1}))

	raw, err := mr.Get("test:gbgcamera/12")
	require.NoError(t, err)
	assert.JSONEq(t, `{"image":"12/a.jpg","lastModified":1}`, raw)

	var got struct {
		Image string `json:"image"`
	}
	ok, err := s.Get(ctx, "gbgcamera/12", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "12/a.jpg", got.Image)

	ok, err = s.Get(ctx, "gbgcamera/13", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_Update(t *testing.T) {
	mr, s := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, "vasttrafik/departures/chalmers", map[string]any{
		"stop":       map[string]string{"id": "1"},
		"departures": map[string]any{"6": map[string]any{}},
	}))
	require.NoError(t, s.Update(ctx, "vasttrafik/departures/chalmers", map[string]any{
		"departures": nil,
		"note":       "kept",
	}))

	raw, err := mr.Get("vasttrafik/departures/chalmers")
	require.NoError(t, err)
	assert.JSONEq(t, `{"stop":{"id":"1"},"note":"kept"}`, raw)
}

func TestRedisStore_UpdateReplacesScalar(t *testing.T) {
	mr, s := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", "scalar"))
	require.NoError(t, s.Update(ctx, "a", map[string]any{"b": 1}))

	raw, err := mr.Get("a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"b":1}`, raw)
}

func TestRedisStore_ConcurrentUpdatesMerge(t *testing.T) {
	mr, s := newTestRedisStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, field := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(field string) {
			defer wg.Done()
			assert.NoError(t, s.Update(ctx, "doc", map[string]any{field: true}))
		}(field)
	}
	wg.Wait()

	raw, err := mr.Get("doc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":true,"b":true,"c":true,"d":true}`, raw)
}

func TestRedisStore_Delete(t *testing.T) {
	mr, s := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", 1))
	require.NoError(t, s.Delete(ctx, "a"))
	assert.False(t, mr.Exists("a"))
}

func TestRedisStore_WriteFailure(t *testing.T) {
	mr, s := newTestRedisStore(t)
	mr.Close()

	err := s.Set(context.Background(), "a", 1)
	assert.ErrorIs(t, err, SinkWriteErr)

	err = s.Update(context.Background(), "a", map[string]any{"b": 1})
	assert.ErrorIs(t, err, SinkWriteErr)
}

func TestRedisStore_SetUnencodable(t *testing.T) {
	_, s := newTestRedisStore(t)
	err := s.Set(context.Background(), "a", make(chan int))
	assert.ErrorIs(t, err, SinkWriteErr)
}

func TestRedisStore_Watch(t *testing.T) {
	_, s := newTestRedisStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Set(ctx, "vasttrafik/stops", []string{"initial"}))

	values := make(chan string, 4)
	done := make(chan error, 1)
	go func() {
		done <- s.Watch(ctx, "vasttrafik/stops", func(v []byte) {
			values <- string(v)
		})
	}()

	select {
	case v := <-values:
		assert.JSONEq(t, `["initial"]`, v)
	case <-time.After(2 * time.Second):
		t.Fatal("no initial value")
	}

	require.NoError(t, s.Set(ctx, "vasttrafik/stops", []string{"next"}))
	select {
	case v := <-values:
		assert.JSONEq(t, `["next"]`, v)
	case <-time.After(2 * time.Second):
		t.Fatal("no change delivered")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestToFields(t *testing.T) {
	fields, err := ToFields(struct {
		ID   int    `json:"id"`
		Name string `json:"name,omitempty"`
	}{ID: 7})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": float64(7)}, fields)

	_, err = ToFields([]int{1})
	assert.Error(t, err)
}
