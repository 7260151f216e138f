package poller

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github/martinmaurice/apipoller/pkg/enum"
	"github/martinmaurice/apipoller/pkg/rate_limiter"
	"github/martinmaurice/apipoller/pkg/schoolmeal"
)

func TestSourceStatus_Record(t *testing.T) {
	r := NewRegistry()
	s := r.Register(enum.Vasttrafik, rate_limiter.NewTokenBucket(40, time.Minute))

	s.Record(nil)
	s.Record(fmt.Errorf("vasttrafik: %w", rate_limiter.ThrottledErr))
	s.Record(schoolmeal.NotModifiedErr)
	s.Record(errors.New("boom"))

	snap, ok := r.Get(enum.Vasttrafik)
	require.True(t, ok)
	assert.Equal(t, int64(1), snap.Successes)
	assert.Equal(t, int64(1), snap.Throttled)
	assert.Equal(t, int64(1), snap.NotModified)
	assert.Equal(t, int64(1), snap.Failures)
	assert.Equal(t, "boom", snap.LastError)
	assert.NotNil(t, snap.LastSuccess)
	assert.NotNil(t, snap.LastFailure)
	assert.Equal(t, "token_bucket", snap.Throttle.Algorithm)
	assert.Equal(t, 40, snap.Throttle.Capacity)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	a := r.Register(enum.Vasttrafik, nil)
	assert.Same(t, a, r.Register(enum.Vasttrafik, nil))
	r.Register(enum.GBGCamera, nil)

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, enum.GBGCamera, all[0].Source)
	assert.Equal(t, enum.Vasttrafik, all[1].Source)

	_, ok := r.Get(enum.Schoolmeal)
	assert.False(t, ok)
}
