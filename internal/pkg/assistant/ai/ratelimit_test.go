package ai

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterAdmitsUpToMaxCalls(t *testing.T) {
	now := time.Unix(1000, 0)
	l := NewRateLimiter(3, time.Minute)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Allow(), "call %d should be admitted", i+1)
	}

	err := l.Allow()
	require.Error(t, err)

	var rle *RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Greater(t, rle.Wait, time.Duration(0))
	assert.LessOrEqual(t, rle.Wait, time.Minute)
}

func TestRateLimiterReportsWaitUntilOldestExpires(t *testing.T) {
	now := time.Unix(1000, 0)
	l := NewRateLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	require.NoError(t, l.Allow())

	now = now.Add(20 * time.Second)
	require.NoError(t, l.Allow())

	now = now.Add(10 * time.Second)
	err := l.Allow()
	var rle *RateLimitError
	require.ErrorAs(t, err, &rle)
	// Oldest call was 30s ago, so the window frees up in 30s.
	assert.Equal(t, 30*time.Second, rle.Wait)
}

func TestRateLimiterWindowSlides(t *testing.T) {
	now := time.Unix(1000, 0)
	l := NewRateLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	require.NoError(t, l.Allow())
	require.NoError(t, l.Allow())
	require.Error(t, l.Allow())

	// After the window passes, calls are admitted again.
	now = now.Add(61 * time.Second)
	require.NoError(t, l.Allow())
}

func TestRateLimiterConcurrentAccess(t *testing.T) {
	l := NewRateLimiter(50, time.Minute)

	done := make(chan struct{})
	admitted := make(chan bool, 100)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 10; j++ {
				admitted <- l.Allow() == nil
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
	close(admitted)

	count := 0
	for ok := range admitted {
		if ok {
			count++
		}
	}
	assert.Equal(t, 50, count)
}
