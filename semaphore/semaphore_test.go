package semaphore

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ExampleMutex() {
	const routineCount = 5

	var (
		m     = Mutex()
		wg    = new(sync.WaitGroup)
		value int
	)

	wg.Add(routineCount)
	for i := 0; i < routineCount; i++ {
		go func() {
			defer wg.Done()
			release, _ := m.Acquire(context.Background())
			defer release()
			value++
			fmt.Println(value)
		}()
	}

	wg.Wait()

	// Unordered output:
	// 1
	// 2
	// 3
	// 4
	// 5
}

// waitForWaiting blocks until s has exactly n queued acquisitions.
func waitForWaiting(t *testing.T, s Interface, n int) {
	require.Eventually(t, func() bool { return s.Waiting() == n }, 5*time.Second, time.Millisecond)
}

type acquireResult struct {
	release Release
	err     error
}

// acquireAsync starts an Acquire in its own goroutine and waits until that goroutine is queued.
func acquireAsync(t *testing.T, ctx context.Context, s Interface) <-chan acquireResult {
	var (
		queued = s.Waiting()
		result = make(chan acquireResult, 1)
	)

	go func() {
		r, err := s.Acquire(ctx)
		result <- acquireResult{r, err}
	}()

	waitForWaiting(t, s, queued+1)
	return result
}

func receive(t *testing.T, result <-chan acquireResult) acquireResult {
	select {
	case r := <-result:
		return r
	case <-time.After(5 * time.Second):
		require.FailNow(t, "Acquire blocked unexpectedly")
		return acquireResult{}
	}
}

func assertBlocked(t *testing.T, result <-chan acquireResult) {
	select {
	case <-result:
		assert.Fail(t, "Acquire should still be blocked")
	case <-time.After(50 * time.Millisecond):
		// passing
	}
}

func testNewInvalidCapacity(t *testing.T) {
	for _, c := range []int{0, -1} {
		t.Run(strconv.Itoa(c), func(t *testing.T) {
			s, err := New(c)
			assert.Nil(t, s)
			assert.ErrorIs(t, err, ErrInvalidCapacity)

			assert.Panics(t, func() {
				MustNew(c)
			})
		})
	}
}

func testNewValidCapacity(t *testing.T) {
	for _, c := range []int{1, 2, 5} {
		t.Run(strconv.Itoa(c), func(t *testing.T) {
			var (
				assert  = assert.New(t)
				require = require.New(t)
			)

			s, err := New(c)
			require.NoError(err)
			require.NotNil(s)

			assert.Equal(c, s.Capacity())
			assert.Equal(c, s.Count())
			assert.Zero(s.Waiting())
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("InvalidCapacity", testNewInvalidCapacity)
	t.Run("ValidCapacity", testNewValidCapacity)
}

func TestMutex(t *testing.T) {
	m := Mutex()
	assert.Equal(t, 1, m.Capacity())
	assert.Equal(t, 1, m.Count())
}

func testTryAcquire(t *testing.T, s Interface, totalCount int) {
	var (
		assert   = assert.New(t)
		releases []Release
	)

	for i := 0; i < totalCount; i++ {
		r, ok := s.TryAcquire()
		assert.True(ok)
		assert.NotNil(r)
		releases = append(releases, r)
	}

	assert.Zero(s.Count())
	r, ok := s.TryAcquire()
	assert.False(ok)
	assert.Nil(r)

	releases[0]()
	assert.Equal(1, s.Count())

	r, ok = s.TryAcquire()
	assert.True(ok)
	assert.NotNil(r)
	_, ok = s.TryAcquire()
	assert.False(ok)

	r()
	for _, release := range releases[1:] {
		release()
	}

	assert.Equal(totalCount, s.Count())
}

func testAcquire(t *testing.T, s Interface, totalCount int) {
	var (
		assert   = assert.New(t)
		require  = require.New(t)
		ctx      = context.Background()
		releases []Release
	)

	for i := 0; i < totalCount; i++ {
		r, err := s.Acquire(ctx)
		require.NoError(err)
		releases = append(releases, r)
	}

	// post condition: no point continuing if this fails
	_, ok := s.TryAcquire()
	require.False(ok)

	result := acquireAsync(t, ctx, s)
	assertBlocked(t, result)

	releases[0]()
	granted := receive(t, result)
	require.NoError(granted.err)
	require.NotNil(granted.release)

	// the slot passed straight to the waiter without becoming available
	assert.Zero(s.Count())
	assert.Zero(s.Waiting())

	granted.release()
	for _, release := range releases[1:] {
		release()
	}

	assert.Equal(totalCount, s.Count())
}

func testAcquireFIFO(t *testing.T, s Interface, totalCount int) {
	var (
		assert   = assert.New(t)
		require  = require.New(t)
		ctx      = context.Background()
		releases []Release
		results  []<-chan acquireResult
	)

	for i := 0; i < totalCount; i++ {
		r, err := s.Acquire(ctx)
		require.NoError(err)
		releases = append(releases, r)
	}

	for i := 0; i < 3; i++ {
		results = append(results, acquireAsync(t, ctx, s))
	}

	for i, result := range results {
		releases[0]()
		granted := receive(t, result)
		require.NoError(granted.err)
		assert.Equal(len(results)-i-1, s.Waiting())

		for _, later := range results[i+1:] {
			select {
			case <-later:
				assert.Fail("A later waiter was granted out of order")
			default:
			}
		}

		releases[0] = granted.release
	}

	for _, release := range releases {
		release()
	}

	assert.Equal(totalCount, s.Count())
}

func testAcquireCanceled(t *testing.T, s Interface, totalCount int) {
	var (
		assert      = assert.New(t)
		require     = require.New(t)
		ctx, cancel = context.WithCancel(context.Background())
		releases    []Release
	)

	defer cancel()
	for i := 0; i < totalCount; i++ {
		r, err := s.Acquire(ctx)
		require.NoError(err)
		releases = append(releases, r)
	}

	result := acquireAsync(t, ctx, s)
	cancel()

	canceled := receive(t, result)
	assert.Equal(context.Canceled, canceled.err)
	assert.Nil(canceled.release)
	assert.Zero(s.Waiting())

	r, err := s.Acquire(ctx)
	assert.Equal(context.Canceled, err)
	assert.Nil(r)

	for _, release := range releases {
		release()
	}

	assert.Equal(totalCount, s.Count())
}

func TestWaitResolvedBeforeCancel(t *testing.T) {
	var (
		assert  = assert.New(t)
		require = require.New(t)

		s           = Mutex()
		ctx, cancel = context.WithCancel(context.Background())
		released    bool
	)

	cancel()

	// a waiter that is no longer queued keeps the outcome it was given
	w := &waiter{
		ready:   make(chan struct{}),
		release: func() { released = true },
	}

	r, err := s.wait(ctx, w, nil)
	assert.NoError(err)
	require.NotNil(r)
	r()
	assert.True(released)

	// a waiter still in the queue is removed and gets the context's error
	queued := &waiter{ready: make(chan struct{})}
	s.waiters.PushBack(queued)

	r, err = s.wait(ctx, queued, nil)
	assert.Nil(r)
	assert.ErrorIs(err, context.Canceled)
	assert.Zero(s.Waiting())
}

func testReleaseIdempotent(t *testing.T, s Interface, totalCount int) {
	var (
		assert  = assert.New(t)
		require = require.New(t)
		ctx     = context.Background()
	)

	r, err := s.Acquire(ctx)
	require.NoError(err)
	r()
	r()
	assert.Equal(totalCount, s.Count())

	var releases []Release
	for i := 0; i < totalCount; i++ {
		r, err := s.Acquire(ctx)
		require.NoError(err)
		releases = append(releases, r)
	}

	first := acquireAsync(t, ctx, s)
	second := acquireAsync(t, ctx, s)

	releases[0]()
	releases[0]()

	granted := receive(t, first)
	require.NoError(granted.err)
	assertBlocked(t, second)
	assert.Equal(1, s.Waiting())
	assert.Zero(s.Count())

	granted.release()
	granted = receive(t, second)
	require.NoError(granted.err)
	granted.release()
	granted.release()

	for _, release := range releases[1:] {
		release()
	}

	assert.Equal(totalCount, s.Count())
}

func TestSemaphore(t *testing.T) {
	for _, c := range []int{1, 2, 5} {
		t.Run(fmt.Sprintf("count=%d", c), func(t *testing.T) {
			t.Run("TryAcquire", func(t *testing.T) {
				testTryAcquire(t, MustNew(c), c)
			})

			t.Run("Acquire", func(t *testing.T) {
				testAcquire(t, MustNew(c), c)
			})

			t.Run("AcquireFIFO", func(t *testing.T) {
				testAcquireFIFO(t, MustNew(c), c)
			})

			t.Run("AcquireCanceled", func(t *testing.T) {
				testAcquireCanceled(t, MustNew(c), c)
			})

			t.Run("ReleaseIdempotent", func(t *testing.T) {
				testReleaseIdempotent(t, MustNew(c), c)
			})
		})
	}
}

func TestSemaphoreLimitsConcurrency(t *testing.T) {
	const (
		capacity  = 2
		taskCount = 5
	)

	var (
		assert = assert.New(t)
		s      = MustNew(capacity)
		wg     = new(sync.WaitGroup)

		lock    sync.Mutex
		running int
		peak    int
		ran     int
	)

	wg.Add(taskCount)
	for i := 0; i < taskCount; i++ {
		go func() {
			defer wg.Done()
			release, err := s.Acquire(context.Background())
			if !assert.NoError(err) {
				return
			}

			lock.Lock()
			running++
			if running > peak {
				peak = running
			}
			lock.Unlock()

			time.Sleep(10 * time.Millisecond)

			lock.Lock()
			running--
			ran++
			lock.Unlock()
			release()
		}()
	}

	wg.Wait()
	assert.Equal(taskCount, ran)
	assert.LessOrEqual(peak, capacity)
	assert.Equal(capacity, s.Count())
	assert.Zero(s.Waiting())
}

func TestMutexNoOverlap(t *testing.T) {
	var (
		assert = assert.New(t)
		m      = Mutex()
		wg     = new(sync.WaitGroup)

		lock    sync.Mutex
		holders int
		ran     []int
	)

	wg.Add(2)
	for i := 0; i < 2; i++ {
		go func(id int) {
			defer wg.Done()
			release, err := m.Acquire(context.Background())
			if !assert.NoError(err) {
				return
			}

			defer release()
			lock.Lock()
			holders++
			assert.Equal(1, holders)
			lock.Unlock()

			time.Sleep(10 * time.Millisecond)

			lock.Lock()
			holders--
			ran = append(ran, id)
			lock.Unlock()
		}(i)
	}

	wg.Wait()
	assert.Len(ran, 2)
	assert.Equal(1, m.Count())
}

func TestMutexDoubleLock(t *testing.T) {
	var (
		assert  = assert.New(t)
		require = require.New(t)
		m       = Mutex()
	)

	release, err := m.Acquire(context.Background())
	require.NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	again, err := m.Acquire(ctx)
	assert.Equal(context.DeadlineExceeded, err)
	assert.Nil(again)
	assert.Zero(m.Waiting())

	release()
	assert.Equal(1, m.Count())
}

func TestMutexDoubleRelease(t *testing.T) {
	var (
		assert  = assert.New(t)
		require = require.New(t)
		m       = Mutex()
		ctx     = context.Background()
	)

	release, err := m.Acquire(ctx)
	require.NoError(err)

	release()
	release()
	assert.Equal(1, m.Count())

	next, err := m.Acquire(ctx)
	require.NoError(err)
	_, ok := m.TryAcquire()
	assert.False(ok)
	next()
}
