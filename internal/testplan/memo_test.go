package testplan

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoSharesInFlightFetch(t *testing.T) {
	m := newMemo[string, int]()
	var calls atomic.Int32
	release := make(chan struct{})

	fetch := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := m.get(context.Background(), "Test Case", fetch)
			assert.NoError(t, err)
			results[i] = v
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
	assert.Equal(t, 1, m.len())
}

func TestMemoDoesNotStoreFailures(t *testing.T) {
	m := newMemo[SuiteKey, []int]()
	key := SuiteKey{PlanID: 1, SuiteID: 2}
	boom := errors.New("boom")

	_, err := m.get(context.Background(), key, func(context.Context) ([]int, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	assert.Zero(t, m.len())

	v, err := m.get(context.Background(), key, func(context.Context) ([]int, error) { return []int{7}, nil })
	require.NoError(t, err)
	assert.Equal(t, []int{7}, v)

	v, err = m.get(context.Background(), key, func(context.Context) ([]int, error) {
		t.Fatal("cached value must be reused")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{7}, v)
}

func TestMemoStoresNil(t *testing.T) {
	m := newMemo[string, *int]()
	calls := 0
	fetch := func(context.Context) (*int, error) {
		calls++
		return nil, nil
	}

	for range 3 {
		v, err := m.get(context.Background(), "missing", fetch)
		require.NoError(t, err)
		assert.Nil(t, v)
	}
	assert.Equal(t, 1, calls)
}
