package patient

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Store = (*fakeStore)(nil)

// fakeStore delegates to a MemoryStore unless a hook is set.
type fakeStore struct {
	*MemoryStore
	existsFn func(ctx context.Context, regNumber string) (bool, error)
	createFn func(ctx context.Context, record *Record) error
}

func newFakeStore() *fakeStore {
	return &fakeStore{MemoryStore: NewMemoryStore()}
}

func (f *fakeStore) Exists(ctx context.Context, regNumber string) (bool, error) {
	if f.existsFn != nil {
		return f.existsFn(ctx, regNumber)
	}
	return f.MemoryStore.Exists(ctx, regNumber)
}

func (f *fakeStore) Create(ctx context.Context, record *Record) error {
	if f.createFn != nil {
		return f.createFn(ctx, record)
	}
	return f.MemoryStore.Create(ctx, record)
}

func sequence(values ...int) func(int) int {
	i := 0
	return func(int) int {
		v := values[i%len(values)]
		i++
		return v
	}
}

func TestAllocator_Format(t *testing.T) {
	alloc := NewAllocator(NewMemoryStore(), 0)

	for i := 0; i < 500; i++ {
		reg, err := alloc.Allocate(context.Background())
		require.NoError(t, err)
		assert.Len(t, reg, 6)
		assert.True(t, ValidRegNumber(reg), "unexpected registration number %q", reg)
	}
}

func TestAllocator_Bounds(t *testing.T) {
	alloc := NewAllocator(NewMemoryStore(), 1)

	alloc.intN = func(int) int { return 0 }
	reg, err := alloc.Allocate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "100000", reg)

	alloc.intN = func(n int) int { return n - 1 }
	reg, err = alloc.Allocate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "999999", reg)
}

func TestAllocator_RetriesOnCollision(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Create(context.Background(), &Record{RegNumber: "100001"}))
	require.NoError(t, store.Create(context.Background(), &Record{RegNumber: "100002"}))

	alloc := NewAllocator(store, 10)
	alloc.intN = sequence(1, 2, 3)

	reg, err := alloc.Allocate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "100003", reg)
}

func TestAllocator_Exhausted(t *testing.T) {
	calls := 0
	store := newFakeStore()
	store.existsFn = func(context.Context, string) (bool, error) {
		calls++
		return true, nil
	}

	alloc := NewAllocator(store, 3)
	_, err := alloc.Allocate(context.Background())

	assert.ErrorIs(t, err, ErrAllocationExhausted)
	assert.Equal(t, 3, calls)
}

func TestAllocator_StorageErrorIsNotRetried(t *testing.T) {
	boom := errors.New("connection reset")
	calls := 0
	store := newFakeStore()
	store.existsFn = func(context.Context, string) (bool, error) {
		calls++
		return false, boom
	}

	alloc := NewAllocator(store, 5)
	_, err := alloc.Allocate(context.Background())

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}
