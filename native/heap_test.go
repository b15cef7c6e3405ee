package native

import (
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/nativeguard"
	"github.com/wippyai/nativeguard/errors"
)

func availableHeaps(t *testing.T) map[Kind]nativeguard.Heap {
	t.Helper()
	heaps := map[Kind]nativeguard.Heap{KindGo: NewGoHeap()}
	if h, err := NewMmapHeap(); err == nil {
		heaps[KindMmap] = h
	}
	if h, err := NewLibcHeap(); err == nil {
		heaps[KindLibc] = h
	}
	return heaps
}

func TestHeap_AllocZeroedAndWritable(t *testing.T) {
	for kind, h := range availableHeaps(t) {
		t.Run(string(kind), func(t *testing.T) {
			b, err := h.Alloc(1024)
			require.NoError(t, err)
			require.Equal(t, 1024, b.Len())
			assert.NotZero(t, b.Addr)

			for i, c := range b.Data {
				if c != 0 {
					t.Fatalf("byte %d = %#x, want zero", i, c)
				}
			}
			copy(b.Data, "native")
			assert.Equal(t, "native", string(b.Data[:6]))

			require.NoError(t, h.Free(b))
		})
	}
}

func TestHeap_RejectsBadSize(t *testing.T) {
	for kind, h := range availableHeaps(t) {
		t.Run(string(kind), func(t *testing.T) {
			_, err := h.Alloc(0)
			require.Error(t, err)
			assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseNative, Kind: errors.KindInvalidInput})
		})
	}
}

func TestHeap_FreeZeroBlock(t *testing.T) {
	for kind, h := range availableHeaps(t) {
		t.Run(string(kind), func(t *testing.T) {
			assert.NoError(t, h.Free(nativeguard.Block{}))
		})
	}
}

func TestGoHeap_DoubleFree(t *testing.T) {
	h := NewGoHeap()
	b, err := h.Alloc(16)
	require.NoError(t, err)
	require.NoError(t, h.Free(b))
	assert.Error(t, h.Free(b))
}

func TestMmapHeap_Unsupported(t *testing.T) {
	if runtime.GOOS != "windows" {
		t.Skip("mmap is available")
	}
	_, err := NewMmapHeap()
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseNative, Kind: errors.KindUnsupported})
}

func TestTracked_Counts(t *testing.T) {
	tr := Track(NewGoHeap())

	blocks := make([]nativeguard.Block, 0, 5)
	for i := 0; i < 5; i++ {
		b, err := tr.Alloc(32)
		require.NoError(t, err)
		blocks = append(blocks, b)
	}
	assert.EqualValues(t, 5, tr.Allocs())
	assert.EqualValues(t, 5, tr.Live())

	for _, b := range blocks[:3] {
		require.NoError(t, tr.Free(b))
	}
	assert.EqualValues(t, 3, tr.Frees())
	assert.EqualValues(t, 2, tr.Live())

	// Failed operations are not counted.
	_, err := tr.Alloc(-1)
	require.Error(t, err)
	require.Error(t, tr.Free(blocks[0]))
	assert.EqualValues(t, 5, tr.Allocs())
	assert.EqualValues(t, 3, tr.Frees())
}

func TestTracked_Concurrent(t *testing.T) {
	tr := Track(Default())

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				b, err := tr.Alloc(64)
				if err != nil {
					t.Errorf("Alloc: %v", err)
					return
				}
				if err := tr.Free(b); err != nil {
					t.Errorf("Free: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 400, tr.Allocs())
	assert.EqualValues(t, 0, tr.Live())
}

func TestOpen(t *testing.T) {
	h, err := Open(KindGo)
	require.NoError(t, err)
	assert.IsType(t, &GoHeap{}, h)

	_, err = Open("bogus")
	assert.Error(t, err)
}
