package seen

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetAddReportsFirstInsertOnly(t *testing.T) {
	t.Parallel()

	s := New("a")
	require.False(t, s.Add("a"))
	require.True(t, s.Add("b"))
	require.False(t, s.Add("b"))
	require.Equal(t, 2, s.Len())
	require.True(t, s.Contains("b"))
}

func TestSetRemoveReleasesClaim(t *testing.T) {
	t.Parallel()

	s := New()
	require.True(t, s.Add("hash"))
	s.Remove("hash")
	require.False(t, s.Contains("hash"))
	require.True(t, s.Add("hash"))
}

func TestSetSortedIsStable(t *testing.T) {
	t.Parallel()

	s := New("c", "a", "b")
	require.Equal(t, []string{"a", "b", "c"}, s.Sorted())
	require.Empty(t, New().Sorted())
}

func TestSetConcurrentAddSingleWinner(t *testing.T) {
	t.Parallel()

	s := New()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Add("same") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), wins.Load())
	require.Equal(t, 1, s.Len())
}
