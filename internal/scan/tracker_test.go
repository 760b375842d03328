package scan

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker_NewerTokenSupersedes(t *testing.T) {
	tr := NewTracker()

	first := tr.Begin("tab-1")
	assert.True(t, tr.Current(first))

	second := tr.Begin("tab-1")
	assert.False(t, tr.Current(first))
	assert.True(t, tr.Current(second))
	assert.NotEqual(t, first.PageID, second.PageID)

	other := tr.Begin("tab-2")
	assert.True(t, tr.Current(second))
	assert.True(t, tr.Current(other))
}

func TestTracker_ForgetNeverRevivesOldTokens(t *testing.T) {
	tr := NewTracker()
	old := tr.Begin("tab-1")
	tr.Forget("tab-1")
	assert.False(t, tr.Current(old))

	fresh := tr.Begin("tab-1")
	assert.False(t, tr.Current(old))
	assert.True(t, tr.Current(fresh))
}

func TestTracker_Concurrent(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Current(tr.Begin("tab"))
		}()
	}
	wg.Wait()

	last := tr.Begin("tab")
	assert.Equal(t, uint64(51), last.Generation)
}

func TestTracker_SettleReleasesCurrentKey(t *testing.T) {
	tr := NewTracker()

	tok := tr.Begin("tab-1")
	assert.Equal(t, 1, tr.Len())
	assert.True(t, tr.Settle(tok))
	assert.Equal(t, 0, tr.Len())
	assert.False(t, tr.Current(tok))
	assert.False(t, tr.Settle(tok))

	fresh := tr.Begin("tab-1")
	assert.True(t, tr.Current(fresh))
	assert.False(t, tr.Current(tok))
}

func TestTracker_SettleKeepsNewerScan(t *testing.T) {
	tr := NewTracker()

	old := tr.Begin("tab-1")
	newer := tr.Begin("tab-1")

	assert.False(t, tr.Settle(old))
	assert.Equal(t, 1, tr.Len())
	assert.True(t, tr.Current(newer))
	assert.True(t, tr.Settle(newer))
	assert.Equal(t, 0, tr.Len())
}
