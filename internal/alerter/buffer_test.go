package alerter

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/netspec/alertbatch/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_RepeatedAlertIsStoredOnce(t *testing.T) {
	b := NewBuffer()
	for i := 0; i < 3; i++ {
		b.Ingest(types.Alert{Type: "DISK", Device: "k1", Message: fmt.Sprintf("usage %d", 90+i)})
	}

	snapshot := b.Swap()
	require.NotNil(t, snapshot)
	require.Len(t, snapshot["DISK"], 1)

	got := snapshot["DISK"][types.Key("DISK", "k1", "")]
	assert.Equal(t, 3, got.Occurrences)
	assert.Equal(t, "usage 92", got.Message, "stored copy is refreshed by the latest report")
}

func TestBuffer_RepeatKeepsFirstFiredAt(t *testing.T) {
	b := NewBuffer()
	first := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	second := first.Add(5 * time.Minute)

	b.Ingest(types.Alert{Type: "DISK", Device: "k1", FiredAt: first})
	b.Ingest(types.Alert{Type: "DISK", Device: "k1", FiredAt: second})

	got := b.Swap()["DISK"][types.Key("DISK", "k1", "")]
	assert.Equal(t, first, got.FiredAt)
	assert.Equal(t, second, got.LastSeen)
}

func TestBuffer_SameKeyDifferentTypesAreDistinct(t *testing.T) {
	b := NewBuffer()
	b.Ingest(types.Alert{Type: "DISK", Device: "db-1"})
	b.Ingest(types.Alert{Type: "CPU", Device: "db-1"})

	snapshot := b.Swap()
	assert.Len(t, snapshot, 2)
	assert.Equal(t, 2, snapshot.Count())
}

func TestBuffer_SwapEmptyReturnsNil(t *testing.T) {
	b := NewBuffer()
	assert.Nil(t, b.Swap())

	b.Ingest(types.Alert{Type: "DISK", Device: "a"})
	require.NotNil(t, b.Swap())
	assert.Nil(t, b.Swap(), "buffer is empty after a swap")
}

func TestBuffer_Pending(t *testing.T) {
	b := NewBuffer()
	b.Ingest(types.Alert{Type: "DISK", Device: "a"})
	b.Ingest(types.Alert{Type: "DISK", Device: "b"})
	b.Ingest(types.Alert{Type: "CPU", Device: "a"})

	assert.Equal(t, map[types.AlertType]int{"DISK": 2, "CPU": 1}, b.Pending())
}

func TestBuffer_ConcurrentRepeatsConverge(t *testing.T) {
	b := NewBuffer()
	const workers, perWorker = 16, 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				b.Ingest(types.Alert{Type: "DISK", Device: "k1"})
			}
		}()
	}
	wg.Wait()

	snapshot := b.Swap()
	require.Len(t, snapshot["DISK"], 1)
	assert.Equal(t, workers*perWorker, snapshot["DISK"][types.Key("DISK", "k1", "")].Occurrences)
}

func TestBuffer_SwapUnderConcurrentIngest(t *testing.T) {
	b := NewBuffer()
	const workers, perWorker = 8, 500
	alertTypes := []types.AlertType{"DISK", "CPU", "NET"}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				b.Ingest(types.Alert{
					Type:   alertTypes[i%len(alertTypes)],
					Device: fmt.Sprintf("dev-%d", w),
					Entity: fmt.Sprintf("e-%d", i),
				})
			}
		}(w)
	}

	seen := make(map[string]int)
	collect := func(snapshot types.AlertsByType) {
		for _, set := range snapshot {
			for key := range set {
				seen[key]++
			}
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

loop:
	for {
		select {
		case <-done:
			break loop
		default:
			collect(b.Swap())
		}
	}
	collect(b.Swap())

	require.Len(t, seen, workers*perWorker)
	for key, n := range seen {
		assert.Equal(t, 1, n, "alert %s appeared in more than one snapshot", key)
	}
}

func TestBuffer_SnapshotIsDetached(t *testing.T) {
	b := NewBuffer()
	b.Ingest(types.Alert{Type: "DISK", Device: "a"})
	snapshot := b.Swap()

	b.Ingest(types.Alert{Type: "DISK", Device: "b"})
	assert.Len(t, snapshot["DISK"], 1, "reports after the swap go to the live buffer")
	assert.Equal(t, map[types.AlertType]int{"DISK": 1}, b.Pending())
}
