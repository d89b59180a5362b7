package audit

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndSnapshotOrder(t *testing.T) {
	s := NewSink(nil)
	s.Append("c1", "", EventStart)
	s.Append("c1", "ag-1", EventDraftCreated)
	s.Append("c2", "", EventStart)

	snap := s.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, EventStart, snap[0].Event)
	assert.Equal(t, "ag-1", snap[1].AgreementID)
	assert.Equal(t, "c2", snap[2].CorrelationID)
	assert.False(t, snap[0].Timestamp.IsZero())
}

func TestSnapshotIsIndependent(t *testing.T) {
	s := NewSink(nil)
	s.Append("c1", "", EventStart)
	snap := s.Snapshot()
	snap[0].Event = "tampered"
	s.Append("c1", "", EventEnd)

	assert.Len(t, snap, 1)
	assert.Equal(t, EventStart, s.Snapshot()[0].Event)
}

func TestForCorrelationFilters(t *testing.T) {
	s := NewSink(nil)
	s.Append("c1", "", EventStart)
	s.Append("c2", "", EventStart)
	s.Append("c1", "", EventEnd)

	got := s.ForCorrelation("c1")
	require.Len(t, got, 2)
	assert.Equal(t, EventEnd, got[1].Event)
	assert.Empty(t, s.ForCorrelation("missing"))
}

func TestConcurrentAppend(t *testing.T) {
	s := NewSink(nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Append(fmt.Sprintf("c%d", i), "", EventStart)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 800, s.Len())
	assert.Len(t, s.ForCorrelation("c3"), 100)
}
