package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartNewPaperResetsCounters(t *testing.T) {
	s := New()
	for _, name := range []string{"First", "Second", "Third"} {
		s.StartNewPaper(name)
		snap := s.Snapshot()
		assert.Equal(t, 0, snap.HighlightCount)
		assert.Equal(t, 0, snap.NoteCount)
		assert.True(t, snap.IsReading)
		assert.Equal(t, name, snap.ActivePaperName)

		s.RecordHighlight()
		s.RecordHighlight()
		s.RecordNote()
	}
	snap := s.Snapshot()
	assert.Equal(t, 2, snap.HighlightCount)
	assert.Equal(t, 1, snap.NoteCount)
	assert.Len(t, snap.KnownPapers, 3)
}

func TestStartNewPaperIgnoresBlankName(t *testing.T) {
	s := New()
	s.StartNewPaper("   ")
	snap := s.Snapshot()
	assert.False(t, snap.IsReading)
	assert.False(t, snap.HasActivePaper())
}

func TestStopReadingKeepsActivePaper(t *testing.T) {
	s := New()
	s.StartNewPaper("Attention Is All You Need")
	s.StopReading()

	snap := s.Snapshot()
	assert.False(t, snap.IsReading)
	assert.Equal(t, "Attention Is All You Need", snap.ActivePaperName)
	assert.False(t, s.IsReading())
}

func TestStartExistingPaperKeepsCounters(t *testing.T) {
	s := New()
	s.StartNewPaper("Local")
	s.RecordHighlight()

	refs := &PaperRefs{PageID: "p", HighlightsID: "h", NotesID: "n"}
	s.StartExistingPaper(PaperInfo{Name: "Remote", Refs: refs})

	snap := s.Snapshot()
	assert.Equal(t, 1, snap.HighlightCount)
	assert.Equal(t, "Remote", snap.ActivePaperName)
	require.NotNil(t, snap.ActivePaperRefs)
	assert.Equal(t, "h", snap.ActivePaperRefs.HighlightsID)

	refs.HighlightsID = "mutated"
	assert.Equal(t, "h", s.Snapshot().ActivePaperRefs.HighlightsID)
}

func TestUpdatePaperInfoAttachesRefs(t *testing.T) {
	s := New()
	s.StartNewPaper("Fresh")
	s.UpdatePaperInfo(PaperInfo{Name: "Fresh", Refs: &PaperRefs{PageID: "p", HighlightsID: "h", NotesID: "n"}})

	snap := s.Snapshot()
	require.NotNil(t, snap.ActivePaperRefs)
	assert.True(t, snap.ActivePaperRefs.Complete())
	require.Len(t, snap.KnownPapers, 1)
	require.NotNil(t, snap.KnownPapers[0].Refs)
	assert.Equal(t, "p", snap.KnownPapers[0].Refs.PageID)
}

func TestAddKnownPaperSkipsDuplicatePages(t *testing.T) {
	s := New()
	info := PaperInfo{Name: "A", Refs: &PaperRefs{PageID: "page-a"}}
	s.AddKnownPaper(info)
	s.AddKnownPaper(info)
	s.AddKnownPaper(PaperInfo{Name: "Local only"})
	assert.Len(t, s.Snapshot().KnownPapers, 2)
}

func TestRecordHighlightStampsTime(t *testing.T) {
	s := New()
	fixed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	s.StartNewPaper("Timed")
	s.RecordHighlight()

	snap := s.Snapshot()
	require.NotNil(t, snap.LastHighlightAt)
	assert.Equal(t, fixed, *snap.LastHighlightAt)
}

func TestSnapshotIsIsolated(t *testing.T) {
	s := New()
	s.StartNewPaper("Isolated")
	snap := s.Snapshot()
	snap.KnownPapers[0].Name = "changed"
	assert.Equal(t, "Isolated", s.Snapshot().KnownPapers[0].Name)
}

func TestConcurrentMutatorsDoNotLoseUpdates(t *testing.T) {
	s := New()
	s.StartNewPaper("Stress")

	const workers = 8
	const perWorker = 500
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				s.RecordHighlight()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				s.RecordNote()
				_ = s.Snapshot()
			}
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.Equal(t, workers*perWorker, snap.HighlightCount)
	assert.Equal(t, workers*perWorker, snap.NoteCount)
}

func TestScreenString(t *testing.T) {
	assert.Equal(t, "reading", Reading.String())
	assert.Equal(t, "unknown", Screen(42).String())
}
