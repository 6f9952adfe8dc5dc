package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineContext_Handle(t *testing.T) {
	a := NewPipelineContext(nil)
	b := NewPipelineContext(nil)

	assert.NotEmpty(t, a.Handle)
	assert.NotEqual(t, a.Handle, b.Handle)
}

func TestPipelineContext_EmitNeverBlocks(t *testing.T) {
	pc := NewPipelineContext(nil)

	for i := 0; i < 500; i++ {
		pc.Emit(ProgressEvent{Kind: EventPage, CurrentPage: i})
	}

	assert.Len(t, pc.Events(), cap(pc.events))

	pc.CloseEvents()
	pc.CloseEvents()
	pc.Emit(ProgressEvent{Kind: EventPage})
}

func TestPipelineContext_CancelFlag(t *testing.T) {
	pc := NewPipelineContext(nil)
	assert.False(t, pc.ResetCancel())

	pc.Cancel()
	assert.True(t, pc.Cancelled())
	assert.True(t, pc.ResetCancel())
	assert.False(t, pc.Cancelled())
}

func TestPipelineContext_Snapshot(t *testing.T) {
	pc := NewPipelineContext(nil)
	pc.setParsedMax(3)
	pc.addParsed()
	pc.setChapter("Vol.1 Ch.2", 20)
	pc.setPage(5)
	pc.setSizes(512, 2048)
	pc.addDownloaded()
	pc.Suspend("Ch.2", errors.New("reset"))

	s := pc.Snapshot()
	assert.Equal(t, Snapshot{
		CurrentPage:    5,
		PageMax:        20,
		ChapterLabel:   "Vol.1 Ch.2",
		Size:           512,
		MaxSize:        2048,
		Parsed:         1,
		ParsedMax:      3,
		Downloaded:     1,
		SuspendedCount: 1,
	}, s)
	assert.InDelta(t, 25.0, s.Percent(), 0.001)

	ev := <-pc.Events()
	require.Equal(t, EventError, ev.Kind)
	assert.Equal(t, "Ch.2", ev.Label)
}

func TestSnapshotPercentBounds(t *testing.T) {
	assert.Zero(t, Snapshot{Size: 10}.Percent())
	assert.Equal(t, 100.0, Snapshot{Size: 30, MaxSize: 20}.Percent())
}
