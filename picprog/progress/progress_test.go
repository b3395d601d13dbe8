package progress

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker(t *testing.T) {
	t.Run("no repeats and non-decreasing", func(t *testing.T) {
		rec := &Recorder{}
		tr := NewTracker(rec)

		tr.Start()
		for done := 0; done <= 1000; done++ {
			tr.Update(done, 1000)
		}
		tr.Update(10, 1000) // going back is ignored
		tr.Finish()

		require.Len(t, rec.Values, 101)
		for i, v := range rec.Values {
			assert.Equal(t, i, v)
		}
		assert.Equal(t, 1, rec.Dones)
	})

	t.Run("small totals jump", func(t *testing.T) {
		rec := &Recorder{}
		tr := NewTracker(rec)

		tr.Start()
		tr.Update(1, 3)
		tr.Update(3, 3)
		tr.Finish()

		assert.Equal(t, []int{0, 33, 100}, rec.Values)
	})

	t.Run("clamped and zero total ignored", func(t *testing.T) {
		rec := &Recorder{}
		tr := NewTracker(rec)

		tr.Update(5, 0)
		tr.Update(7, 2)
		tr.Finish()

		assert.Equal(t, []int{100}, rec.Values)
	})

	t.Run("done without finishing", func(t *testing.T) {
		rec := &Recorder{}
		tr := NewTracker(rec)
		tr.Start()
		tr.Update(1, 2)
		tr.Done()

		assert.Equal(t, []int{0, 50}, rec.Values)
		assert.Equal(t, 1, rec.Dones)
	})

	t.Run("nil reporter", func(t *testing.T) {
		tr := NewTracker(nil)
		assert.NotPanics(t, func() {
			tr.Start()
			tr.Finish()
		})
	})
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.Progress(0)
	c.Progress(42)
	c.Progress(100)
	c.Done()

	assert.Equal(t, "[ 0%]\b\b\b\b\b[42%]\b\b\b\b\b[100%]\b\b\b\b\b\b", buf.String())
}

func TestClient(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTracker(NewClient(&buf))

	tr.Start()
	tr.Update(1, 2)
	tr.Finish()

	assert.Equal(t, "@000\n@050\n@100\n@FIN\n", buf.String())
}

func TestLogBuffer(t *testing.T) {
	lb := NewLogBuffer(3)
	assert.Empty(t, lb.Recent(0))

	for _, line := range []string{"a", "b", "c", "d"} {
		lb.Add(line)
	}

	assert.Equal(t, []string{"b", "c", "d"}, lb.Recent(0))
	assert.Equal(t, []string{"c", "d"}, lb.Recent(2))
}

func TestLogHandler(t *testing.T) {
	lb := NewLogBuffer(10)
	logger := slog.New(NewLogHandler(lb, slog.LevelInfo)).With("op", "write")

	logger.Debug("Hidden")
	logger.Info("Programming", "rows", 32)
	logger.Error("Verify failed")

	assert.Equal(t, []string{
		"INF Programming op=write rows=32",
		"ERR Verify failed op=write",
	}, lb.Recent(0))
}

func screenRow(sim tcell.SimulationScreen, y int) string {
	cells, width, _ := sim.GetContents()
	var sb strings.Builder
	for x := 0; x < width; x++ {
		cell := cells[y*width+x]
		if len(cell.Runes) == 0 {
			sb.WriteRune(' ')
			continue
		}
		sb.WriteRune(cell.Runes[0])
	}
	return strings.TrimRight(sb.String(), " ")
}

func TestScreen(t *testing.T) {
	sim := tcell.NewSimulationScreen("UTF-8")
	s, err := NewScreenWith(sim, "Writing blink.hex")
	require.NoError(t, err)

	assert.Equal(t, "Writing blink.hex", screenRow(sim, 0))
	assert.True(t, strings.HasSuffix(screenRow(sim, 2), "]   0%"), screenRow(sim, 2))

	slog.New(s.LogHandler(slog.LevelInfo)).Info("Bulk erase done")
	s.Progress(50)

	bar := screenRow(sim, 2)
	assert.Equal(t, 25, strings.Count(bar, "█"))
	assert.Equal(t, 25, strings.Count(bar, "░"))
	assert.True(t, strings.HasSuffix(bar, "  50%"), bar)
	assert.Equal(t, "INF Bulk erase done", screenRow(sim, 4))

	s.Done()
	assert.NotPanics(t, func() {
		s.Progress(60)
		s.Done()
	})
}
