package progress

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/pkg/errors"
)

const (
	barWidth = 50
	logLines = 10
)

// Screen is a full screen progress bar on a tcell terminal, with the most
// recent log lines below it.
type Screen struct {
	screen tcell.Screen
	title  string
	logs   *LogBuffer
	closed bool
}

// NewScreen takes over the terminal. Done restores it.
func NewScreen(title string) (*Screen, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize terminal")
	}
	return NewScreenWith(screen, title)
}

// NewScreenWith draws on an existing, not yet initialized screen.
func NewScreenWith(screen tcell.Screen, title string) (*Screen, error) {
	if err := screen.Init(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize terminal")
	}
	screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	screen.Clear()

	s := &Screen{
		screen: screen,
		title:  title,
		logs:   NewLogBuffer(logLines),
	}
	s.render(0)
	return s, nil
}

// LogHandler returns a handler that shows records on the screen.
func (s *Screen) LogHandler(level slog.Leveler) slog.Handler {
	return NewLogHandler(s.logs, level)
}

func (s *Screen) Progress(percent int) {
	if s.closed {
		return
	}
	s.render(percent)
}

// Done releases the terminal.
func (s *Screen) Done() {
	if s.closed {
		return
	}
	s.closed = true
	s.screen.Fini()
}

func (s *Screen) render(percent int) {
	s.screen.Clear()

	s.drawText(0, 0, s.title, tcell.StyleDefault.Bold(true))

	filled := percent * barWidth / 100
	bar := "[" + strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled) + "]"
	s.drawText(0, 2, bar+fmt.Sprintf(" %3d%%", percent), tcell.StyleDefault.Foreground(tcell.ColorGreen))

	for i, line := range s.logs.Recent(logLines) {
		s.drawText(0, 4+i, line, tcell.StyleDefault.Foreground(tcell.ColorGray))
	}

	s.screen.Show()
}

func (s *Screen) drawText(x, y int, text string, style tcell.Style) {
	for _, r := range text {
		s.screen.SetContent(x, y, r, nil, style)
		x++
	}
}
