package ui

import (
	"bytes"
	"sync"

	"github.com/lowaak/smart-trainer/ble-telemetry/internal/events"
)

const maxLogLines = 1000

// LogBuffer is an io.Writer keeping the most recent log lines for the log pane.
type LogBuffer struct {
	mu      sync.RWMutex
	partial []byte
	lines   []string
	event   *events.Event[string]
}

func NewLogBuffer() *LogBuffer {
	return &LogBuffer{
		lines: make([]string, 0, maxLogLines),
		event: events.NewEvent[string](false),
	}
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	b.partial = append(b.partial, p...)
	var complete []string
	for {
		i := bytes.IndexByte(b.partial, '\n')
		if i < 0 {
			break
		}
		complete = append(complete, string(b.partial[:i]))
		b.partial = b.partial[i+1:]
	}
	b.lines = append(b.lines, complete...)
	if len(b.lines) > maxLogLines {
		b.lines = b.lines[len(b.lines)-maxLogLines:]
	}
	b.mu.Unlock()

	for _, line := range complete {
		b.event.Notify(line)
	}
	return len(p), nil
}

// Tail returns the last n complete lines.
func (b *LogBuffer) Tail(n int) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n <= 0 {
		return nil
	}
	start := max(0, len(b.lines)-n)
	result := make([]string, len(b.lines)-start)
	copy(result, b.lines[start:])
	return result
}

// Listen registers a channel receiving every new line.
func (b *LogBuffer) Listen(ch chan<- string) func() {
	return b.event.Listen(ch)
}
