package parser

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"
)

// bar is a single progress tracker. A nil *bar is valid and does nothing.
type bar struct {
	tracker *progress.Tracker
	done    chan struct{}
}

func startBar(w io.Writer, message string, total int) *bar {
	if w == nil || total <= 0 {
		return nil
	}

	pw := progress.NewWriter()
	pw.SetOutputWriter(w)
	pw.SetAutoStop(true)
	pw.SetTrackerLength(30)
	pw.SetUpdateFrequency(100 * time.Millisecond)
	pw.SetStyle(progress.StyleDefault)
	pw.Style().Visibility.ETA = true

	b := &bar{
		tracker: &progress.Tracker{Message: message, Total: int64(total), Units: progress.UnitsDefault},
		done:    make(chan struct{}),
	}
	// The tracker must be queued before Render starts or auto-stop ends it at once.
	pw.AppendTracker(b.tracker)
	go func() {
		pw.Render()
		close(b.done)
	}()
	return b
}

func (b *bar) increment() {
	if b == nil {
		return
	}
	b.tracker.Increment(1)
}

// finish marks the tracker done and waits for the renderer to exit.
func (b *bar) finish() {
	if b == nil {
		return
	}
	b.tracker.MarkAsDone()
	<-b.done
}
