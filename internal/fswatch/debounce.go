package fswatch

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"

	"github.com/hostagent/hostagent/internal/protocol"
	"github.com/hostagent/hostagent/internal/timeutil"
)

// debounceWindow is the fixed (not sliding) coalescing interval from spec
// section 4.6. A burst lasting longer than this produces multiple
// notifications; that's deliberate, bounding client-observed latency.
const debounceWindow = 200 * time.Millisecond

// debounce blocks for one event, starts a fixed timer, accumulates paths
// until the timer fires, flushes, and repeats. Write failure on the
// shared sink is treated as client disconnection and silently stops the
// pipeline.
func (w *Watcher) debounce(ctx context.Context) {
	for {
		var first fsnotify.Event
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.pending:
			if !ok {
				return
			}
			first = event
		}

		paths := map[string]struct{}{first.Name: {}}
		timer := time.NewTimer(debounceWindow)

	collect:
		for {
			select {
			case <-ctx.Done():
				timeutil.StopAndDrainTimer(timer)
				return
			case <-timer.C:
				break collect
			case event, ok := <-w.pending:
				if !ok {
					timeutil.StopAndDrainTimer(timer)
					break collect
				}
				paths[event.Name] = struct{}{}
			}
		}

		if err := w.flush(paths); err != nil {
			return
		}
	}
}

func (w *Watcher) flush(paths map[string]struct{}) error {
	list := make([]string, 0, len(paths))
	for p := range paths {
		list = append(list, p)
	}
	if w.log != nil {
		w.log.Debugf("coalesced %s changed path(s) into one notification", humanize.Comma(int64(len(list))))
	}
	notification := protocol.NewNotification("fs.changed", map[string]any{"paths": list})
	return w.writer.WriteNotification(notification)
}
