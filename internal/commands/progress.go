package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/dwsmith1983/redisctl/pkg/types"
)

// terminalSink renders progress events as one colored line each on stderr,
// keeping stdout clean for the payload.
func terminalSink(w io.Writer) types.ProgressSink {
	return func(ev types.ProgressEvent) {
		elapsed := ev.Elapsed.Truncate(time.Second)
		switch ev.Kind {
		case types.ProgressPolling:
			fmt.Fprintf(w, "  %s %s (%s elapsed)\n",
				color.CyanString("..."), describeState(ev.State), elapsed)
		case types.ProgressRateLimited:
			fmt.Fprintf(w, "  %s rate limited, retrying in %s (%s elapsed)\n",
				color.YellowString("!"), ev.RetryAfter.Truncate(time.Second), elapsed)
		case types.ProgressCompleted:
			fmt.Fprintf(w, "  %s %s completed in %s\n",
				color.GreenString("✓"), fmtHandle(ev.Handle), elapsed)
		case types.ProgressFailed:
			fmt.Fprintf(w, "  %s %s failed: %s\n",
				color.RedString("✗"), fmtHandle(ev.Handle), ev.Reason)
		case types.ProgressTimedOut:
			fmt.Fprintf(w, "  %s %s still running after %s, giving up\n",
				color.RedString("✗"), fmtHandle(ev.Handle), elapsed)
		case types.ProgressCancelled:
			fmt.Fprintf(w, "  %s %s cancelled after %s\n",
				color.YellowString("○"), fmtHandle(ev.Handle), elapsed)
		}
	}
}

func describeState(s types.OpState) string {
	if s == types.StateQueued {
		return "waiting in queue"
	}
	return "still processing"
}
