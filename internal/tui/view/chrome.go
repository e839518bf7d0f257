package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	tuitheme "github.com/glabrego/mug-cli/internal/tui/theme"
)

func Toolbar(nerdMode, inDetail bool) string {
	if nerdMode {
		if inDetail {
			return "j/k: scroll | [ ]: prev/next | s: scan | d: diff | i: init ref | m: merge | f/c: fetch ref/current | v: preview ref/current | o: open URL | y: copy URL | esc/backspace: back | ?: help | q: quit"
		}
		return "j/k/arrows: move | g/G: top/bottom | pgup/pgdown: jump | h/l: fold host | enter: details | a: add | x: delete | s: scan | S/R: scan all current/reference | d: diff | i: init ref | m: merge | p/P: poll/stop | u: feed | M: scan mode | w: auto ref | C: compact | r: refresh | ?: help | q: quit"
	}
	if inDetail {
		return "j/k scroll | [ ] prev/next | s scan | d diff | v preview | esc back | ? help"
	}
	return "j/k move | enter open | a add | s scan | d diff | S scan all | r refresh | ? help"
}

// FooterInfo is the engine and model state summarised in the footer.
type FooterInfo struct {
	Mode        string
	ScanMode    string
	FeedOn      bool
	AutoRef     bool
	Pollers     int
	BulkPending int
	Shown       int
	LastSync    time.Time
	Now         time.Time
}

func CompactFooter(info FooterInfo, th tuitheme.Theme) string {
	parts := []string{
		th.MetaLabel.Render("mode") + " " + th.MetaValue.Render(info.Mode),
		th.MetaLabel.Render("scan") + " " + th.MetaValue.Render(info.ScanMode),
		th.MetaLabel.Render("feed") + " " + th.MetaValue.Render(onOff(info.FeedOn)),
		th.MetaValue.Render(fmt.Sprintf("%d urls", info.Shown)),
	}
	if info.Pollers > 0 {
		parts = append(parts, th.StateLoad.Render(fmt.Sprintf("%d polling", info.Pollers)))
	}
	if info.BulkPending > 0 {
		parts = append(parts, th.StateLoad.Render(fmt.Sprintf("%d queued", info.BulkPending)))
	}
	parts = append(parts, th.MetaLabel.Render("synced")+" "+th.MetaValue.Render(SyncLabel(info.Now, info.LastSync)))
	return strings.Join(parts, " • ")
}

func NerdFooter(info FooterInfo) string {
	return fmt.Sprintf("Mode: %s | Scan: %s | Feed: %s | Auto ref: %s | Showing: %d | Pollers: %d | Bulk queue: %d | Synced: %s",
		info.Mode, info.ScanMode, onOff(info.FeedOn), onOff(info.AutoRef), info.Shown, info.Pollers, info.BulkPending, SyncLabel(info.Now, info.LastSync))
}

// SyncLabel describes when the listing was last loaded from the backend.
func SyncLabel(now, last time.Time) string {
	if last.IsZero() {
		return "never"
	}
	if now.IsZero() {
		now = time.Now()
	}
	if !last.Before(now) {
		return "just now"
	}
	return humanize.RelTime(last, now, "ago", "from now")
}

func CompactMessage(loading bool, hasWarning bool, status, warning string, th tuitheme.Theme) string {
	state := "idle"
	if loading {
		state = "loading"
	}
	if hasWarning {
		state = "warning"
	}
	main := "Ready"
	if status != "" {
		main = status
	} else if hasWarning {
		main = warning
	}
	stateLabel := th.StateIdle.Render("state")
	switch state {
	case "warning":
		stateLabel = th.StateWarn.Render("state")
	case "loading":
		stateLabel = th.StateLoad.Render("state")
	}
	return fmt.Sprintf("%s: %s | %s", stateLabel, state, th.MetaValue.Render(main))
}

func NerdMessage(status, warning, state, startup string) string {
	return fmt.Sprintf("Status: %s | Warning: %s | State: %s | Startup: %s", status, warning, state, startup)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
