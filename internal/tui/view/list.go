package view

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/glabrego/mug-cli/internal/mug"
	tuitheme "github.com/glabrego/mug-cli/internal/tui/theme"
)

var reANSICodes = regexp.MustCompile(`\x1b\[[0-9;]*m`)

type URLLineParams struct {
	URL        mug.MonitoredURL
	Phase      string
	Compact    bool
	Indent     bool
	VisiblePos int
	Active     bool
	Width      int
}

// RenderURLLine renders "#id url" with the phase badge on the right edge.
func RenderURLLine(p URLLineParams, th tuitheme.Theme) string {
	cursorMarker := " "
	if p.Active {
		cursorMarker = ">"
	}
	indent := ""
	if p.Indent {
		indent = "  "
	}
	prefix := fmt.Sprintf("%s%s #%-4d ", indent, cursorMarker, p.URL.ID)
	badge := "[" + th.Badge(p.Phase) + "]"
	available := p.Width - visibleLen(prefix) - 1 - visibleLen(badge)
	if available < 1 {
		available = 1
	}

	label := strings.TrimSpace(p.URL.URL)
	if p.Compact {
		label = CompactURLLabel(p.URL)
	}
	label = truncateRunes(label, available)
	styled := th.StyleURL(p.Phase, p.URL.DiffOutput != "", label)
	gap := p.Width - visibleLen(prefix) - visibleLen(label) - visibleLen(badge)
	if gap < 1 {
		gap = 1
	}
	return th.RenderActiveLine(p.Active, prefix+styled+strings.Repeat(" ", gap)+badge)
}

func RenderHostLine(left string, count, width int, active bool, th tuitheme.Theme) string {
	if count <= 0 {
		return th.RenderActiveLine(active, left)
	}
	right := th.HostCount.Render(fmt.Sprintf("%d", count))
	available := width - visibleLen(right) - 1
	if available < 1 {
		available = 1
	}
	left = truncateRunes(left, available)
	gap := width - visibleLen(left) - visibleLen(right)
	if gap < 1 {
		gap = 1
	}
	return th.RenderActiveLine(active, th.Section.Render(left)+strings.Repeat(" ", gap)+right)
}

// CompactURLLabel drops the scheme so flat lists stay readable.
func CompactURLLabel(u mug.MonitoredURL) string {
	label := strings.TrimSpace(u.URL)
	if label == "" {
		return "(no url)"
	}
	for _, scheme := range []string{"https://", "http://"} {
		if strings.HasPrefix(label, scheme) {
			label = strings.TrimPrefix(label, scheme)
			break
		}
	}
	return strings.TrimSuffix(label, "/")
}

func truncateRunes(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return strings.Repeat(".", maxLen)
	}
	runes := []rune(s)
	return string(runes[:maxLen-3]) + "..."
}

func visibleLen(s string) int {
	return utf8.RuneCountInString(stripANSIText(s))
}

func stripANSIText(s string) string {
	return reANSICodes.ReplaceAllString(s, "")
}
