package view

import (
	"fmt"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/glabrego/mug-cli/internal/mug"
	tuitheme "github.com/glabrego/mug-cli/internal/tui/theme"
	tuitree "github.com/glabrego/mug-cli/internal/tui/tree"
)

func TestRenderURLLine_BadgeAtRightEdge(t *testing.T) {
	th := tuitheme.Default()
	line := RenderURLLine(URLLineParams{
		URL:   mug.MonitoredURL{ID: 7, URL: "https://example.com/pricing"},
		Phase: tuitheme.PhaseScanning,
		Width: 60,
	}, th)
	plain := stripANSI(line)
	if !strings.HasPrefix(plain, "  #7    https://example.com/pricing") {
		t.Fatalf("unexpected line prefix: %q", plain)
	}
	if !strings.HasSuffix(plain, "[scan]") {
		t.Fatalf("expected phase badge at right edge, got %q", plain)
	}
	if visibleLen(plain) != 60 {
		t.Fatalf("expected line padded to width 60, got %d", visibleLen(plain))
	}
}

func TestRenderURLLine_TruncatesLongURLs(t *testing.T) {
	th := tuitheme.Default()
	line := RenderURLLine(URLLineParams{
		URL:    mug.MonitoredURL{ID: 1, URL: "https://example.com/" + strings.Repeat("a", 80)},
		Phase:  tuitheme.PhaseSettled,
		Active: true,
		Width:  40,
	}, th)
	plain := stripANSI(line)
	if !strings.Contains(plain, "...") || !strings.HasSuffix(plain, "[ok]") {
		t.Fatalf("expected truncated url with badge, got %q", plain)
	}
	if !strings.HasPrefix(plain, "> #1") {
		t.Fatalf("expected active cursor marker, got %q", plain)
	}
}

func TestCompactURLLabel(t *testing.T) {
	cases := map[string]string{
		"https://example.com/":   "example.com",
		"http://example.com/a/b": "example.com/a/b",
		"  ":                     "(no url)",
		"ftp://example.com/file": "ftp://example.com/file",
	}
	for raw, want := range cases {
		if got := CompactURLLabel(mug.MonitoredURL{URL: raw}); got != want {
			t.Fatalf("CompactURLLabel(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestRenderHostLine_CountOnRight(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)
	th := tuitheme.Default()
	got := RenderHostLine("▾ example.com", 3, 20, false, th)
	if got != "▾ example.com      3" {
		t.Fatalf("unexpected host line: %q", got)
	}
}

func TestRenderListBody(t *testing.T) {
	rows := []tuitree.Row{
		{Kind: tuitree.RowHost, Label: "a.example", Host: "a.example", Count: 1},
		{Kind: tuitree.RowURL, Host: "a.example", EntryIndex: 0},
		{Kind: tuitree.RowHost, Label: "b.example", Host: "b.example", Count: 2},
	}
	got := RenderListBody(ListRenderInput{
		Rows:           rows,
		Start:          0,
		End:            len(rows),
		TreeCursor:     1,
		CollapsedHosts: map[string]bool{"b.example": true},
		RenderHostLine: func(left string, count int, active bool) string {
			return fmt.Sprintf("H[%s|%d|%v]", left, count, active)
		},
		RenderURLLine: func(entryIndex, visiblePos int, active bool) string {
			return fmt.Sprintf("U[%d|%d|%v]", entryIndex, visiblePos, active)
		},
	})
	want := "H[▾ a.example|1|false]\nU[0|0|true]\nH[▸ b.example|2|false]\n"
	if got != want {
		t.Fatalf("unexpected list body:\n got %q\nwant %q", got, want)
	}
}
