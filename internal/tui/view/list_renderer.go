package view

import (
	"strings"

	tuitree "github.com/glabrego/mug-cli/internal/tui/tree"
)

type ListRenderInput struct {
	Rows           []tuitree.Row
	Start          int
	End            int
	VisiblePos     int
	TreeCursor     int
	CollapsedHosts map[string]bool

	RenderHostLine func(left string, count int, active bool) string
	RenderURLLine  func(entryIndex, visiblePos int, active bool) string
}

func RenderListBody(in ListRenderInput) string {
	if len(in.Rows) == 0 || in.Start >= in.End || in.Start < 0 {
		return ""
	}
	var b strings.Builder
	visiblePos := in.VisiblePos
	for i := in.Start; i < in.End && i < len(in.Rows); i++ {
		row := in.Rows[i]
		switch row.Kind {
		case tuitree.RowHost:
			prefix := "▾ "
			if in.CollapsedHosts[row.Host] {
				prefix = "▸ "
			}
			b.WriteString(in.RenderHostLine(prefix+row.Label, row.Count, i == in.TreeCursor))
			b.WriteString("\n")
		case tuitree.RowURL:
			b.WriteString(in.RenderURLLine(row.EntryIndex, visiblePos, i == in.TreeCursor))
			b.WriteString("\n")
			visiblePos++
		}
	}
	return b.String()
}
