package state

import (
	"github.com/glabrego/mug-cli/internal/mug"
	tuitree "github.com/glabrego/mug-cli/internal/tui/tree"
)

func ClampCursor(cursor, size int) int {
	if size <= 0 {
		return 0
	}
	if cursor >= size {
		return size - 1
	}
	if cursor < 0 {
		return 0
	}
	return cursor
}

// PageStep is how many rows a page jump moves for a terminal of height.
func PageStep(height int, hasStatus bool) int {
	if height <= 0 {
		return 10
	}
	headerLines := 6
	if hasStatus {
		headerLines += 2
	}
	step := height - headerLines
	if step < 3 {
		step = 3
	}
	return step
}

func CenteredWindow(totalRows, cursor, height int) (int, int) {
	if totalRows <= 0 {
		return 0, 0
	}
	if height <= 0 || totalRows <= height {
		return 0, totalRows
	}
	cursor = ClampCursor(cursor, totalRows)
	start := cursor - height/2
	if start < 0 {
		start = 0
	}
	maxStart := totalRows - height
	if start > maxStart {
		start = maxStart
	}
	return start, start + height
}

func URLRowsBefore(rows []tuitree.Row, end int) int {
	if end <= 0 || len(rows) == 0 {
		return 0
	}
	if end > len(rows) {
		end = len(rows)
	}
	count := 0
	for i := 0; i < end; i++ {
		if rows[i].Kind == tuitree.RowURL {
			count++
		}
	}
	return count
}

func IndexByID(urls []mug.MonitoredURL, id int64) int {
	for i, u := range urls {
		if u.ID == id {
			return i
		}
	}
	return -1
}

func TreeCursorForEntry(rows []tuitree.Row, entryIndex int) int {
	for i, row := range rows {
		if row.Kind == tuitree.RowURL && row.EntryIndex == entryIndex {
			return i
		}
	}
	return -1
}

// TreeCursorForHost returns the row of the host header, or -1.
func TreeCursorForHost(rows []tuitree.Row, host string) int {
	for i, row := range rows {
		if row.Kind == tuitree.RowHost && row.Host == host {
			return i
		}
	}
	return -1
}

// SelectedEntry returns the url index under treeCursor. Host rows select
// nothing.
func SelectedEntry(rows []tuitree.Row, treeCursor int) (int, bool) {
	if len(rows) == 0 {
		return 0, false
	}
	row := rows[ClampCursor(treeCursor, len(rows))]
	if row.Kind != tuitree.RowURL {
		return 0, false
	}
	return row.EntryIndex, true
}
