package tree

import (
	"net/url"
	"sort"
	"strings"

	"github.com/glabrego/mug-cli/internal/mug"
)

type RowKind string

const (
	RowHost RowKind = "host"
	RowURL  RowKind = "url"
)

type Row struct {
	Kind       RowKind
	Label      string
	Host       string
	Count      int
	EntryIndex int
}

type BuildOptions struct {
	Compact        bool
	CollapsedHosts map[string]bool
}

type hostGroup struct {
	Host         string
	EntryIndices []int
}

// HostName is the grouping key for a monitored URL. Unparseable URLs fall
// into a shared bucket.
func HostName(u mug.MonitoredURL) string {
	parsed, err := url.Parse(strings.TrimSpace(u.URL))
	if err != nil || parsed.Hostname() == "" {
		return "other"
	}
	return strings.ToLower(parsed.Hostname())
}

// BuildRows lays out urls for the list view. Indices in the result point
// into urls, which is never reordered; compact mode keeps listing order.
func BuildRows(urls []mug.MonitoredURL, opts BuildOptions) []Row {
	if opts.Compact {
		rows := make([]Row, 0, len(urls))
		for i, u := range urls {
			rows = append(rows, Row{Kind: RowURL, Host: HostName(u), EntryIndex: i})
		}
		return rows
	}

	groups := buildGroups(urls)
	rows := make([]Row, 0, len(urls)+len(groups))
	for _, g := range groups {
		rows = append(rows, Row{
			Kind:  RowHost,
			Label: g.Host,
			Host:  g.Host,
			Count: len(g.EntryIndices),
		})
		if opts.CollapsedHosts[g.Host] {
			continue
		}
		for _, idx := range g.EntryIndices {
			rows = append(rows, Row{Kind: RowURL, Host: g.Host, EntryIndex: idx})
		}
	}
	return rows
}

func FirstURLRow(rows []Row) int {
	for i, row := range rows {
		if row.Kind == RowURL {
			return i
		}
	}
	return 0
}

func buildGroups(urls []mug.MonitoredURL) []hostGroup {
	groups := make([]hostGroup, 0, 16)
	index := make(map[string]int)
	for idx, u := range urls {
		host := HostName(u)
		gi, ok := index[host]
		if !ok {
			groups = append(groups, hostGroup{Host: host})
			gi = len(groups) - 1
			index[host] = gi
		}
		groups[gi].EntryIndices = append(groups[gi].EntryIndices, idx)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Host < groups[j].Host
	})
	return groups
}
