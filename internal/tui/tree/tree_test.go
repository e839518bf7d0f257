package tree

import (
	"reflect"
	"testing"

	"github.com/glabrego/mug-cli/internal/mug"
)

func sampleURLs() []mug.MonitoredURL {
	return []mug.MonitoredURL{
		{ID: 1, URL: "https://zeta.example/a"},
		{ID: 2, URL: "https://Alpha.example/"},
		{ID: 3, URL: "https://zeta.example/b"},
		{ID: 4, URL: "::not a url"},
	}
}

func TestHostName(t *testing.T) {
	cases := map[string]string{
		"https://Alpha.example/x":  "alpha.example",
		"http://example.com:8080/": "example.com",
		"::not a url":              "other",
		"":                         "other",
	}
	for raw, want := range cases {
		if got := HostName(mug.MonitoredURL{URL: raw}); got != want {
			t.Fatalf("HostName(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestBuildRows_GroupsByHost(t *testing.T) {
	rows := BuildRows(sampleURLs(), BuildOptions{})

	var got []string
	for _, row := range rows {
		if row.Kind == RowHost {
			got = append(got, row.Host)
		}
	}
	want := []string{"alpha.example", "other", "zeta.example"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected host order: got=%v want=%v", got, want)
	}

	last := rows[len(rows)-3:]
	if last[0].Kind != RowHost || last[0].Count != 2 {
		t.Fatalf("expected zeta host row with count 2, got %+v", last[0])
	}
	if last[1].EntryIndex != 0 || last[2].EntryIndex != 2 {
		t.Fatalf("expected listing order within host, got %+v", last[1:])
	}
}

func TestBuildRows_CollapsedHostHidesURLs(t *testing.T) {
	rows := BuildRows(sampleURLs(), BuildOptions{CollapsedHosts: map[string]bool{"zeta.example": true}})
	for _, row := range rows {
		if row.Kind == RowURL && row.Host == "zeta.example" {
			t.Fatalf("expected no url rows for collapsed host, got %+v", rows)
		}
	}
	if len(rows) != 5 {
		t.Fatalf("expected 3 host rows and 2 url rows, got %d", len(rows))
	}
}

func TestBuildRows_CompactKeepsListingOrder(t *testing.T) {
	rows := BuildRows(sampleURLs(), BuildOptions{Compact: true})
	got := make([]int, 0, len(rows))
	for _, row := range rows {
		if row.Kind != RowURL {
			t.Fatalf("expected only url rows in compact mode, got %+v", row)
		}
		got = append(got, row.EntryIndex)
	}
	if !reflect.DeepEqual(got, []int{0, 1, 2, 3}) {
		t.Fatalf("unexpected compact order: %v", got)
	}
}

func TestFirstURLRow(t *testing.T) {
	rows := []Row{
		{Kind: RowHost, Host: "a.example"},
		{Kind: RowURL, EntryIndex: 7},
	}
	if got := FirstURLRow(rows); got != 1 {
		t.Fatalf("expected first url row at index 1, got %d", got)
	}
}
