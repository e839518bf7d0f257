package view

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/glabrego/mug-cli/internal/mug"
)

type WrapFunc func(string, int) []string

// DetailInfo is the per-URL engine state shown next to the record.
type DetailInfo struct {
	Phase   string
	Pollers []string
}

func DetailMetaLines(u mug.MonitoredURL, info DetailInfo, width int, wrap WrapFunc) []string {
	title := fmt.Sprintf("#%d %s", u.ID, u.URL)
	lines := make([]string, 0, 16)
	lines = append(lines, wrap(title, width)...)
	lines = append(lines, strings.Repeat("=", max(1, min(width, len(title)))))
	lines = append(lines, "")

	lines = append(lines, "Phase: "+info.Phase)
	if len(info.Pollers) > 0 {
		lines = append(lines, "Polling: "+strings.Join(info.Pollers, ", "))
	}
	lines = append(lines, "Reference: "+ImageLabel(u.Reference))
	lines = append(lines, "Current: "+ImageLabel(u.Current))
	if u.Status != "" {
		lines = append(lines, wrap("Status: "+string(u.Status), width)...)
	}

	if u.DiffOutput != "" {
		lines = append(lines, "", "Diff:")
		lines = append(lines, wrap(u.DiffOutput, width)...)
	}
	return lines
}

// ImageLabel summarises an image payload without printing it.
func ImageLabel(payload string) string {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return "none"
	}
	if mug.IsRemoteImage(payload) {
		return "remote " + payload
	}
	data, err := mug.DecodeImage(payload)
	if err != nil {
		return fmt.Sprintf("unreadable (%s)", humanize.Bytes(uint64(len(payload))))
	}
	return "inline " + humanize.Bytes(uint64(len(data)))
}

// WrapText breaks text on word boundaries at width, splitting words longer
// than width.
func WrapText(text string, width int) []string {
	if width < 1 {
		return []string{text}
	}
	paragraphs := strings.Split(text, "\n")
	out := make([]string, 0, len(paragraphs))

	for _, p := range paragraphs {
		words := strings.Fields(p)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		line := ""
		for _, word := range words {
			for len(word) > width {
				if line != "" {
					out = append(out, line)
					line = ""
				}
				out = append(out, word[:width])
				word = word[width:]
			}
			if word == "" {
				continue
			}
			if line == "" {
				line = word
				continue
			}
			if len(line)+1+len(word) <= width {
				line += " " + word
				continue
			}
			out = append(out, line)
			line = word
		}
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
