package view

import (
	"strings"

	"github.com/glabrego/mug-cli/internal/mug"
)

type InlineImagePreviewState struct {
	Enabled bool
	Label   string
	Loading bool
	Raw     string
	Err     string
}

func DetailLines(
	u mug.MonitoredURL,
	info DetailInfo,
	contentWidth int,
	horizontalMargin int,
	wrap WrapFunc,
	preview InlineImagePreviewState,
) []string {
	lines := DetailMetaLines(u, info, contentWidth, wrap)
	lines = appendInlineImagePreview(lines, preview, contentWidth)
	return leftPadLines(lines, horizontalMargin)
}

func DetailMaxTop(linesLen, bodyHeight int) int {
	maxTop := linesLen - bodyHeight
	if maxTop < 0 {
		return 0
	}
	return maxTop
}

func RenderDetailLines(lines []string, top, maxLines int) string {
	if len(lines) == 0 {
		return ""
	}
	if top < 0 {
		top = 0
	}
	if top > len(lines)-1 {
		top = len(lines) - 1
	}
	end := len(lines)
	if maxLines > 0 && top+maxLines < end {
		end = top + maxLines
	}
	return strings.Join(lines[top:end], "\n") + "\n"
}

func appendInlineImagePreview(lines []string, preview InlineImagePreviewState, contentWidth int) []string {
	if !preview.Enabled {
		return lines
	}
	label := preview.Label
	if label == "" {
		label = "image"
	}
	previewLines := make([]string, 0, 3)
	switch {
	case preview.Loading:
		previewLines = append(previewLines, "Loading "+label+" preview...")
	case strings.TrimSpace(preview.Raw) != "":
		if ContainsKittyGraphicsEscape(preview.Raw) {
			previewLines = append(previewLines, strings.TrimRight(preview.Raw, "\r\n"))
		} else {
			previewLines = centerLines(strings.Split(strings.TrimRight(preview.Raw, "\r\n"), "\n"), contentWidth)
		}
	case strings.TrimSpace(preview.Err) != "":
		previewLines = append(previewLines, "Preview of "+label+" unavailable: "+strings.TrimSpace(preview.Err))
	}
	if len(previewLines) == 0 {
		return lines
	}
	out := make([]string, 0, len(lines)+len(previewLines)+2)
	out = append(out, lines...)
	out = append(out, "", "Preview ("+label+"):")
	return append(out, previewLines...)
}

func leftPadLines(lines []string, padding int) []string {
	if padding <= 0 || len(lines) == 0 {
		return lines
	}
	prefix := strings.Repeat(" ", padding)
	out := make([]string, len(lines))
	for i, line := range lines {
		if ContainsKittyGraphicsEscape(line) {
			out[i] = line
			continue
		}
		out[i] = prefix + line
	}
	return out
}

func centerLines(lines []string, width int) []string {
	if width <= 0 || len(lines) == 0 {
		return lines
	}
	out := make([]string, len(lines))
	for i, line := range lines {
		visible := visibleLen(line)
		if visible >= width {
			out[i] = line
			continue
		}
		pad := (width - visible) / 2
		out[i] = strings.Repeat(" ", pad) + line
	}
	return out
}
