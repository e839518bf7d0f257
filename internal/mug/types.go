package mug

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// MonitoredURL is one tracked URL and its screenshot/diff state.
type MonitoredURL struct {
	ID         int64  `json:"id"`
	URL        string `json:"url"`
	Reference  string `json:"reference,omitempty"`
	Current    string `json:"current,omitempty"`
	DiffOutput string `json:"results,omitempty"`
	Status     Status `json:"status,omitempty"`
}

// Status is the backend's diff classification. The backend has sent it as a
// number, a bool and a string over time, so it is kept as text and never
// interpreted here.
type Status string

func (s *Status) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*s = ""
		return nil
	}
	if trimmed[0] == '"' {
		var str string
		if err := json.Unmarshal(trimmed, &str); err != nil {
			return err
		}
		*s = Status(str)
		return nil
	}
	*s = Status(trimmed)
	return nil
}

// DiffResult is the /pdiff response.
type DiffResult struct {
	Output string `json:"output"`
	Status Status `json:"status"`
}

// UpdateType tags the kind of change carried by an update-feed event.
type UpdateType int

const (
	UpdateReference UpdateType = 0
	UpdateCurrent   UpdateType = 1
	UpdateDiff      UpdateType = 2
)

// Update is a single pending change notification from /updates.
// Type is nil when the backend had nothing to report.
type Update struct {
	ID   int64       `json:"Id"`
	Type *UpdateType `json:"Type"`
	Data UpdateData  `json:"Data"`
}

type UpdateData struct {
	Reference string `json:"reference"`
	Current   string `json:"current"`
	Results   string `json:"results"`
	Status    Status `json:"status"`
}

// DecodeImage returns the raw bytes of an inline image payload. The backend
// emits "data::image/png;base64,..." (double colon) as well as the standard
// "data:image/png;base64,..." form.
func DecodeImage(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, fmt.Errorf("empty image payload")
	}
	if !strings.HasPrefix(payload, "data:") {
		return nil, fmt.Errorf("image payload is not inline data")
	}
	comma := strings.IndexByte(payload, ',')
	if comma < 0 {
		return nil, fmt.Errorf("malformed data URI")
	}
	header := payload[:comma]
	if !strings.HasSuffix(header, ";base64") {
		return nil, fmt.Errorf("unsupported data URI encoding")
	}
	b, err := base64.StdEncoding.DecodeString(payload[comma+1:])
	if err != nil {
		return nil, fmt.Errorf("decode base64 image: %w", err)
	}
	return b, nil
}

// IsRemoteImage reports whether the payload is a URL rather than inline data.
func IsRemoteImage(payload string) bool {
	p := strings.TrimSpace(payload)
	return strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")
}
