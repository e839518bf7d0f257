package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/glabrego/mug-cli/internal/mug"
)

// Client is the mug backend surface used by the engine.
type Client interface {
	List(ctx context.Context) ([]mug.MonitoredURL, error)
	AddURL(ctx context.Context, rawURL string) (int64, error)
	DeleteURL(ctx context.Context, id int64) error
	TriggerScan(ctx context.Context, id int64) (string, error)
	ScanAll(ctx context.Context, kind string) ([]int64, error)
	CurrentImage(ctx context.Context, id int64) (string, error)
	ReferenceImage(ctx context.Context, id int64) (string, error)
	StoredImage(ctx context.Context, id int64) (string, error)
	InitReference(ctx context.Context, id int64) error
	Merge(ctx context.Context, id int64) error
	Diff(ctx context.Context, id int64) (mug.DiffResult, error)
	PollUpdate(ctx context.Context) (*mug.Update, error)
}

type Repository interface {
	ReplaceURLs(ctx context.Context, urls []mug.MonitoredURL) error
	ListURLs(ctx context.Context) ([]mug.MonitoredURL, error)
	LoadPreferences(ctx context.Context) (map[string]string, error)
	SavePreferences(ctx context.Context, prefs map[string]string) error
}

// Service is the backend the engine talks to: the mug client with the
// listing mirrored into the local cache.
type Service struct {
	Client
	repo Repository
	log  *slog.Logger
}

func NewService(client Client, repo Repository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{Client: client, repo: repo, log: log}
}

// List fetches the listing and caches it. A cache write failure is logged;
// the fresh listing is still returned.
func (s *Service) List(ctx context.Context) ([]mug.MonitoredURL, error) {
	urls, err := s.Client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch urls from mug: %w", err)
	}
	if err := s.repo.ReplaceURLs(ctx, urls); err != nil {
		s.log.Warn("cache listing failed", "error", err)
	}
	return urls, nil
}

func (s *Service) ListCached(ctx context.Context) ([]mug.MonitoredURL, error) {
	urls, err := s.repo.ListURLs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load urls from cache: %w", err)
	}
	return urls, nil
}

func (s *Service) SaveSnapshot(ctx context.Context, urls []mug.MonitoredURL) error {
	if err := s.repo.ReplaceURLs(ctx, urls); err != nil {
		return fmt.Errorf("save urls to cache: %w", err)
	}
	return nil
}

type UIPreferences struct {
	FeedEnabled        bool
	ScanMode           string
	AutoFetchReference bool
}

const (
	prefFeedEnabled        = "feed_enabled"
	prefScanMode           = "scan_mode"
	prefAutoFetchReference = "auto_fetch_reference"
)

// LoadUIPreferences overlays stored preferences on defaults. Unparseable
// values keep the default.
func (s *Service) LoadUIPreferences(ctx context.Context, defaults UIPreferences) (UIPreferences, error) {
	stored, err := s.repo.LoadPreferences(ctx)
	if err != nil {
		return defaults, fmt.Errorf("load preferences from cache: %w", err)
	}
	prefs := defaults
	if v, ok := stored[prefFeedEnabled]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			prefs.FeedEnabled = b
		}
	}
	if v, ok := stored[prefAutoFetchReference]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			prefs.AutoFetchReference = b
		}
	}
	if v := stored[prefScanMode]; v == "fire" || v == "poll" {
		prefs.ScanMode = v
	}
	return prefs, nil
}

func (s *Service) SaveUIPreferences(ctx context.Context, prefs UIPreferences) error {
	err := s.repo.SavePreferences(ctx, map[string]string{
		prefFeedEnabled:        strconv.FormatBool(prefs.FeedEnabled),
		prefScanMode:           prefs.ScanMode,
		prefAutoFetchReference: strconv.FormatBool(prefs.AutoFetchReference),
	})
	if err != nil {
		return fmt.Errorf("save preferences to cache: %w", err)
	}
	return nil
}
