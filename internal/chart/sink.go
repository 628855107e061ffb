package chart

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const ContentType = "image/svg+xml"

// Sink publishes a rendered chart and returns where it ended up.
type Sink interface {
	Publish(ctx context.Context, chart []byte) (string, error)
}

// FileSink writes the chart to a local path.
type FileSink struct {
	Path string
}

func (s FileSink) Publish(_ context.Context, chart []byte) (string, error) {
	path := strings.TrimSpace(s.Path)
	if path == "" {
		return "", errors.New("chart output path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create chart dir: %w", err)
		}
	}
	if err := os.WriteFile(path, chart, 0o644); err != nil {
		return "", fmt.Errorf("write chart: %w", err)
	}
	return path, nil
}

type uploader interface {
	Upload(ctx context.Context, object, contentType string, body io.Reader) (string, error)
}

// GCSSink uploads the chart as an object in the configured bucket.
type GCSSink struct {
	client uploader
	object string
}

func NewGCSSink(client uploader, object string) (*GCSSink, error) {
	if client == nil {
		return nil, errors.New("gcs client required")
	}
	if strings.TrimSpace(object) == "" {
		return nil, errors.New("chart object name is required")
	}
	return &GCSSink{client: client, object: object}, nil
}

func (s *GCSSink) Publish(ctx context.Context, chart []byte) (string, error) {
	uri, err := s.client.Upload(ctx, s.object, ContentType, bytes.NewReader(chart))
	if err != nil {
		return "", fmt.Errorf("upload chart: %w", err)
	}
	return uri, nil
}

// Holder keeps the most recent chart in memory for the viewer.
type Holder struct {
	mu         sync.RWMutex
	chart      []byte
	renderedAt time.Time
	now        func() time.Time
}

func NewHolder() *Holder {
	return &Holder{now: time.Now}
}

func (h *Holder) Publish(_ context.Context, chart []byte) (string, error) {
	copied := make([]byte, len(chart))
	copy(copied, chart)

	h.mu.Lock()
	h.chart = copied
	h.renderedAt = h.now().UTC()
	h.mu.Unlock()
	return "memory", nil
}

// Latest returns the last published chart; ok is false until one exists.
func (h *Holder) Latest() (chart []byte, renderedAt time.Time, ok bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.chart == nil {
		return nil, time.Time{}, false
	}
	return h.chart, h.renderedAt, true
}
