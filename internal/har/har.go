// Package har provides a reference RequestManager: recording every
// collaborator-issued HTTP-shaped request during an install and writing
// them out as a HAR (HTTP Archive) file when the pipeline's har step runs.
package har

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one recorded request, correlated by a generated id so repeated
// requests to the same URL within an install are still distinguishable.
type Entry struct {
	ID             string
	URL            string
	Method         string
	StartedAt      time.Time
	Duration       time.Duration
	StatusCode     int
}

// RequestManager records requests over the lifetime of one install and
// can flush them to a HAR file or drop them entirely.
type RequestManager struct {
	Dir string

	mu      sync.Mutex
	entries []Entry
}

// Request records a completed request and returns a fresh id for it; the
// same id is stored with the entry. Reference callers ignore it.
func (m *RequestManager) Request(url, method string, started time.Time, duration time.Duration, statusCode int) string {
	id := uuid.NewString()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, Entry{
		ID:         id,
		URL:        url,
		Method:     method,
		StartedAt:  started,
		Duration:   duration,
		StatusCode: statusCode,
	})
	return id
}

// ClearCache discards every recorded entry, e.g. between a bailed-out
// attempt and a real one.
func (m *RequestManager) ClearCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
}

type harLog struct {
	Log harBody `json:"log"`
}

type harBody struct {
	Version string     `json:"version"`
	Creator harCreator `json:"creator"`
	Entries []harEntry `json:"entries"`
}

type harCreator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type harEntry struct {
	StartedDateTime string        `json:"startedDateTime"`
	Time            float64       `json:"time"`
	Request         harRequest    `json:"request"`
	Response        harResponse   `json:"response"`
	Cache           struct{}      `json:"cache"`
	Timings         harTimings    `json:"timings"`
	Comment         string        `json:"comment,omitempty"`
}

type harRequest struct {
	Method string `json:"method"`
	URL    string `json:"url"`
}

type harResponse struct {
	Status int `json:"status"`
}

type harTimings struct {
	Wait float64 `json:"wait"`
}

// SaveHar implements pipeline.HarWriter: writes the recorded entries as a
// HAR file named filename under Dir.
func (m *RequestManager) SaveHar(ctx context.Context, filename string) error {
	m.mu.Lock()
	entries := append([]Entry{}, m.entries...)
	m.mu.Unlock()

	body := harLog{Log: harBody{
		Version: "1.2",
		Creator: harCreator{Name: "lockstep", Version: "1"},
	}}
	for _, e := range entries {
		ms := float64(e.Duration.Microseconds()) / 1000
		body.Log.Entries = append(body.Log.Entries, harEntry{
			StartedDateTime: e.StartedAt.UTC().Format(time.RFC3339Nano),
			Time:            ms,
			Request:         harRequest{Method: e.Method, URL: e.URL},
			Response:        harResponse{Status: e.StatusCode},
			Timings:         harTimings{Wait: ms},
			Comment:         e.ID,
		})
	}

	raw, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding har: %w", err)
	}
	if err := os.WriteFile(filepath.Join(m.Dir, filename), raw, 0o644); err != nil {
		return fmt.Errorf("writing har file: %w", err)
	}
	return nil
}
