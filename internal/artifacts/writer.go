// Package artifacts persists pipeline outputs as stamped JSON files. Writes
// are atomic (temp file then rename) and the clock is injected, so one run's
// artifacts can be reproduced byte for byte given the same inputs.
package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Envelope wraps a payload with the identity needed to audit it later.
type Envelope struct {
	RunID       string    `json:"run_id"`
	Kind        string    `json:"kind"`
	GeneratedAt time.Time `json:"generated_at"`
	Payload     any       `json:"payload"`
}

// Writer emits artifacts under one directory.
type Writer struct {
	dir   string
	clock func() time.Time
	log   zerolog.Logger
}

// NewWriter builds a Writer rooted at dir. A nil clock uses wall time.
func NewWriter(dir string, clock func() time.Time) *Writer {
	if clock == nil {
		clock = time.Now
	}
	return &Writer{
		dir:   dir,
		clock: clock,
		log:   log.With().Str("component", "artifacts").Logger(),
	}
}

// WriteEnvelope stamps payload with run identity and writes it as
// <kind>-<runID>.json. It returns the written path.
func (w *Writer) WriteEnvelope(kind, runID string, payload any) (string, error) {
	env := Envelope{
		RunID:       runID,
		Kind:        kind,
		GeneratedAt: w.clock().UTC(),
		Payload:     payload,
	}
	name := fmt.Sprintf("%s-%s.json", kind, runID)
	return w.WriteJSON(name, env)
}

// WriteJSON marshals v as indented JSON and writes it atomically under the
// writer's directory. Map keys marshal in sorted order, so identical values
// produce identical bytes.
func (w *Writer) WriteJSON(name string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal artifact %s: %w", name, err)
	}
	data = append(data, '\n')

	path := filepath.Join(w.dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to finalize artifact: %w", err)
	}

	w.log.Debug().Str("path", path).Int("bytes", len(data)).Msg("artifact written")
	return path, nil
}
