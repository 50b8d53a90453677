// Package backup exports and imports prediction snapshots as JSON files.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"nflpicks/tracker/internal/apperr"
	"nflpicks/tracker/internal/models"
	"nflpicks/tracker/internal/predictions"
)

// File is the export document.
type File struct {
	Predictions           map[string]string            `json:"predictions"`
	PostseasonPredictions models.PostseasonPredictions `json:"postseasonPredictions"`
	TeamRecordPredictions map[string]models.Record     `json:"teamRecordPredictions"`
	Version               string                       `json:"version"`
	ExportDate            string                       `json:"exportDate"`
	Timestamp             *time.Time                   `json:"timestamp"`
}

// ImportStrategy controls how an imported file combines with local state.
type ImportStrategy string

const (
	ImportReplace ImportStrategy = "replace"
	ImportMerge   ImportStrategy = "merge"
)

// ParseImportStrategy validates a strategy name; "" means replace.
func ParseImportStrategy(s string) (ImportStrategy, error) {
	switch st := ImportStrategy(s); st {
	case "":
		return ImportReplace, nil
	case ImportReplace, ImportMerge:
		return st, nil
	default:
		return "", fmt.Errorf("unknown import strategy %q", s)
	}
}

// Export captures the store at now.
func Export(store *predictions.Store, now time.Time) File {
	snap := store.Snapshot(now)
	ts := snap.Timestamp
	return File{
		Predictions:           snap.Predictions,
		PostseasonPredictions: snap.PostseasonPredictions,
		TeamRecordPredictions: snap.TeamRecordPredictions,
		Version:               snap.Version,
		ExportDate:            ts.Format("2006-01-02"),
		Timestamp:             &ts,
	}
}

// Payload converts the file into a sync payload.
func (f File) Payload() models.Payload {
	p := models.Payload{
		Predictions:           f.Predictions,
		PostseasonPredictions: f.PostseasonPredictions,
		TeamRecordPredictions: f.TeamRecordPredictions,
		Version:               f.Version,
	}
	if f.Timestamp != nil {
		p.Timestamp = *f.Timestamp
	}
	return p.Clone()
}

// Write encodes f as indented JSON.
func Write(w io.Writer, f File) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	return nil
}

// Read decodes a backup, rejecting files without a version or timestamp.
func Read(r io.Reader) (File, error) {
	var f File
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return File{}, &apperr.DataFormatError{Source: "backup file", Err: err}
	}
	if f.Version == "" {
		return File{}, &apperr.DataFormatError{Source: "backup file", Err: errors.New("missing version")}
	}
	if f.Timestamp == nil || f.Timestamp.IsZero() {
		return File{}, &apperr.DataFormatError{Source: "backup file", Err: errors.New("missing timestamp")}
	}
	return f, nil
}

// Import applies f to store.
func Import(ctx context.Context, store *predictions.Store, f File, strategy ImportStrategy) error {
	incoming := f.Payload()
	switch strategy {
	case ImportReplace, "":
		return store.Replace(ctx, incoming)
	case ImportMerge:
		return store.Replace(ctx, predictions.Merge(store.Snapshot(time.Now()), incoming))
	default:
		return fmt.Errorf("unknown import strategy %q", strategy)
	}
}
