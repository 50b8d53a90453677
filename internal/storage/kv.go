package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"nflpicks/tracker/internal/apperr"
)

// Keys used for locally persisted state.
const (
	KeyPredictions           = "nflPredictions"
	KeyPostseasonPredictions = "nflPostseasonPredictions"
	KeyTeamRecordPredictions = "nflTeamRecordPredictions"
	KeyCloudSyncConfig       = "nflCloudSyncConfig"
	KeyLastSyncTimestamp     = "nflLastSyncTimestamp"
)

// KV is a string-keyed persistence service.
type KV interface {
	// Get returns the stored value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// GetJSON decodes the value stored at key into dst. It returns found=false
// for absent keys and a DataFormatError when the stored text is malformed.
func GetJSON(ctx context.Context, kv KV, key string, dst any) (bool, error) {
	raw, ok, err := kv.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !ok || raw == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return true, &apperr.DataFormatError{Source: key, Err: err}
	}
	return true, nil
}

// SetJSON encodes v and stores it at key.
func SetJSON(ctx context.Context, kv KV, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := kv.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}
