// Package codec serializes snapshots for the durable stores: JSON, zstd compressed.
package codec

import (
	"fmt"

	"optcache/internal/types"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
)

var enc, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
var dec, _ = zstd.NewReader(nil)

// EncodeSnapshot marshals the snapshot as JSON and compresses it.
func EncodeSnapshot(s types.Snapshot) ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return enc.EncodeAll(b, make([]byte, 0, len(b))), nil
}

// DecodeSnapshot reverses EncodeSnapshot. Corrupt input yields an error, never a partial snapshot.
func DecodeSnapshot(in []byte) (types.Snapshot, error) {
	raw, err := dec.DecodeAll(in, nil)
	if err != nil {
		return types.Snapshot{}, fmt.Errorf("decompress snapshot: %w", err)
	}
	var s types.Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return types.Snapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if !s.Entity.Valid() {
		return types.Snapshot{}, fmt.Errorf("snapshot has unknown entity %q", s.Entity)
	}
	return s, nil
}
