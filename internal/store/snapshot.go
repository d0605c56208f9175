package store

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"

	"schoolpulse/pkg/contracts/domain"
)

// WorkbookKey is the fixed key of the persisted workbook snapshot
const WorkbookKey = "schoolpulse.workbook.v1"

const snapshotVersion = 1

// ErrCorruptSnapshot is returned when a persisted snapshot cannot be decoded or fails its checksum
var ErrCorruptSnapshot = errors.New("corrupt snapshot")

// snapshotEnvelope wraps the encoded workbook with a format version and integrity hash
type snapshotEnvelope struct {
	Version  uint8           `json:"version"`
	SavedAt  time.Time       `json:"saved_at"`
	Checksum string          `json:"checksum"` // hex blake2b-256 of Workbook
	Workbook json.RawMessage `json:"workbook"`
}

// EncodeWorkbook serializes wb into a checksummed snapshot
func EncodeWorkbook(wb domain.Workbook, savedAt time.Time) ([]byte, error) {
	payload, err := json.Marshal(wb)
	if err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	sum := blake2b.Sum256(payload)

	data, err := json.Marshal(snapshotEnvelope{
		Version:  snapshotVersion,
		SavedAt:  savedAt.UTC(),
		Checksum: hex.EncodeToString(sum[:]),
		Workbook: payload,
	})
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeWorkbook verifies and decodes a snapshot written by EncodeWorkbook
func DecodeWorkbook(data []byte) (domain.Workbook, time.Time, error) {
	var env snapshotEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return domain.Workbook{}, time.Time{}, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if env.Version != snapshotVersion {
		return domain.Workbook{}, time.Time{}, fmt.Errorf("%w: unsupported version %d", ErrCorruptSnapshot, env.Version)
	}

	sum := blake2b.Sum256(env.Workbook)
	if hex.EncodeToString(sum[:]) != env.Checksum {
		return domain.Workbook{}, time.Time{}, fmt.Errorf("%w: checksum mismatch", ErrCorruptSnapshot)
	}

	var wb domain.Workbook
	if err := json.Unmarshal(env.Workbook, &wb); err != nil {
		return domain.Workbook{}, time.Time{}, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	return wb, env.SavedAt, nil
}
