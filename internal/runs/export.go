package runs

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"memeflow/internal/fileutil"
	"memeflow/internal/services"
)

// SnapshotFileName is the exported snapshot inside a run's metadata dir.
const SnapshotFileName = "snapshot.json"

// MarshalSnapshot renders snapshot as indented JSON with a trailing newline.
func MarshalSnapshot(snapshot Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return append(data, '\n'), nil
}

// ExportSnapshot writes snapshot to path atomically.
func ExportSnapshot(snapshot Snapshot, path string) error {
	data, err := MarshalSnapshot(snapshot)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "runs", "export", "snapshot could not be encoded", err)
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return services.Wrap(services.ErrPersistence, "runs", "export", "snapshot could not be written", err)
	}
	return nil
}

// SnapshotPath returns where Export writes the snapshot for id.
func (s *Store) SnapshotPath(id string) string {
	return filepath.Join(s.RunDir(id), "metadata", SnapshotFileName)
}

// Export writes snapshot into its run's metadata directory.
func (s *Store) Export(snapshot Snapshot) (string, error) {
	if err := ValidateID(snapshot.RunID); err != nil {
		return "", err
	}
	path := s.SnapshotPath(snapshot.RunID)
	if err := ExportSnapshot(snapshot, path); err != nil {
		return "", err
	}
	return path, nil
}
