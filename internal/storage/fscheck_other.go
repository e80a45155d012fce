//go:build !darwin && !linux

package storage

// detectFilesystemType reports an unknown filesystem; the local-disk check is
// skipped on platforms without statfs support.
func detectFilesystemType(path string) (string, error) {
	return "", nil
}
