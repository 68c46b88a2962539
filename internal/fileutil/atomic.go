package fileutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/giantswarm/kindenv/internal/sentinel"
)

// ErrEmptyDst is returned when a destination path is empty.
const ErrEmptyDst = sentinel.Error("destination path must not be empty")

// WriteStreamAtomic streams r to dst, creating parent directories as needed.
//
// Data is written to a temporary file in the same directory as dst, fsynced,
// then renamed to dst. On POSIX systems rename is atomic, so a reader (or a
// concurrent writer racing on the same destination) never observes a
// partially-written file at dst. If the write fails at any point, the
// temporary file is removed and dst is left untouched.
//
// The temporary file is created with the target mode before any data is
// written, avoiding a window where the file has broader permissions than
// intended.
func WriteStreamAtomic(dst string, r io.Reader, mode os.FileMode) (retErr error) {
	if dst == "" {
		return ErrEmptyDst
	}

	if err := EnsureDirForFile(dst); err != nil {
		return fmt.Errorf("prepare destination: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(dst), ".tmp-"+filepath.Base(dst)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		if retErr != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := tmpFile.Chmod(mode); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}

	if _, err := io.Copy(tmpFile, r); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write: %w", err)
	}

	// fsync before rename so a crash cannot leave the renamed file with
	// incomplete contents.
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("sync: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("rename temp file to destination: %w", err)
	}
	return nil
}
