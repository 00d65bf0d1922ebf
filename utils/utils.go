package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

func ErrorWithTrace(e error) error {
	if e == nil {
		return nil
	}
	_, file, line, _ := runtime.Caller(1)
	return fmt.Errorf("%s:%d\n\t%w", file, line, e)
}

// WriteFileAtomic writes data to a temp file next to path and renames it
// into place, so readers never observe a partially written file.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ErrorWithTrace(err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return ErrorWithTrace(err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return ErrorWithTrace(err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return ErrorWithTrace(err)
	}
	if err := tmp.Close(); err != nil {
		return ErrorWithTrace(err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return ErrorWithTrace(err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return ErrorWithTrace(err)
	}
	return nil
}
