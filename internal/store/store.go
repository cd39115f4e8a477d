// Package store reads and writes the pipeline's JSON artifacts: the baseline
// catalog, the scrape batch and the merged catalog.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"

	"robotregistry/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrFileIO is matched by every FileIOError.
var ErrFileIO = errors.New("artifact file error")

// FileIOError reports a failed read, decode, encode or write of an artifact.
type FileIOError struct {
	Op   string // read, decode, encode, write
	Path string
	Err  error
}

func (e *FileIOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileIOError) Unwrap() error { return e.Err }

func (e *FileIOError) Is(target error) bool { return target == ErrFileIO }

// LoadBaseline reads the baseline catalog. A missing file yields an empty
// baseline so the first run can start from live data alone.
func LoadBaseline(path string) (*model.Baseline, error) {
	var b model.Baseline
	found, err := readJSON(path, &b)
	if err != nil {
		return nil, err
	}
	if !found {
		return &model.Baseline{Sites: []model.Site{}, Robots: []model.DeviceRecord{}}, nil
	}
	return &b, nil
}

// LoadBatch reads a scrape batch. It returns nil without error when the file
// does not exist.
func LoadBatch(path string) (*model.BatchResult, error) {
	var b model.BatchResult
	found, err := readJSON(path, &b)
	if err != nil || !found {
		return nil, err
	}
	return &b, nil
}

// LoadMerged reads a merged catalog. Unlike the other artifacts it must exist.
func LoadMerged(path string) (*model.MergedCatalog, error) {
	var c model.MergedCatalog
	found, err := readJSON(path, &c)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &FileIOError{Op: "read", Path: path, Err: fs.ErrNotExist}
	}
	return &c, nil
}

func SaveBatch(path string, b *model.BatchResult) error {
	return WriteJSON(path, b)
}

func SaveMerged(path string, c *model.MergedCatalog) error {
	return WriteJSON(path, c)
}

// WriteJSON encodes v with two-space indentation and replaces path
// atomically: the data goes to a temp file in the same directory which is
// then renamed over the target.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &FileIOError{Op: "encode", Path: path, Err: err}
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &FileIOError{Op: "write", Path: path, Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &FileIOError{Op: "write", Path: path, Err: err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &FileIOError{Op: "write", Path: path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &FileIOError{Op: "write", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &FileIOError{Op: "write", Path: path, Err: err}
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return &FileIOError{Op: "write", Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return &FileIOError{Op: "write", Path: path, Err: err}
	}
	return nil
}

func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, &FileIOError{Op: "read", Path: path, Err: err}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, &FileIOError{Op: "decode", Path: path, Err: err}
	}
	return true, nil
}
