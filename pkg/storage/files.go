package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// File extensions, one per persisted entity.
const (
	ExperimentExt  = ".exp"
	MeasurementExt = ".mes"
	ContainerExt   = ".cont"
)

var (
	// ErrValidation is wrapped by every rejected constructor argument or setter value.
	ErrValidation = errors.New("validation failed")
	// ErrExists is returned when a save would overwrite a file or folder without permission.
	ErrExists = errors.New("already exists")
	// ErrWrongExtension is returned when loading a file with another entity's extension.
	ErrWrongExtension = errors.New("wrong file extension")
	// ErrIndexOutOfRange is returned by index and slice access on children.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrUnknownFrequency is returned when a frequency is not configured on a measurement.
	ErrUnknownFrequency = errors.New("frequency does not exist in this measurement")
	// ErrUnknownChannel is returned for channel names outside ch1, ch2, ch3 and gen.
	ErrUnknownChannel = errors.New("unknown channel")
	// ErrLoaded is returned when acquiring into a measurement that was loaded from disk.
	ErrLoaded = errors.New("cannot acquire into a loaded measurement")
	// ErrNotFound is returned by catalog lookups.
	ErrNotFound = errors.New("not found")
)

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// FormatDate renders a creation time the way entity file names use it.
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%s_%06d", t.Format("2006-01-02_15-04-05"), t.Nanosecond()/1000)
}

func checkExtension(path, ext string) error {
	if filepath.Ext(path) != ext {
		return fmt.Errorf("%w: load %q file, not %q", ErrWrongExtension, strings.TrimPrefix(ext, "."), path)
	}
	return nil
}

// withExtension replaces the last extension of name with ext.
func withExtension(name, ext string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + ext
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// prepareSave refuses to replace an existing file or folder unless overwrite
// is set and creates the folder.
func prepareSave(file, folder string, overwrite bool) error {
	if !overwrite {
		if isFile(file) {
			return fmt.Errorf("%w: file %q", ErrExists, file)
		}
		if folder != "" && isDir(folder) {
			return fmt.Errorf("%w: folder %q", ErrExists, folder)
		}
	}
	if folder != "" {
		if err := os.MkdirAll(folder, 0o755); err != nil {
			return fmt.Errorf("failed to create folder: %w", err)
		}
	}
	return nil
}

// writeJSON serializes v to path and syncs it to disk.
func writeJSON(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync file: %w", err)
	}
	return f.Close()
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}
	return nil
}
