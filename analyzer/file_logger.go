package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/jbctechsolutions/agentsight/core"
	"github.com/jbctechsolutions/agentsight/filter"
)

// LogRotationConfig configures FileLogger's size-based rotation.
type LogRotationConfig struct {
	MaxFileSize       int64
	MaxFiles          int
	SizeCheckInterval uint64
}

// DefaultLogRotationConfig mirrors the original implementation's
// defaults: 10MB files, 5 kept, checked every 100 events.
func DefaultLogRotationConfig() LogRotationConfig {
	return LogRotationConfig{MaxFileSize: 10_000_000, MaxFiles: 5, SizeCheckInterval: 100}
}

// FileLogger appends every event it sees, as JSON, to a file. Binary
// data.data fields are hex-encoded before serialization. Events pass
// through unchanged.
type FileLogger struct {
	filePath string
	mu       sync.Mutex
	file     *os.File

	rotation   *LogRotationConfig
	eventCount uint64

	logger *core.Logger
}

// NewFileLogger opens filePath in append mode, creating it if needed.
func NewFileLogger(filePath string) (*FileLogger, error) {
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file %q: %w", filePath, err)
	}
	return &FileLogger{filePath: filePath, file: f, logger: core.NewLogger(true, false)}, nil
}

// NewFileLoggerWithRotation opens filePath in append mode with size-
// based rotation enabled.
func NewFileLoggerWithRotation(filePath string, cfg LogRotationConfig) (*FileLogger, error) {
	fl, err := NewFileLogger(filePath)
	if err != nil {
		return nil, err
	}
	fl.rotation = &cfg
	return fl, nil
}

// NewFileLoggerWithMaxSize is a convenience constructor for simple
// size-based rotation, expressed in megabytes.
func NewFileLoggerWithMaxSize(filePath string, maxSizeMB int64) (*FileLogger, error) {
	cfg := DefaultLogRotationConfig()
	cfg.MaxFileSize = maxSizeMB * 1_000_000
	return NewFileLoggerWithRotation(filePath, cfg)
}

func (f *FileLogger) Name() string { return "FileLogger" }

// Close flushes and closes the underlying file.
func (f *FileLogger) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.file.Close()
}

func (f *FileLogger) performRotation() {
	f.file.Sync()
	f.file.Close()

	for i := f.rotation.MaxFiles - 1; i >= 1; i-- {
		oldPath := fmt.Sprintf("%s.%d", f.filePath, i)
		newPath := fmt.Sprintf("%s.%d", f.filePath, i+1)
		if _, err := os.Stat(oldPath); err == nil {
			if err := os.Rename(oldPath, newPath); err != nil {
				f.logger.Warnf("FileLogger: failed to rotate %s to %s: %v", oldPath, newPath, err)
			}
		}
	}

	rotatedPath := f.filePath + ".1"
	if err := os.Rename(f.filePath, rotatedPath); err != nil {
		f.logger.Warnf("FileLogger: failed to rotate current file to %s: %v", rotatedPath, err)
	}

	newFile, err := os.OpenFile(f.filePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		f.logger.Warnf("FileLogger: failed to create new log file after rotation: %v", err)
		return
	}
	f.file = newFile

	cleanupPath := fmt.Sprintf("%s.%d", f.filePath, f.rotation.MaxFiles+1)
	if _, err := os.Stat(cleanupPath); err == nil {
		if err := os.Remove(cleanupPath); err != nil {
			f.logger.Warnf("FileLogger: failed to clean up old log file %s: %v", cleanupPath, err)
		}
	}
}

// dataToStringInPlace hex-encodes data.data if it looks binary,
// mutating a decoded JSON tree in place.
func dataToStringInPlace(eventJSON []byte) []byte {
	var parsed map[string]interface{}
	if err := json.Unmarshal(eventJSON, &parsed); err != nil {
		return eventJSON
	}
	if dataObj, ok := parsed["data"].(map[string]interface{}); ok {
		if dataField, ok := dataObj["data"]; ok {
			dataObj["data"] = filter.DataToString(dataField)
		}
	}
	fixed, err := json.Marshal(parsed)
	if err != nil {
		return eventJSON
	}
	return fixed
}

func (f *FileLogger) writeEvent(ev core.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.rotation != nil {
		f.eventCount++
		if f.eventCount%f.rotation.SizeCheckInterval == 0 {
			if info, err := os.Stat(f.filePath); err == nil {
				if info.Size() > f.rotation.MaxFileSize {
					f.performRotation()
				}
			}
		}
	}

	eventJSON, err := ev.ToJSON()
	if err != nil {
		eventJSON = fmt.Sprintf(`{"error":"failed to serialize event: %v"}`, err)
	} else {
		eventJSON = string(dataToStringInPlace([]byte(eventJSON)))
	}

	logLine := eventJSON + "\n"
	if _, err := f.file.WriteString(logLine); err != nil {
		f.logger.Warnf("FileLogger: failed to write to %s: %v", f.filePath, err)
		return
	}
	if err := f.file.Sync(); err != nil {
		f.logger.Warnf("FileLogger: failed to flush %s: %v", f.filePath, err)
	}
}

func (f *FileLogger) Process(ctx context.Context, in core.EventStream) (core.EventStream, error) {
	out := make(chan core.Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-in:
				if !ok {
					return
				}
				f.writeEvent(ev)
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
