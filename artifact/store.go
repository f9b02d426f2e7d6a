// Package artifact persists rendered documents and their metadata per task.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"
)

// Store defines operations for persisting task artifacts.
type Store interface {
	Put(ctx context.Context, taskID, name string, content []byte) error
	Get(ctx context.Context, taskID, name string) ([]byte, error)
	GetURL(ctx context.Context, taskID, name string) (string, error)
	List(ctx context.Context, taskID string) ([]string, error)
}

// TaskRemover is implemented by stores whose artifacts should live no longer
// than the task that produced them.
type TaskRemover interface {
	DeleteTask(ctx context.Context, taskID string) error
}

var (
	ErrNotFound    = errors.New("artifact not found")
	ErrInvalidName = errors.New("invalid artifact name")
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendDisk   = "disk"
	BackendS3     = "s3"
)

// Config selects and configures a backend.
type Config struct {
	Backend string
	Dir     string
	S3      S3Config
}

// Open builds the configured store.
func Open(cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendDisk:
		return NewDiskStore(cfg.Dir)
	case BackendS3:
		return NewS3Store(cfg.S3)
	default:
		return nil, fmt.Errorf("unknown artifact backend %q", cfg.Backend)
	}
}

// ContentType guesses the MIME type from the artifact name.
func ContentType(name string) string {
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// cleanKey validates taskID and name and returns them trimmed. Names may
// contain slashes but must stay inside the task's namespace.
func cleanKey(taskID, name string) (string, string, error) {
	taskID = strings.TrimSpace(taskID)
	name = strings.TrimLeft(strings.TrimSpace(name), "/")
	if taskID == "" {
		return "", "", fmt.Errorf("task_id is required")
	}
	if strings.ContainsAny(taskID, `/\`) || taskID == "." || taskID == ".." {
		return "", "", fmt.Errorf("task_id %q: %w", taskID, ErrInvalidName)
	}
	if name == "" {
		return "", "", fmt.Errorf("name is required")
	}
	if cleaned := path.Clean(name); cleaned != name || strings.HasPrefix(cleaned, "..") {
		return "", "", fmt.Errorf("name %q: %w", name, ErrInvalidName)
	}
	return taskID, name, nil
}

func objectKey(taskID, name string) string {
	return taskID + "/" + name
}
