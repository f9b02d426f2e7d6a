package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DiskStore keeps artifacts under root/<task_id>/<name>.
type DiskStore struct {
	root string
}

func NewDiskStore(root string) (*DiskStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("artifact dir is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &DiskStore{root: root}, nil
}

func (s *DiskStore) Put(_ context.Context, taskID, name string, content []byte) error {
	taskID, name, err := cleanKey(taskID, name)
	if err != nil {
		return err
	}
	target := filepath.Join(s.root, taskID, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}

func (s *DiskStore) Get(_ context.Context, taskID, name string) ([]byte, error) {
	taskID, name, err := cleanKey(taskID, name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.root, taskID, filepath.FromSlash(name)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return data, nil
}

func (s *DiskStore) List(_ context.Context, taskID string) ([]string, error) {
	taskID, _, err := cleanKey(taskID, "x")
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(s.root, taskID)
	var out []string
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(p, ".tmp") {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

// GetURL returns a file:// URL for the artifact.
func (s *DiskStore) GetURL(_ context.Context, taskID, name string) (string, error) {
	taskID, name, err := cleanKey(taskID, name)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(filepath.Join(s.root, taskID, filepath.FromSlash(name)))
	if err != nil {
		return "", err
	}
	return "file://" + filepath.ToSlash(abs), nil
}
