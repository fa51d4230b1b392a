package storage

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

type PutInput struct {
	// Key names the object. Empty means a random name with Filename's extension.
	Key         string
	Filename    string
	ContentType string
	Size        int64
}

type PutResult struct {
	Key string
	URL string
}

type Storage interface {
	Put(ctx context.Context, r io.Reader, in PutInput) (PutResult, error)
	Delete(ctx context.Context, key string) error
}

func objectKey(in PutInput) string {
	if k := cleanKey(in.Key); k != "" {
		return k
	}
	return uuid.NewString() + safeExt(in.Filename)
}

// cleanKey keeps a relative, slash-separated key inside its root.
func cleanKey(k string) string {
	k = strings.TrimSpace(strings.ReplaceAll(k, "\\", "/"))
	if k == "" {
		return ""
	}
	k = strings.TrimLeft(filepath.ToSlash(filepath.Clean("/"+k)), "/")
	if k == "." {
		return ""
	}
	return k
}

func safeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".json", ".pdf", ".txt", ".html":
		return ext
	default:
		return ""
	}
}
