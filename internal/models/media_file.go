package models

import (
	"path/filepath"
	"strings"
	"time"
)

// MediaFile is a single media file discovered by the scanner.
// It passes through queues by value and is never mutated concurrently.
type MediaFile struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Name returns the base filename including extension.
func (m MediaFile) Name() string {
	return filepath.Base(m.Path)
}

// Ext returns the lowercase extension including the leading dot.
func (m MediaFile) Ext() string {
	return strings.ToLower(filepath.Ext(m.Path))
}
