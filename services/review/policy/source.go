// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package policy

import (
	"fmt"
	"os"
	"time"
)

// ConfigSource is the backing configuration of a Registry.
//
// Stat returns the change indicator compared on every Resolve. Read returns
// the raw rule document. Both must be safe for concurrent use.
type ConfigSource interface {
	Stat() (time.Time, error)
	Read() ([]byte, error)
	Name() string
}

// FileSource reads rules from a local file and uses its modification time
// as the change indicator.
type FileSource struct {
	Path string
}

// NewFileSource returns a source backed by the file at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// Stat returns the file's modification time.
func (f *FileSource) Stat() (time.Time, error) {
	info, err := os.Stat(f.Path)
	if err != nil {
		return time.Time{}, err
	}
	if info.IsDir() {
		return time.Time{}, fmt.Errorf("rules path %s is a directory", f.Path)
	}
	return info.ModTime(), nil
}

// Read returns the file contents.
func (f *FileSource) Read() ([]byte, error) {
	return os.ReadFile(f.Path)
}

// Name returns the file path.
func (f *FileSource) Name() string {
	return f.Path
}

// EmbeddedSource serves a fixed document compiled into the binary. Its
// change indicator never moves, so it is loaded once.
type EmbeddedSource struct {
	name    string
	data    []byte
	modTime time.Time
}

// NewEmbeddedSource wraps raw bytes as a ConfigSource.
func NewEmbeddedSource(name string, data []byte) *EmbeddedSource {
	return &EmbeddedSource{name: name, data: data, modTime: time.Unix(0, 0).UTC()}
}

func (e *EmbeddedSource) Stat() (time.Time, error) { return e.modTime, nil }

func (e *EmbeddedSource) Read() ([]byte, error) { return e.data, nil }

func (e *EmbeddedSource) Name() string { return e.name }
