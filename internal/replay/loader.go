//
// Copyright (C) 2024 Dmitry Kolesnikov
//
// This file may be modified and distributed under the terms
// of the MIT license.  See the LICENSE file for details.
// https://github.com/fogfish/gamesession
//

package replay

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/fogfish/gamesession/internal/events"
	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
)

// CountFiles counts files directly inside the directory.
// Sub-directories and their content are not counted.
func CountFiles(fsys fs.FS, dir string) (int, error) {
	files, err := listFiles(fsys, dir)
	if err != nil {
		return 0, err
	}

	return len(files), nil
}

// LoadBatch reads files [start, start+size) of the directory, ordered by
// file name, and projects each one into the event bus entry.
func LoadBatch(fsys fs.FS, dir string, start, size int) ([]events.Entry, error) {
	files, err := listFiles(fsys, dir)
	if err != nil {
		return nil, err
	}

	return loadWindow(fsys, dir, files, start, size)
}

func loadWindow(fsys fs.FS, dir string, files []string, start, size int) ([]events.Entry, error) {
	if start < 0 || size <= 0 || start >= len(files) {
		return nil, nil
	}

	end := min(start+size, len(files))
	seq := make([]events.Entry, 0, end-start)
	for _, file := range files[start:end] {
		evt, err := loadEntry(fsys, path.Join(dir, file))
		if err != nil {
			return nil, err
		}
		seq = append(seq, evt)
	}

	return seq, nil
}

// S3 file system lists every key under the prefix with names relative to
// the directory (e.g. /a.json, /nested/b.json, / for the folder marker),
// only direct children are files. Listing order is not guaranteed by
// fs.ReadDirFS implementations.
func listFiles(fsys fs.FS, dir string) ([]string, error) {
	seq, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("unable to list %s: %w", dir, err)
	}

	files := make([]string, 0, len(seq))
	for _, x := range seq {
		if x.IsDir() {
			continue
		}

		name := strings.TrimPrefix(x.Name(), "/")
		if name == "" || strings.Contains(name, "/") {
			continue
		}

		files = append(files, name)
	}
	slices.Sort(files)

	return files, nil
}

func loadEntry(fsys fs.FS, file string) (events.Entry, error) {
	b, err := fs.ReadFile(fsys, file)
	if err != nil {
		return events.Entry{}, fmt.Errorf("unable to read %s: %w", file, err)
	}

	if strings.HasSuffix(file, ".gz") {
		b, err = gunzip(b)
		if err != nil {
			return events.Entry{}, fmt.Errorf("unable to decompress %s: %w", file, err)
		}
	}

	evt, err := decodeEntry(b)
	if err != nil {
		return events.Entry{}, fmt.Errorf("invalid event %s: %w", file, err)
	}

	return evt, nil
}

func gunzip(b []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}

// decodeEntry keeps Source, Resources, DetailType and Detail,
// any other attribute of the file is dropped.
func decodeEntry(b []byte) (events.Entry, error) {
	var file struct {
		Source     string          `json:"Source"`
		Resources  []string        `json:"Resources"`
		DetailType string          `json:"DetailType"`
		Detail     json.RawMessage `json:"Detail"`
	}

	if err := json.Unmarshal(b, &file); err != nil {
		return events.Entry{}, err
	}

	detail, err := detailText(file.Detail)
	if err != nil {
		return events.Entry{}, err
	}

	return events.Entry{
		Source:     file.Source,
		Resources:  file.Resources,
		DetailType: file.DetailType,
		Detail:     detail,
	}, nil
}

// Detail is either JSON text encoded as string or an inline JSON object
func detailText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}

	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return "", err
		}
		return text, nil
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", err
	}

	return buf.String(), nil
}
