//
// Copyright (C) 2024 Dmitry Kolesnikov
//
// This file may be modified and distributed under the terms
// of the MIT license.  See the LICENSE file for details.
// https://github.com/fogfish/gamesession
//

package replay

import (
	"io/fs"
	"os"
	"strings"

	"github.com/fogfish/stream"
)

// Source resolves location of queued events into file system and directory.
// Location is either local directory or s3://bucket/prefix, options
// configure the s3 file system.
func Source(location string, opts ...stream.Option) (fs.FS, string, error) {
	if !strings.HasPrefix(location, "s3://") {
		return os.DirFS(location), ".", nil
	}

	bucket, prefix, _ := strings.Cut(strings.TrimPrefix(location, "s3://"), "/")

	s3fs, err := stream.NewFS(bucket, opts...)
	if err != nil {
		return nil, "", err
	}

	// s3 file system addresses directories by absolute path with trailing slash
	dir := "/" + strings.Trim(prefix, "/")
	if dir != "/" {
		dir += "/"
	}

	return s3fs, dir, nil
}
