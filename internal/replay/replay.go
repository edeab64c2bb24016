//
// Copyright (C) 2024 Dmitry Kolesnikov
//
// This file may be modified and distributed under the terms
// of the MIT license.  See the LICENSE file for details.
// https://github.com/fogfish/gamesession
//

// Package replay sends queued event files to the event bus.
package replay

import (
	"context"
	"io/fs"
	"log/slog"
)

// Max number of entries accepted by a single PutEvents call
const BATCH_SIZE = 10

type Service struct {
	api EventBus
	bus string
}

func New(api EventBus, bus string) *Service {
	return &Service{
		api: api,
		bus: bus,
	}
}

// PutEvents sends every file of the directory to the event bus in batches.
// It stops at the first failed batch.
func (s *Service) PutEvents(ctx context.Context, fsys fs.FS, dir string) error {
	files, err := listFiles(fsys, dir)
	if err != nil {
		return err
	}

	total := len(files)
	for i := 0; i < total; i += BATCH_SIZE {
		batch, err := loadWindow(fsys, dir, files, i, BATCH_SIZE)
		if err != nil {
			return err
		}

		if err := SendBatch(ctx, s.api, s.bus, batch); err != nil {
			slog.Error("batch failed", "dir", dir, "offset", i, "err", err)
			return err
		}

		slog.Debug("batch sent", "dir", dir, "offset", i, "size", len(batch))
	}

	slog.Info("events sent", "dir", dir, "bus", s.bus, "count", total)

	return nil
}
