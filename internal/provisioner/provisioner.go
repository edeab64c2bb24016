//
// Copyright (C) 2024 Dmitry Kolesnikov
//
// This file may be modified and distributed under the terms
// of the MIT license.  See the LICENSE file for details.
// https://github.com/fogfish/gamesession
//

// Package provisioner deploys the game session stack: bucket, lambda
// artifact, stack and the replay of queued events.
package provisioner

import (
	"context"
	"io/fs"
	"log/slog"
	"time"

	"github.com/fogfish/gamesession/internal/replay"
)

type Config struct {
	// AWS region of the bucket
	Region string

	BucketName string

	// Path to lambda artifact
	FileName string

	// Object key of the artifact, defaults to FileName
	ObjectKey string

	StackName    string
	TemplateBody string
	Capabilities []string

	EventBusName string
	TableName    string

	// Max time to wait for the stack
	//
	// Default: 30 minutes
	Timeout time.Duration
}

type Workflow struct {
	bucket   Bucket
	uploader Uploader
	stacks   Stacks
	bus      replay.EventBus
	config   Config
}

func New(bucket Bucket, uploader Uploader, stacks Stacks, bus replay.EventBus, config Config) *Workflow {
	if config.ObjectKey == "" {
		config.ObjectKey = config.FileName
	}

	if config.Timeout == 0 {
		config.Timeout = 30 * time.Minute
	}

	return &Workflow{
		bucket:   bucket,
		uploader: uploader,
		stacks:   stacks,
		bus:      bus,
		config:   config,
	}
}

// Run executes provisioning steps in order, aborting at the first failure.
// Queued events are read from dir of the file system.
func (w *Workflow) Run(ctx context.Context, events fs.FS, dir string) error {
	if err := CreateBucket(ctx, w.bucket, w.config.Region, w.config.BucketName); err != nil {
		return err
	}

	if err := UploadArtifact(ctx, w.uploader, w.config.FileName, w.config.BucketName, w.config.ObjectKey); err != nil {
		return err
	}

	spec := StackSpec{
		Name:         w.config.StackName,
		TemplateBody: w.config.TemplateBody,
		Capabilities: w.config.Capabilities,
		EventBusName: w.config.EventBusName,
		TableName:    w.config.TableName,
		Bucket:       w.config.BucketName,
		ObjectKey:    w.config.ObjectKey,
	}
	if err := CreateStack(ctx, w.stacks, spec, w.config.Timeout); err != nil {
		return err
	}

	err := replay.New(w.bus, w.config.EventBusName).PutEvents(ctx, events, dir)
	if err != nil {
		return fail(STEP_EVENTS, err)
	}

	slog.Info("provisioning completed", "stack", w.config.StackName)

	return nil
}
