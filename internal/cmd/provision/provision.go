//
// Copyright (C) 2024 Dmitry Kolesnikov
//
// This file may be modified and distributed under the terms
// of the MIT license.  See the LICENSE file for details.
// https://github.com/fogfish/gamesession
//

// Command provision deploys the game session stack and replays queued events.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/fogfish/gamesession/internal/provisioner"
	"github.com/fogfish/gamesession/internal/replay"
	_ "github.com/fogfish/logger/v3"
)

type opts struct {
	provisioner.Config
	templateFile string
	capabilities string
	eventsDir    string
}

func parse(args []string) (opts, error) {
	var o opts

	set := flag.NewFlagSet("provision", flag.ContinueOnError)
	set.StringVar(&o.BucketName, "bucket-name", "", "The name of the s3 bucket to be created")
	set.StringVar(&o.FileName, "file-name", "", "The path to the .zip file with lambda code")
	set.StringVar(&o.ObjectKey, "object-key", "", "The object key of lambda code (default: file-name)")
	set.StringVar(&o.StackName, "stack-name", "", "The name of the cloudformation stack to be created")
	set.StringVar(&o.templateFile, "template-body", "", "The template file with the stack resources to be created")
	set.StringVar(&o.capabilities, "capabilities", "", "The comma separated capabilities for the cloudformation stack")
	set.StringVar(&o.EventBusName, "event-bus-name", "", "Name of the event bus where the events will be sent")
	set.StringVar(&o.TableName, "table-name", "", "Name of the dynamodb table where the events will be stored")
	set.StringVar(&o.eventsDir, "events-dir", "", "The directory (or s3://bucket/prefix) with the JSON files of events")
	set.DurationVar(&o.Timeout, "timeout", 30*time.Minute, "Max time to wait for the stack creation")

	if err := set.Parse(args); err != nil {
		return o, err
	}

	required := map[string]string{
		"bucket-name":    o.BucketName,
		"file-name":      o.FileName,
		"stack-name":     o.StackName,
		"template-body":  o.templateFile,
		"capabilities":   o.capabilities,
		"event-bus-name": o.EventBusName,
		"table-name":     o.TableName,
		"events-dir":     o.eventsDir,
	}
	missing := []string{}
	set.VisitAll(func(f *flag.Flag) {
		if val, has := required[f.Name]; has && val == "" {
			missing = append(missing, "--"+f.Name)
		}
	})
	if len(missing) > 0 {
		return o, fmt.Errorf("missing required flags: %s", strings.Join(missing, ", "))
	}

	for _, c := range strings.Split(o.capabilities, ",") {
		if c = strings.TrimSpace(c); c != "" {
			o.Capabilities = append(o.Capabilities, c)
		}
	}

	return o, nil
}

func main() {
	o, err := parse(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, o); err != nil {
		slog.Error("provisioning failed", "err", err)
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, o opts) error {
	template, err := os.ReadFile(o.templateFile)
	if err != nil {
		return fmt.Errorf("unable to read template: %w", err)
	}
	o.TemplateBody = string(template)

	fsys, dir, err := replay.Source(o.eventsDir)
	if err != nil {
		return fmt.Errorf("unable to open events: %w", err)
	}

	aws, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("unable to configure aws client: %w", err)
	}
	o.Region = aws.Region

	s3api := s3.NewFromConfig(aws)

	workflow := provisioner.New(
		s3api,
		manager.NewUploader(s3api),
		cloudformation.NewFromConfig(aws),
		eventbridge.NewFromConfig(aws),
		o.Config,
	)

	return workflow.Run(ctx, fsys, dir)
}
