//
// Copyright (C) 2024 Dmitry Kolesnikov
//
// This file may be modified and distributed under the terms
// of the MIT license.  See the LICENSE file for details.
// https://github.com/fogfish/gamesession
//

package main

import (
	"context"
	"log/slog"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/caarlos0/env/v11"
	_ "github.com/fogfish/logger/v3"
)

type Env struct {
	Table    string `env:"CONFIG_TABLE" envDefault:"my-game-session-table"`
	EventBus string `env:"CONFIG_EVENT_BUS"`
	Source   string `env:"CONFIG_EVENT_SOURCE" envDefault:"my-event-bus"`
}

func main() {
	var cfg Env
	if err := env.Parse(&cfg); err != nil {
		slog.Error("invalid config", "err", err)
		panic(err)
	}

	aws, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		slog.Error("fatal failure of aws client", "err", err)
		panic(err)
	}

	service := New(
		dynamodb.NewFromConfig(aws),
		eventbridge.NewFromConfig(aws),
		cfg.Table,
		cfg.EventBus,
		cfg.Source,
	)

	lambda.Start(service.Lambda)
}
