//
// Copyright (C) 2024 Dmitry Kolesnikov
//
// This file may be modified and distributed under the terms
// of the MIT license.  See the LICENSE file for details.
// https://github.com/fogfish/gamesession
//

package main

import (
	"os"
	"strconv"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/jsii-runtime-go"
	"github.com/fogfish/gamesession/internal/awsgamesession"
	"github.com/fogfish/tagver"
)

func main() {
	app := awscdk.NewApp(nil)

	// gamesession-vX
	vsn := FromContextVsn(app)
	config := &awscdk.StackProps{
		Env: &awscdk.Environment{
			Account: jsii.String(os.Getenv("CDK_DEFAULT_ACCOUNT")),
			Region:  jsii.String(os.Getenv("CDK_DEFAULT_REGION")),
		},
		// the template is deployed by provisioner, not by cdk deploy
		Synthesizer: awscdk.NewDefaultStackSynthesizer(
			&awscdk.DefaultStackSynthesizerProps{
				GenerateBootstrapVersionRule: jsii.Bool(false),
			},
		),
	}

	awsgamesession.New(app,
		&awsgamesession.GameSessionProps{
			StackProps:        config,
			Version:           vsn.Get("gamesession", "main"),
			TriggerDetailType: FromContextString(app, "trigger"),
			EventSource:       FromContextString(app, "source"),
			MemorySize:        FromContextFloat(app, "mem"),
		},
	)

	app.Synth(nil)
}

//------------------------------------------------------------------------------

func FromContext(app awscdk.App, key string) string {
	val := app.Node().TryGetContext(jsii.String(key))
	switch v := val.(type) {
	case string:
		return v
	default:
		return ""
	}
}

func FromContextString(app awscdk.App, key string) *string {
	v := FromContext(app, key)
	if v == "" {
		return nil
	}

	return jsii.String(v)
}

func FromContextFloat(app awscdk.App, key string) *float64 {
	v := FromContext(app, key)
	if v == "" {
		return nil
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		panic(err)
	}

	return jsii.Number(f)
}

func FromContextVsn(app awscdk.App) tagver.Versions {
	return tagver.NewVersions(FromContext(app, "vsn"))
}
