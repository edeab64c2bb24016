//
// Copyright (C) 2024 Dmitry Kolesnikov
//
// This file may be modified and distributed under the terms
// of the MIT license.  See the LICENSE file for details.
// https://github.com/fogfish/gamesession
//

package awsgamesession

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsdynamodb"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsevents"
	"github.com/aws/aws-cdk-go/awscdk/v2/awseventstargets"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/aws-cdk-go/awscdk/v2/awss3"
	"github.com/aws/jsii-runtime-go"
	"github.com/fogfish/tagver"
)

type GameSessionProps struct {
	*awscdk.StackProps
	Version tagver.Version

	// Detail type of events routed to the handler
	//
	// Default: game-session-request
	TriggerDetailType *string

	// Source of follow-up events emitted by the handler
	//
	// Default: my-event-bus
	EventSource *string

	// The amount of memory, in MB, allocated to the handler
	//
	// Default: 128
	MemorySize *float64
}

type GameSession struct {
	awscdk.Stack
	eventBusName awscdk.CfnParameter
	tableName    awscdk.CfnParameter
	bucketName   awscdk.CfnParameter
	objectKey    awscdk.CfnParameter
	table        awsdynamodb.Table
	bus          awsevents.EventBus
	handler      awslambda.Function
}

func New(app awscdk.App, props *GameSessionProps) *GameSession {
	stack := awscdk.NewStack(app,
		jsii.String(props.Version.Tag("gamesession")),
		props.StackProps,
	)

	if props.TriggerDetailType == nil {
		props.TriggerDetailType = jsii.String("game-session-request")
	}

	if props.EventSource == nil {
		props.EventSource = jsii.String("my-event-bus")
	}

	if props.MemorySize == nil {
		props.MemorySize = jsii.Number(128.0)
	}

	c := &GameSession{Stack: stack}
	c.createParameters(props)
	c.createTable(props)
	c.createEventBus(props)
	c.createHandler(props)
	c.createRule(props)

	return c
}

// the provisioner binds stack parameters by these logical ids
func (c *GameSession) createParameters(props *GameSessionProps) {
	param := func(id, about string) awscdk.CfnParameter {
		return awscdk.NewCfnParameter(c.Stack, jsii.String(id),
			&awscdk.CfnParameterProps{
				Type:        jsii.String("String"),
				Description: jsii.String(about),
			},
		)
	}

	c.eventBusName = param("EventBusName", "Name of the event bus for game session events")
	c.tableName = param("TableName", "Name of the table for game sessions")
	c.bucketName = param("MyBucket", "Bucket with the lambda code")
	c.objectKey = param("S3Key", "Object key of the lambda code")
}

func (c *GameSession) createTable(props *GameSessionProps) {
	c.table = awsdynamodb.NewTable(c.Stack, jsii.String("Table"),
		&awsdynamodb.TableProps{
			TableName: c.tableName.ValueAsString(),
			PartitionKey: &awsdynamodb.Attribute{
				Name: jsii.String("hostname"),
				Type: awsdynamodb.AttributeType_STRING,
			},
			BillingMode:   awsdynamodb.BillingMode_PAY_PER_REQUEST,
			RemovalPolicy: awscdk.RemovalPolicy_DESTROY,
		},
	)
}

func (c *GameSession) createEventBus(props *GameSessionProps) {
	c.bus = awsevents.NewEventBus(c.Stack, jsii.String("Bus"),
		&awsevents.EventBusProps{
			EventBusName: c.eventBusName.ValueAsString(),
		},
	)
}

func (c *GameSession) createHandler(props *GameSessionProps) {
	code := awss3.Bucket_FromBucketName(c.Stack, jsii.String("Code"), c.bucketName.ValueAsString())

	c.handler = awslambda.NewFunction(c.Stack, jsii.String("Handler"),
		&awslambda.FunctionProps{
			FunctionName: awscdk.Aws_STACK_NAME(),
			Runtime:      awslambda.Runtime_PROVIDED_AL2023(),
			Architecture: awslambda.Architecture_ARM_64(),
			Handler:      jsii.String("bootstrap"),
			Code:         awslambda.Code_FromBucket(code, c.objectKey.ValueAsString(), nil),
			MemorySize:   props.MemorySize,
			Timeout:      awscdk.Duration_Seconds(jsii.Number(10.0)),
			Environment: &map[string]*string{
				"CONFIG_VSN":          jsii.String(string(props.Version)),
				"CONFIG_TABLE":        c.table.TableName(),
				"CONFIG_EVENT_BUS":    c.bus.EventBusName(),
				"CONFIG_EVENT_SOURCE": props.EventSource,
			},
		},
	)

	c.table.GrantReadWriteData(c.handler)
	c.bus.GrantPutEventsTo(c.handler)
}

func (c *GameSession) createRule(props *GameSessionProps) {
	awsevents.NewRule(c.Stack, jsii.String("Trigger"),
		&awsevents.RuleProps{
			EventBus: c.bus,
			EventPattern: &awsevents.EventPattern{
				DetailType: &[]*string{props.TriggerDetailType},
			},
			Targets: &[]awsevents.IRuleTarget{
				awseventstargets.NewLambdaFunction(c.handler, nil),
			},
		},
	)
}
