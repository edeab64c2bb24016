//
// Copyright (C) 2024 Dmitry Kolesnikov
//
// This file may be modified and distributed under the terms
// of the MIT license.  See the LICENSE file for details.
// https://github.com/fogfish/gamesession
//

package provisioner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	"github.com/google/uuid"
)

// Stack parameters declared by the game session template
const (
	PARAM_EVENT_BUS = "EventBusName"
	PARAM_TABLE     = "TableName"
	PARAM_BUCKET    = "MyBucket"
	PARAM_S3_KEY    = "S3Key"
)

type Stacks interface {
	CreateStack(ctx context.Context, params *cloudformation.CreateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error)
	DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
}

// StackSpec describes the stack to create
type StackSpec struct {
	Name         string
	TemplateBody string
	Capabilities []string

	EventBusName string
	TableName    string
	Bucket       string
	ObjectKey    string
}

func (spec StackSpec) parameters() []types.Parameter {
	return []types.Parameter{
		{ParameterKey: aws.String(PARAM_EVENT_BUS), ParameterValue: aws.String(spec.EventBusName)},
		{ParameterKey: aws.String(PARAM_TABLE), ParameterValue: aws.String(spec.TableName)},
		{ParameterKey: aws.String(PARAM_BUCKET), ParameterValue: aws.String(spec.Bucket)},
		{ParameterKey: aws.String(PARAM_S3_KEY), ParameterValue: aws.String(spec.ObjectKey)},
	}
}

func (spec StackSpec) capabilities() []types.Capability {
	seq := make([]types.Capability, len(spec.Capabilities))
	for i, c := range spec.Capabilities {
		seq[i] = types.Capability(c)
	}
	return seq
}

// CreateStack submits the stack and blocks until it reaches CREATE_COMPLETE,
// fails or the timeout expires.
func CreateStack(ctx context.Context, api Stacks, spec StackSpec, timeout time.Duration) error {
	val, err := api.CreateStack(ctx,
		&cloudformation.CreateStackInput{
			StackName:          aws.String(spec.Name),
			TemplateBody:       aws.String(spec.TemplateBody),
			Capabilities:       spec.capabilities(),
			Parameters:         spec.parameters(),
			ClientRequestToken: aws.String(uuid.NewString()),
		},
	)
	if err != nil {
		return fail(STEP_STACK, err)
	}

	slog.Info("stack requested", "stack", spec.Name, "id", aws.ToString(val.StackId))

	waiter := cloudformation.NewStackCreateCompleteWaiter(api)
	err = waiter.Wait(ctx,
		&cloudformation.DescribeStacksInput{StackName: aws.String(spec.Name)},
		timeout,
	)
	if err != nil {
		return fail(STEP_STACK, err)
	}

	desc, err := api.DescribeStacks(ctx,
		&cloudformation.DescribeStacksInput{StackName: aws.String(spec.Name)},
	)
	if err != nil {
		return fail(STEP_STACK, err)
	}

	if len(desc.Stacks) == 0 {
		return fail(STEP_STACK, fmt.Errorf("stack %s not found", spec.Name))
	}

	status := desc.Stacks[0].StackStatus
	if status != types.StackStatusCreateComplete {
		return fail(STEP_STACK, fmt.Errorf("stack %s in status %s", spec.Name, status))
	}

	slog.Info("stack created", "stack", spec.Name, "status", status)

	return nil
}
