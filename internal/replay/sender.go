//
// Copyright (C) 2024 Dmitry Kolesnikov
//
// This file may be modified and distributed under the terms
// of the MIT license.  See the LICENSE file for details.
// https://github.com/fogfish/gamesession
//

package replay

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsmiddleware "github.com/aws/aws-sdk-go-v2/aws/middleware"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/fogfish/gamesession/internal/events"
)

type EventBus interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// SendBatch submits entries to the event bus with a single call.
// Empty bus name targets the account's default bus.
func SendBatch(ctx context.Context, api EventBus, bus string, batch []events.Entry) error {
	if len(batch) == 0 {
		return nil
	}

	if len(batch) > BATCH_SIZE {
		return fmt.Errorf("batch of %d events exceeds limit %d", len(batch), BATCH_SIZE)
	}

	entries := make([]types.PutEventsRequestEntry, len(batch))
	for i, evt := range batch {
		entries[i] = types.PutEventsRequestEntry{
			EventBusName: optional(bus),
			Source:       optional(evt.Source),
			Resources:    evt.Resources,
			DetailType:   optional(evt.DetailType),
			Detail:       optional(evt.Detail),
		}
	}

	val, err := api.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
	if err != nil {
		return fmt.Errorf("unable to put events: %w", err)
	}

	if raw, ok := awsmiddleware.GetRawResponse(val.ResultMetadata).(*smithyhttp.Response); ok {
		if raw.StatusCode != http.StatusOK {
			return fmt.Errorf("event bus responded with status %d", raw.StatusCode)
		}
	}

	if val.FailedEntryCount > 0 {
		for _, e := range val.Entries {
			if e.ErrorCode != nil {
				return fmt.Errorf("%d of %d events failed: %s %s", val.FailedEntryCount, len(batch),
					aws.ToString(e.ErrorCode), aws.ToString(e.ErrorMessage))
			}
		}
		return fmt.Errorf("%d of %d events failed", val.FailedEntryCount, len(batch))
	}

	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}
