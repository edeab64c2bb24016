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
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/fogfish/gamesession/internal/events"
	"github.com/fogfish/gamesession/internal/replay"
	json "github.com/goccy/go-json"
)

// Partition key of game session table
const HOSTNAME = "hostname"

type Table interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// Outcome of game session request handling
type Outcome int

const (
	// Trigger has no game-session-request.requested event
	MissingRequest Outcome = iota
	// Game session is written and read back
	Confirmed
	// Game session is written but not found by the read
	NotConfirmed
)

func (o Outcome) String() string {
	switch o {
	case MissingRequest:
		return "missing-request"
	case Confirmed:
		return "confirmed"
	case NotConfirmed:
		return "not-confirmed"
	default:
		return "unknown"
	}
}

type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

type Service struct {
	table     Table
	bus       replay.EventBus
	tableName string
	eventBus  string
	source    string
}

func New(table Table, bus replay.EventBus, tableName, eventBus, source string) *Service {
	return &Service{
		table:     table,
		bus:       bus,
		tableName: tableName,
		eventBus:  eventBus,
		source:    source,
	}
}

// RequestedEvent returns first event of requested type, nil if none.
func RequestedEvent(seq []events.GameSessionTrigger) *events.GameSessionTrigger {
	for i := range seq {
		if seq[i].DetailType == events.GAME_SESSION_REQUESTED {
			return &seq[i]
		}
	}
	return nil
}

// Save writes game details of the requested event and reads them back.
// The table is not touched when the trigger has no requested event.
func (s *Service) Save(ctx context.Context, evt events.GameSessionTrigger) (Outcome, error) {
	reqs, err := events.Decode[events.GameSessionRequests](evt.Detail)
	if err != nil {
		return MissingRequest, fmt.Errorf("malformed trigger %s: %w", evt.ID, err)
	}

	req := RequestedEvent(reqs.Events)
	if req == nil {
		return MissingRequest, nil
	}

	detail, err := events.Decode[events.GameSessionRequest](req.Detail)
	if err != nil {
		return MissingRequest, fmt.Errorf("malformed request %s: %w", req.ID, err)
	}

	item, err := attributevalue.MarshalMap(detail.GameDetails)
	if err != nil {
		return MissingRequest, err
	}

	hostname, has := item[HOSTNAME]
	if !has {
		return MissingRequest, errors.New("game details has no hostname")
	}

	if _, ok := hostname.(*types.AttributeValueMemberS); !ok {
		return MissingRequest, errors.New("game details hostname must be string")
	}

	_, err = s.table.PutItem(ctx,
		&dynamodb.PutItemInput{
			TableName: aws.String(s.tableName),
			Item:      item,
		},
	)
	if err != nil {
		return NotConfirmed, fmt.Errorf("unable to write game session: %w", err)
	}

	val, err := s.table.GetItem(ctx,
		&dynamodb.GetItemInput{
			TableName:      aws.String(s.tableName),
			Key:            map[string]types.AttributeValue{HOSTNAME: hostname},
			ConsistentRead: aws.Bool(true),
		},
	)
	if err != nil {
		return NotConfirmed, fmt.Errorf("unable to read game session: %w", err)
	}

	if len(val.Item) == 0 {
		return NotConfirmed, nil
	}

	return Confirmed, nil
}

// Handle saves the game session and emits the finished or failed event.
// The trigger without requested event is reported as failed.
func (s *Service) Handle(ctx context.Context, evt events.GameSessionTrigger) (Outcome, error) {
	outcome, err := s.Save(ctx, evt)
	if err != nil {
		return outcome, err
	}

	var detailType string
	switch outcome {
	case MissingRequest:
		slog.Warn("game session request is missing", "id", evt.ID)
		detailType = events.GAME_SESSION_FAILED
	case Confirmed:
		detailType = events.GAME_SESSION_FINISHED
	default:
		detailType = events.GAME_SESSION_FAILED
	}

	detail, err := json.Marshal(evt)
	if err != nil {
		return outcome, err
	}

	err = replay.SendBatch(ctx, s.bus, s.eventBus,
		[]events.Entry{
			{Source: s.source, DetailType: detailType, Detail: string(detail)},
		},
	)
	if err != nil {
		return outcome, err
	}

	slog.Info("game session handled", "id", evt.ID, "outcome", outcome.String(), "event", detailType)

	return outcome, nil
}

// Lambda adapts Handle to the function invocation contract
func (s *Service) Lambda(ctx context.Context, evt events.GameSessionTrigger) (Response, error) {
	outcome, err := s.Handle(ctx, evt)
	if err != nil {
		slog.Error("game session failed", "id", evt.ID, "err", err)
		return Response{}, err
	}

	switch outcome {
	case MissingRequest:
		return Response{
			StatusCode: http.StatusBadRequest,
			Body:       "Missing game session request event",
		}, nil
	case Confirmed:
		return Response{StatusCode: http.StatusOK, Body: events.GAME_SESSION_FINISHED}, nil
	default:
		return Response{StatusCode: http.StatusOK, Body: events.GAME_SESSION_FAILED}, nil
	}
}
