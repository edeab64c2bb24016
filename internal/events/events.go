//
// Copyright (C) 2024 Dmitry Kolesnikov
//
// This file may be modified and distributed under the terms
// of the MIT license.  See the LICENSE file for details.
// https://github.com/fogfish/gamesession
//

package events

import (
	awsevents "github.com/aws/aws-lambda-go/events"
	json "github.com/goccy/go-json"
)

// Detail types of game session request lifecycle
const (
	GAME_SESSION_REQUESTED = "game-session-request.requested"
	GAME_SESSION_FINISHED  = "game-session-request.finished"
	GAME_SESSION_FAILED    = "game-session-request.failed"
)

// Entry is the queued event replayed to the event bus. Only these
// four attributes survive loading from file.
type Entry struct {
	Source     string   `json:"Source,omitempty"`
	Resources  []string `json:"Resources,omitempty"`
	DetailType string   `json:"DetailType,omitempty"`

	// Free-form payload, always serialized JSON text.
	Detail string `json:"Detail,omitempty"`
}

// GameSessionTrigger is the event delivered to the handler by
// the event bus rule.
type GameSessionTrigger = awsevents.EventBridgeEvent

// GameSessionRequests is the detail of the trigger event
type GameSessionRequests struct {
	Events []awsevents.EventBridgeEvent `json:"gameSessionRequestEvents"`
}

// GameSessionRequest is the detail of each requested sub-event
type GameSessionRequest struct {
	// Game session record, keyed by hostname
	GameDetails map[string]any `json:"gameDetails"`
}

// Decode detail of EventBridge event into the given type
func Decode[T any](raw []byte) (T, error) {
	var val T
	if len(raw) == 0 {
		return val, nil
	}

	if err := json.Unmarshal(raw, &val); err != nil {
		return val, err
	}

	return val, nil
}
