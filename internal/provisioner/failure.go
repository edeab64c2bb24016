//
// Copyright (C) 2024 Dmitry Kolesnikov
//
// This file may be modified and distributed under the terms
// of the MIT license.  See the LICENSE file for details.
// https://github.com/fogfish/gamesession
//

package provisioner

import "fmt"

// Provisioning steps
const (
	STEP_BUCKET = "bucket"
	STEP_UPLOAD = "upload"
	STEP_STACK  = "stack"
	STEP_EVENTS = "events"
)

// Failure of provisioning step
type Failure struct {
	Step string
	Err  error
}

func (e *Failure) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
}

func (e *Failure) Unwrap() error { return e.Err }

func fail(step string, err error) error {
	return &Failure{Step: step, Err: err}
}
