package report

import (
	"errors"
	"fmt"
)

// Error taxonomy. Layers wrap these with %w or with the typed errors below
// so callers can branch with errors.Is.
var (
	// ErrDataUnavailable: a read of a required collection failed.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrSaveFailed: a write during bulk save failed.
	ErrSaveFailed = errors.New("save failed")

	// ErrRenderFailed: the capture driver could not produce an artifact.
	ErrRenderFailed = errors.New("render failed")

	ErrInvalidPeriod        = errors.New("invalid period")
	ErrInvalidExportRequest = errors.New("invalid export request")
)

// Collection names, as reported in SaveError and used as table names.
const (
	CollectionSites    = "sites"
	CollectionFuel     = "fuel"
	CollectionRigMoves = "rig_moves"
	CollectionNotes    = "activity_notes"
)

// SaveError reports which collection failed during a bulk save. Collections
// written before it stay written.
type SaveError struct {
	Collection string
	Err        error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("save failed: %s: %v", e.Collection, e.Err)
}

// Unwrap exposes both ErrSaveFailed and the underlying cause.
func (e *SaveError) Unwrap() []error { return []error{ErrSaveFailed, e.Err} }

// Render stages, as reported in RenderError.
const (
	StageValidate = "validate"
	StageLaunch   = "launch"
	StageNavigate = "navigate"
	StageReady    = "ready"
	StageMeasure  = "measure"
	StageCapture  = "capture"
	StageVerify   = "verify"
)

// RenderError reports the capture stage that failed.
type RenderError struct {
	Stage string
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render failed: %s: %v", e.Stage, e.Err)
}

// Unwrap exposes both ErrRenderFailed and the underlying cause.
func (e *RenderError) Unwrap() []error { return []error{ErrRenderFailed, e.Err} }
