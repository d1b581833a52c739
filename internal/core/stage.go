package core

import (
	"time"

	"go.uber.org/zap"
)

// Stage is a step of the dispatch state machine.
type Stage int

// Dispatch stages. Aborting and Aborted are reachable from any stage after
// AwaitingPrimary.
const (
	StageIdle Stage = iota
	StageValidating
	StageAwaitingPrimary
	StageTransacting
	StageApplyingLinkUpdates
	StageCommitting
	StageCommitted
	StageAborting
	StageAborted
)

var stageNames = [...]string{
	StageIdle:                "idle",
	StageValidating:          "validating",
	StageAwaitingPrimary:     "awaiting_primary",
	StageTransacting:         "transacting",
	StageApplyingLinkUpdates: "applying_link_updates",
	StageCommitting:          "committing",
	StageCommitted:           "committed",
	StageAborting:            "aborting",
	StageAborted:             "aborted",
}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "unknown"
}

// dispatchRun tracks one request through the stages.
type dispatchRun struct {
	logger      *zap.Logger
	operation   string
	recordType  string
	stage       Stage
	trail       []Stage
	records     int
	linkUpdates int
}

func newDispatchRun(logger *zap.Logger, operation, recordType string) *dispatchRun {
	return &dispatchRun{
		logger:     logger.With(zap.String("operation", operation), zap.String("type", recordType)),
		operation:  operation,
		recordType: recordType,
		stage:      StageIdle,
		trail:      []Stage{StageIdle},
	}
}

func (r *dispatchRun) enter(stage Stage) {
	r.stage = stage
	r.trail = append(r.trail, stage)
	r.logger.Debug("dispatch stage", zap.Stringer("stage", stage))
}

func (r *dispatchRun) summary(err error, took time.Duration) Dispatch {
	d := Dispatch{
		Operation:   r.operation,
		Type:        r.recordType,
		Stage:       r.stage,
		Records:     r.records,
		LinkUpdates: r.linkUpdates,
		Duration:    took,
		Err:         err,
	}
	switch {
	case err == nil:
		d.Outcome = OutcomeCommitted
	case r.stage == StageAborted:
		d.Outcome = OutcomeAborted
	case r.stage < StageTransacting:
		d.Outcome = OutcomeRejected
	default:
		d.Outcome = OutcomeFailed
	}
	return d
}
