package pipeline

import "time"

// StageName identifies one of the fixed pipeline stages.
type StageName string

const (
	StageFetch     StageName = "fetch"
	StageToolchain StageName = "toolchain"
	StageGenerate  StageName = "generate"
	StagePublish   StageName = "publish"
)

// Stages lists the pipeline stages in execution order.
var Stages = []StageName{StageFetch, StageToolchain, StageGenerate, StagePublish}

// StageExecution records the outcome of a single stage within a run.
type StageExecution struct {
	Name      StageName
	StartedAt time.Time
	Duration  time.Duration
	Err       error
	Skipped   bool // an earlier stage failed before this one started
}

// Outcome classifies a finished run.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)
