package domain

import "time"

// StepRecord is the persisted trace of one depletion step.
type StepRecord struct {
	RunID      string         `json:"run_id"`
	Index      int            `json:"index"`
	Time       float64        `json:"time"` // seconds since the start of the run
	Dt         float64        `json:"dt"`   // seconds
	SourceRate float64        `json:"source_rate"`
	Result     OperatorResult `json:"result"`
	StartedAt  time.Time      `json:"started_at"`
	Duration   time.Duration  `json:"duration"`
}
