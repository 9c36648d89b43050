package domain

import dErrors "verimed/pkg/domain-errors"

// StageType names the pipeline phase a verification attempt represents.
// Invariant: the value must be one of the five supported stages.
//
// Usage: construct via ParseStageType at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type StageType string

const (
	StageFetch       StageType = "fetch"
	StageDocumentFax StageType = "document_fax"
	StageAPIVerify   StageType = "api_verify"
	StageCall        StageType = "call"
	StageSave        StageType = "save"
)

// validStageTypes is the single source of truth for valid stage types.
var validStageTypes = map[StageType]bool{
	StageFetch:       true,
	StageDocumentFax: true,
	StageAPIVerify:   true,
	StageCall:        true,
	StageSave:        true,
}

// ParseStageType constructs a StageType from external input.
func ParseStageType(raw string) (StageType, error) {
	stage := StageType(raw)
	if !validStageTypes[stage] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown stage type: "+raw)
	}
	return stage, nil
}

// TransactionStatus is the lifecycle status of one verification attempt.
type TransactionStatus string

const (
	StatusWaiting TransactionStatus = "waiting"
	StatusSuccess TransactionStatus = "success"
	StatusPartial TransactionStatus = "partial"
	StatusFailed  TransactionStatus = "failed"
)

var validTransactionStatuses = map[TransactionStatus]bool{
	StatusWaiting: true,
	StatusSuccess: true,
	StatusPartial: true,
	StatusFailed:  true,
}

// ParseTransactionStatus constructs a TransactionStatus from external input.
func ParseTransactionStatus(raw string) (TransactionStatus, error) {
	status := TransactionStatus(raw)
	if !validTransactionStatuses[status] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown transaction status: "+raw)
	}
	return status, nil
}

// StageState is the derived progress of one pipeline stage for a patient.
type StageState string

const (
	StagePending    StageState = "pending"
	StageInProgress StageState = "in_progress"
	StageCompleted  StageState = "completed"
)

// Speaker labels who produced a call transcript message.
type Speaker string

const (
	SpeakerSystem       Speaker = "system"
	SpeakerCounterparty Speaker = "counterparty"
	SpeakerAgent        Speaker = "agent"
)

var validSpeakers = map[Speaker]bool{
	SpeakerSystem:       true,
	SpeakerCounterparty: true,
	SpeakerAgent:        true,
}

// ParseSpeaker constructs a Speaker from external input.
func ParseSpeaker(raw string) (Speaker, error) {
	speaker := Speaker(raw)
	if !validSpeakers[speaker] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown speaker: "+raw)
	}
	return speaker, nil
}
