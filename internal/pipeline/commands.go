// Package pipeline reacts to verification status transitions. Transitions do
// not call side effects directly: a committed update is inspected by the pure
// FollowUps function, which returns explicit commands the Orchestrator then
// executes. That keeps the trigger logic testable without storage.
package pipeline

import (
	"verimed/internal/verification"
	"verimed/pkg/domain"
)

// Command is one follow-up action produced by a committed status transition.
type Command interface {
	command()
}

// SpawnCallStage directs the orchestrator to create the call-stage work item
// and replicate an interface snapshot from the triggering transaction.
type SpawnCallStage struct {
	Trigger *verification.Transaction
}

func (SpawnCallStage) command() {}

// FollowUps inspects one committed transition and returns the commands it
// triggers. The only watched edge is an api_verify transaction entering
// success from any other status. prev carries the status the caller read
// before the compare-and-set; since exactly one racing update wins the CAS,
// at most one caller observes the edge.
func FollowUps(prev domain.TransactionStatus, updated *verification.Transaction) []Command {
	if updated == nil {
		return nil
	}
	if updated.Stage != domain.StageAPIVerify {
		return nil
	}
	if updated.Status != domain.StatusSuccess || prev == domain.StatusSuccess {
		return nil
	}
	return []Command{SpawnCallStage{Trigger: updated}}
}
