// Package status derives the five-stage verification status from a patient's
// ordered transaction log. Derive is a pure function: same transactions in,
// same status out, no storage or clock involved.
package status

import (
	"verimed/pkg/domain"
)

// VerificationStatus is the derived per-stage progress for one patient.
type VerificationStatus struct {
	FetchPMS         domain.StageState `json:"fetchPMS"`
	DocumentAnalysis domain.StageState `json:"documentAnalysis"`
	APIVerification  domain.StageState `json:"apiVerification"`
	CallCenter       domain.StageState `json:"callCenter"`
	SaveToPMS        domain.StageState `json:"saveToPMS"`
}

// stageOrder fixes the pipeline position of each stage type.
var stageOrder = map[domain.StageType]int{
	domain.StageFetch:       0,
	domain.StageDocumentFax: 1,
	domain.StageAPIVerify:   2,
	domain.StageCall:        3,
	domain.StageSave:        4,
}

// chainPrev maps each stage to the stage a waiting attempt proves finished.
// Document analysis branches off fetch and is not a prerequisite of API
// verification: a waiting api_verify attempt completes fetch but leaves
// document analysis untouched.
var chainPrev = map[domain.StageType]domain.StageType{
	domain.StageDocumentFax: domain.StageFetch,
	domain.StageAPIVerify:   domain.StageFetch,
	domain.StageCall:        domain.StageAPIVerify,
	domain.StageSave:        domain.StageCall,
}

// Derive folds the transactions left to right, last write wins per stage.
// Callers must pass the log ordered by start time ascending with unstarted
// attempts last (the store's ListByPatient contract).
//
// Per-transaction rule:
//   - Waiting: this stage becomes in_progress and its chain predecessors
//     completed; a waiting fetch only marks fetch in_progress.
//   - Success or Partial: this stage and every preceding stage completed.
//   - Failed: no stage advances.
//
// The fold is deliberately non-monotonic: a later waiting attempt can pull an
// already completed stage back to in_progress. That mirrors the source
// system's behavior and stays until product intent says otherwise.
func Derive(transactions []*Transaction) VerificationStatus {
	states := [5]domain.StageState{
		domain.StagePending, domain.StagePending, domain.StagePending,
		domain.StagePending, domain.StagePending,
	}

	for _, transaction := range transactions {
		idx, known := stageOrder[transaction.Stage]
		if !known {
			continue
		}
		switch transaction.Status {
		case domain.StatusWaiting:
			states[idx] = domain.StageInProgress
			for prev, ok := chainPrev[transaction.Stage]; ok; prev, ok = chainPrev[prev] {
				states[stageOrder[prev]] = domain.StageCompleted
			}
		case domain.StatusSuccess, domain.StatusPartial:
			for i := 0; i <= idx; i++ {
				states[i] = domain.StageCompleted
			}
		}
	}

	return VerificationStatus{
		FetchPMS:         states[0],
		DocumentAnalysis: states[1],
		APIVerification:  states[2],
		CallCenter:       states[3],
		SaveToPMS:        states[4],
	}
}
