package handler

import (
	"time"

	"verimed/internal/verification"
)

type transactionResponse struct {
	ID                  string     `json:"id"`
	RequestID           string     `json:"requestId"`
	PatientID           string     `json:"patientId"`
	PatientName         string     `json:"patientName,omitempty"`
	Stage               string     `json:"stage"`
	Status              string     `json:"status"`
	StartTime           *time.Time `json:"startTime,omitempty"`
	EndTime             *time.Time `json:"endTime,omitempty"`
	EligibilitySummary  string     `json:"eligibilitySummary,omitempty"`
	BenefitsSummary     string     `json:"benefitsSummary,omitempty"`
	Transcript          string     `json:"transcript,omitempty"`
	RawProviderResponse string     `json:"rawProviderResponse,omitempty"`
	InsuranceProvider   string     `json:"insuranceProvider,omitempty"`
	InsuranceRep        string     `json:"insuranceRep,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`

	// Replication reports "inconsistent" when the update spawned a call
	// stage but its snapshot replication partially failed.
	Replication string `json:"replication,omitempty"`
}

func toTransactionResponse(transaction *verification.Transaction) transactionResponse {
	return transactionResponse{
		ID:                  transaction.ID.String(),
		RequestID:           transaction.RequestID,
		PatientID:           transaction.PatientID.String(),
		PatientName:         transaction.PatientName,
		Stage:               string(transaction.Stage),
		Status:              string(transaction.Status),
		StartTime:           transaction.StartTime,
		EndTime:             transaction.EndTime,
		EligibilitySummary:  transaction.EligibilitySummary,
		BenefitsSummary:     transaction.BenefitsSummary,
		Transcript:          transaction.Transcript,
		RawProviderResponse: transaction.RawProviderResponse,
		InsuranceProvider:   transaction.InsuranceProvider,
		InsuranceRep:        transaction.InsuranceRep,
		CreatedAt:           transaction.CreatedAt,
		UpdatedAt:           transaction.UpdatedAt,
	}
}

type communicationResponse struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Speaker   string    `json:"speaker"`
	Body      string    `json:"body"`
	Kind      string    `json:"kind,omitempty"`
}

type tagResponse struct {
	ID   string `json:"id"`
	Item string `json:"item"`
}
