package handler

import "time"

// createTransactionRequest is the body for appending a verification attempt.
type createTransactionRequest struct {
	Stage             string     `json:"stage"`
	Status            string     `json:"status,omitempty"`
	PatientName       string     `json:"patientName,omitempty"`
	StartTime         *time.Time `json:"startTime,omitempty"`
	InsuranceProvider string     `json:"insuranceProvider,omitempty"`
	InsuranceRep      string     `json:"insuranceRep,omitempty"`
}

// updateStatusRequest is the compare-and-set body: expected is the status the
// caller read, next is the status to move to.
type updateStatusRequest struct {
	Expected string `json:"expected"`
	Next     string `json:"next"`

	StartTime           *time.Time `json:"startTime,omitempty"`
	EndTime             *time.Time `json:"endTime,omitempty"`
	EligibilitySummary  *string    `json:"eligibilitySummary,omitempty"`
	BenefitsSummary     *string    `json:"benefitsSummary,omitempty"`
	Transcript          *string    `json:"transcript,omitempty"`
	RawProviderResponse *string    `json:"rawProviderResponse,omitempty"`
	InsuranceProvider   *string    `json:"insuranceProvider,omitempty"`
	InsuranceRep        *string    `json:"insuranceRep,omitempty"`
}

type addCommunicationRequest struct {
	Timestamp time.Time `json:"timestamp"`
	Speaker   string    `json:"speaker"`
	Body      string    `json:"body"`
	Kind      string    `json:"kind,omitempty"`
}

type addTagRequest struct {
	Item string `json:"item"`
}

// putStatusRecordRequest replaces the manually edited status record.
type putStatusRecordRequest struct {
	FetchPMS         string `json:"fetchPMS"`
	DocumentAnalysis string `json:"documentAnalysis"`
	APIVerification  string `json:"apiVerification"`
	CallCenter       string `json:"callCenter"`
	SaveToPMS        string `json:"saveToPMS"`
}
