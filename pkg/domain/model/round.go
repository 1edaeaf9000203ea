package model

// RoundStatus is the outcome class of a round
type RoundStatus string

const (
	// RoundStatusSuccess means content was published and the callback accepted the record
	RoundStatusSuccess RoundStatus = "success"
	// RoundStatusPartial means content was published but the callback could not be reached
	RoundStatusPartial RoundStatus = "partial"
	// RoundStatusFailed means the round stopped before publishing completed
	RoundStatusFailed RoundStatus = "failed"
)

// RoundResult is returned by the round orchestrator
type RoundResult struct {
	Status   RoundStatus
	Round    Round
	Record   *NotificationRecord
	Delivery *Delivery
	Warnings []string
}

// AddWarning records a non-fatal problem observed during the round
func (x *RoundResult) AddWarning(msg string) {
	x.Warnings = append(x.Warnings, msg)
}
