package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DonationType classifies why a donation exists.
type DonationType string

const (
	DonationTypePull            DonationType = "PULL"
	DonationTypeCascadeN1       DonationType = "CASCADE_N1"
	DonationTypeUpgradeN2       DonationType = "UPGRADE_N2"
	DonationTypeReinjectionN2   DonationType = "REINJECTION_N2"
	DonationTypeUpgradeN3       DonationType = "UPGRADE_N3"
	DonationTypeReinforcementN3 DonationType = "REINFORCEMENT_N3"
	DonationTypeAdmN3           DonationType = "ADM_N3"
	DonationTypeFinalPaymentN3  DonationType = "FINAL_PAYMENT_N3"
)

// Valid reports whether the type is known.
func (t DonationType) Valid() bool {
	switch t {
	case DonationTypePull, DonationTypeCascadeN1, DonationTypeUpgradeN2, DonationTypeReinjectionN2,
		DonationTypeUpgradeN3, DonationTypeReinforcementN3, DonationTypeAdmN3, DonationTypeFinalPaymentN3:
		return true
	}
	return false
}

// ObligationTypes are the donation types a donor must settle before moving up a level.
var ObligationTypes = []DonationType{
	DonationTypeUpgradeN2,
	DonationTypeCascadeN1,
	DonationTypeUpgradeN3,
	DonationTypeReinjectionN2,
}

// IsObligation reports whether t counts toward donor-side advancement.
func (t DonationType) IsObligation() bool {
	for _, o := range ObligationTypes {
		if o == t {
			return true
		}
	}
	return false
}

// DonationStatus is the lifecycle state of a donation.
type DonationStatus string

const (
	DonationStatusPendingPayment      DonationStatus = "PENDING_PAYMENT"
	DonationStatusPendingConfirmation DonationStatus = "PENDING_CONFIRMATION"
	DonationStatusConfirmed           DonationStatus = "CONFIRMED"
	DonationStatusExpired             DonationStatus = "EXPIRED"
	DonationStatusCancelled           DonationStatus = "CANCELLED"
)

// PendingStatuses lists the non-terminal statuses.
var PendingStatuses = []DonationStatus{DonationStatusPendingPayment, DonationStatusPendingConfirmation}

// IsPending reports whether the status is not terminal.
func (s DonationStatus) IsPending() bool {
	return s == DonationStatusPendingPayment || s == DonationStatusPendingConfirmation
}

// CanTransitionTo enforces the one-directional lifecycle.
func (s DonationStatus) CanTransitionTo(next DonationStatus) bool {
	switch s {
	case DonationStatusPendingPayment:
		return next == DonationStatusPendingConfirmation || next == DonationStatusExpired || next == DonationStatusCancelled
	case DonationStatusPendingConfirmation:
		return next == DonationStatusConfirmed || next == DonationStatusExpired || next == DonationStatusCancelled
	default:
		return false
	}
}

// Donation is one obligation between a donor and a receiver.
type Donation struct {
	ID          string          `db:"id" json:"id"`
	DonorID     string          `db:"donor_id" json:"donor_id"`
	ReceiverID  string          `db:"receiver_id" json:"receiver_id"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Type        DonationType    `db:"type" json:"type"`
	Status      DonationStatus  `db:"status" json:"status"`
	Deadline    *time.Time      `db:"deadline" json:"deadline,omitempty"`
	CompletedAt *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	ReceiptRef  *string         `db:"receipt_ref" json:"receipt_ref,omitempty"`
	Notes       *string         `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// NewDonation describes a donation to be created.
type NewDonation struct {
	DonorID    string
	ReceiverID string
	Amount     decimal.Decimal
	Type       DonationType
	Deadline   *time.Time
	Notes      string
}

// DonationFilter narrows donation listings.
type DonationFilter struct {
	DonorID       string
	ReceiverID    string
	ParticipantID string // donor or receiver
	Statuses      []DonationStatus
	Types         []DonationType
	Page          int
	PageSize      int
}

// DonationStats summarises a participant's ledger position.
type DonationStats struct {
	TotalDonated         decimal.Decimal `db:"total_donated" json:"total_donated"`
	TotalReceived        decimal.Decimal `db:"total_received" json:"total_received"`
	PendingToSend        int             `db:"pending_to_send" json:"pending_to_send"`
	PendingToReceive     int             `db:"pending_to_receive" json:"pending_to_receive"`
	ConfirmedSentCount   int             `db:"confirmed_sent" json:"confirmed_sent"`
	ConfirmedIncomeCount int             `db:"confirmed_received" json:"confirmed_received"`
}
