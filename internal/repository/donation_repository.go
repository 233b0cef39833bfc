package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/donation-matrix-api/internal/models"
)

const donationColumns = `id, donor_id, receiver_id, amount, type, status, deadline, completed_at, receipt_ref, notes, created_at, updated_at`

// DonationRepository persists the donation ledger.
type DonationRepository struct {
	db sqlx.ExtContext
}

// NewDonationRepository constructs the repository over a database handle or an open transaction.
func NewDonationRepository(db sqlx.ExtContext) *DonationRepository {
	return &DonationRepository{db: db}
}

// CreateDonation appends a PENDING_PAYMENT donation.
func (r *DonationRepository) CreateDonation(ctx context.Context, in models.NewDonation) (*models.Donation, error) {
	now := time.Now().UTC()
	donation := &models.Donation{
		ID:         uuid.NewString(),
		DonorID:    in.DonorID,
		ReceiverID: in.ReceiverID,
		Amount:     in.Amount,
		Type:       in.Type,
		Status:     models.DonationStatusPendingPayment,
		Deadline:   in.Deadline,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if in.Notes != "" {
		notes := in.Notes
		donation.Notes = &notes
	}

	const query = `
INSERT INTO donations (id, donor_id, receiver_id, amount, type, status, deadline, completed_at, receipt_ref, notes, created_at, updated_at)
VALUES (:id, :donor_id, :receiver_id, :amount, :type, :status, :deadline, :completed_at, :receipt_ref, :notes, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, donation); err != nil {
		return nil, fmt.Errorf("insert donation: %w", err)
	}
	return donation, nil
}

// GetDonation returns a donation or sql.ErrNoRows.
func (r *DonationRepository) GetDonation(ctx context.Context, id string) (*models.Donation, error) {
	query := `SELECT ` + donationColumns + ` FROM donations WHERE id = $1`
	var donation models.Donation
	if err := sqlx.GetContext(ctx, r.db, &donation, query, id); err != nil {
		return nil, err
	}
	return &donation, nil
}

// GetDonationForUpdate row-locks a donation for the rest of the transaction.
func (r *DonationRepository) GetDonationForUpdate(ctx context.Context, id string) (*models.Donation, error) {
	query := `SELECT ` + donationColumns + ` FROM donations WHERE id = $1 FOR UPDATE`
	var donation models.Donation
	if err := sqlx.GetContext(ctx, r.db, &donation, query, id); err != nil {
		return nil, err
	}
	return &donation, nil
}

// TransitionStatus moves a donation from one status to another. It reports false when the
// donation was no longer in the expected status. completed_at is stamped on CONFIRMED.
func (r *DonationRepository) TransitionStatus(ctx context.Context, id string, from, to models.DonationStatus, at time.Time) (bool, error) {
	const query = `
UPDATE donations
SET status = $3,
	completed_at = CASE WHEN $3 = 'CONFIRMED' THEN $4 ELSE completed_at END,
	updated_at = $4
WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, string(from), string(to), at)
	if err != nil {
		return false, fmt.Errorf("transition donation status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition donation status: %w", err)
	}
	return affected == 1, nil
}

// AttachReceipt stores the receipt reference and moves the donation to PENDING_CONFIRMATION.
func (r *DonationRepository) AttachReceipt(ctx context.Context, id, receiptRef string, at time.Time) (bool, error) {
	const query = `
UPDATE donations SET receipt_ref = $2, status = 'PENDING_CONFIRMATION', updated_at = $3
WHERE id = $1 AND status = 'PENDING_PAYMENT'`
	res, err := r.db.ExecContext(ctx, query, id, receiptRef, at)
	if err != nil {
		return false, fmt.Errorf("attach donation receipt: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("attach donation receipt: %w", err)
	}
	return affected == 1, nil
}

// FindPending returns the donor's open donations of the given types.
func (r *DonationRepository) FindPending(ctx context.Context, donorID string, types []models.DonationType) ([]models.Donation, error) {
	query := `SELECT ` + donationColumns + ` FROM donations
WHERE donor_id = $1 AND type = ANY($2) AND status IN ('PENDING_PAYMENT', 'PENDING_CONFIRMATION')
ORDER BY created_at ASC`
	var donations []models.Donation
	if err := sqlx.SelectContext(ctx, r.db, &donations, query, donorID, pq.Array(typeStrings(types))); err != nil {
		return nil, fmt.Errorf("find pending donations: %w", err)
	}
	return donations, nil
}

// CountConfirmed counts CONFIRMED donations of a type completed at or after since.
func (r *DonationRepository) CountConfirmed(ctx context.Context, donationType models.DonationType, since time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM donations WHERE type = $1 AND status = 'CONFIRMED' AND completed_at >= $2`
	var count int
	if err := sqlx.GetContext(ctx, r.db, &count, query, string(donationType), since); err != nil {
		return 0, fmt.Errorf("count confirmed donations: %w", err)
	}
	return count, nil
}

// HasOpenDonation reports whether a pending donation already links donor and receiver.
func (r *DonationRepository) HasOpenDonation(ctx context.Context, donorID, receiverID string) (bool, error) {
	const query = `SELECT EXISTS (
	SELECT 1 FROM donations
	WHERE donor_id = $1 AND receiver_id = $2 AND status IN ('PENDING_PAYMENT', 'PENDING_CONFIRMATION')
)`
	var exists bool
	if err := sqlx.GetContext(ctx, r.db, &exists, query, donorID, receiverID); err != nil {
		return false, fmt.Errorf("check open donation: %w", err)
	}
	return exists, nil
}

// ListDonations returns a page of donations plus the total count.
func (r *DonationRepository) ListDonations(ctx context.Context, filter models.DonationFilter) ([]models.Donation, int, error) {
	var conditions []string
	var args []interface{}
	if filter.DonorID != "" {
		args = append(args, filter.DonorID)
		conditions = append(conditions, fmt.Sprintf("donor_id = $%d", len(args)))
	}
	if filter.ReceiverID != "" {
		args = append(args, filter.ReceiverID)
		conditions = append(conditions, fmt.Sprintf("receiver_id = $%d", len(args)))
	}
	if filter.ParticipantID != "" {
		args = append(args, filter.ParticipantID)
		conditions = append(conditions, fmt.Sprintf("(donor_id = $%d OR receiver_id = $%d)", len(args), len(args)))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, pq.Array(statuses))
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if len(filter.Types) > 0 {
		args = append(args, pq.Array(typeStrings(filter.Types)))
		conditions = append(conditions, fmt.Sprintf("type = ANY($%d)", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := sqlx.GetContext(ctx, r.db, &total, "SELECT COUNT(*) FROM donations"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count donations: %w", err)
	}

	page, size := filter.Page, filter.PageSize
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	args = append(args, size, (page-1)*size)
	query := fmt.Sprintf("SELECT %s FROM donations%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		donationColumns, where, len(args)-1, len(args))

	var donations []models.Donation
	if err := sqlx.SelectContext(ctx, r.db, &donations, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list donations: %w", err)
	}
	return donations, total, nil
}

// DonationStats aggregates a participant's sent and received donations.
func (r *DonationRepository) DonationStats(ctx context.Context, participantID string) (*models.DonationStats, error) {
	const query = `
SELECT
	COALESCE(SUM(amount) FILTER (WHERE donor_id = $1 AND status = 'CONFIRMED'), 0) AS total_donated,
	COALESCE(SUM(amount) FILTER (WHERE receiver_id = $1 AND status = 'CONFIRMED'), 0) AS total_received,
	COUNT(*) FILTER (WHERE donor_id = $1 AND status IN ('PENDING_PAYMENT', 'PENDING_CONFIRMATION')) AS pending_to_send,
	COUNT(*) FILTER (WHERE receiver_id = $1 AND status IN ('PENDING_PAYMENT', 'PENDING_CONFIRMATION')) AS pending_to_receive,
	COUNT(*) FILTER (WHERE donor_id = $1 AND status = 'CONFIRMED') AS confirmed_sent,
	COUNT(*) FILTER (WHERE receiver_id = $1 AND status = 'CONFIRMED') AS confirmed_received
FROM donations
WHERE donor_id = $1 OR receiver_id = $1`
	var stats models.DonationStats
	if err := sqlx.GetContext(ctx, r.db, &stats, query, participantID); err != nil {
		return nil, fmt.Errorf("donation stats: %w", err)
	}
	return &stats, nil
}

func typeStrings(types []models.DonationType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}
