package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/donation-matrix-api/internal/events"
	"github.com/noah-isme/donation-matrix-api/internal/models"
	"github.com/noah-isme/donation-matrix-api/internal/repository"
)

// fakeMatrixStore is a map-backed MatrixTx. RunInTx and Savepoint snapshot the maps and
// restore them when fn fails, mirroring transaction and savepoint rollback.
type fakeMatrixStore struct {
	slots        map[string]models.QueueSlot
	donations    map[string]models.Donation
	participants map[string]models.Participant

	seq        int
	locks      [][]int
	now        time.Time
	failCreate func(in models.NewDonation) error
	failReopen error
}

type fakeSnapshot struct {
	slots        map[string]models.QueueSlot
	donations    map[string]models.Donation
	participants map[string]models.Participant
	seq          int
}

func newFakeMatrixStore(now time.Time) *fakeMatrixStore {
	return &fakeMatrixStore{
		slots:        make(map[string]models.QueueSlot),
		donations:    make(map[string]models.Donation),
		participants: make(map[string]models.Participant),
		now:          now,
	}
}

func (f *fakeMatrixStore) snapshot() fakeSnapshot {
	snap := fakeSnapshot{
		slots:        make(map[string]models.QueueSlot, len(f.slots)),
		donations:    make(map[string]models.Donation, len(f.donations)),
		participants: make(map[string]models.Participant, len(f.participants)),
		seq:          f.seq,
	}
	for k, v := range f.slots {
		v.PassedParticipantIDs = append(pq.StringArray(nil), v.PassedParticipantIDs...)
		snap.slots[k] = v
	}
	for k, v := range f.donations {
		snap.donations[k] = v
	}
	for k, v := range f.participants {
		snap.participants[k] = v
	}
	return snap
}

func (f *fakeMatrixStore) restore(s fakeSnapshot) {
	f.slots, f.donations, f.participants, f.seq = s.slots, s.donations, s.participants, s.seq
}

func (f *fakeMatrixStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx MatrixTx) error) error {
	snap := f.snapshot()
	if err := fn(ctx, f); err != nil {
		f.restore(snap)
		return err
	}
	return nil
}

func (f *fakeMatrixStore) LockLevels(_ context.Context, levels ...int) error {
	f.locks = append(f.locks, append([]int(nil), levels...))
	return nil
}

func (f *fakeMatrixStore) Savepoint(_ context.Context, fn func() error) error {
	snap := f.snapshot()
	if err := fn(); err != nil {
		f.restore(snap)
		return err
	}
	return nil
}

func (f *fakeMatrixStore) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%04d", prefix, f.seq)
}

// seeding helpers

func pid(position int) string {
	return fmt.Sprintf("u%03d", position)
}

func (f *fakeMatrixStore) seedSlot(level, position int, participantID string, received int) models.QueueSlot {
	rule, _ := models.RuleFor(level)
	slot := models.QueueSlot{
		ID:                fmt.Sprintf("slot-%d-%d", level, position),
		Level:             level,
		Position:          position,
		DonationsReceived: received,
		TotalReceived:     rule.UnitAmount.Mul(decimal.NewFromInt(int64(received))),
		DonationsRequired: rule.RequiredDonations,
	}
	if participantID != "" {
		id := participantID
		slot.ParticipantID = &id
		if _, ok := f.participants[participantID]; !ok {
			f.participants[participantID] = models.Participant{ID: participantID, CurrentLevel: level}
		}
	}
	f.slots[slot.ID] = slot
	return slot
}

func (f *fakeMatrixStore) seedLevel(level, from, to int) {
	for pos := from; pos <= to; pos++ {
		f.seedSlot(level, pos, pid(pos), 0)
	}
}

func (f *fakeMatrixStore) completeSlot(level, position int) {
	id := fmt.Sprintf("slot-%d-%d", level, position)
	slot := f.slots[id]
	at := f.now.Add(-time.Hour)
	slot.DonationsReceived = slot.DonationsRequired
	slot.LevelCompleted = true
	slot.LevelCompletedAt = &at
	f.slots[id] = slot
}

func (f *fakeMatrixStore) seedDonation(donor, receiver string, amount int64, t models.DonationType, status models.DonationStatus) models.Donation {
	d := models.Donation{
		ID:         f.nextID("don"),
		DonorID:    donor,
		ReceiverID: receiver,
		Amount:     decimal.NewFromInt(amount),
		Type:       t,
		Status:     status,
		CreatedAt:  f.now,
		UpdatedAt:  f.now,
	}
	if status == models.DonationStatusConfirmed {
		at := f.now
		d.CompletedAt = &at
	}
	f.donations[d.ID] = d
	return d
}

func (f *fakeMatrixStore) setLevel(participantID string, level int) {
	p := f.participants[participantID]
	p.ID = participantID
	p.CurrentLevel = level
	f.participants[participantID] = p
}

func (f *fakeMatrixStore) slotOf(participantID string, level int) (models.QueueSlot, bool) {
	for _, s := range f.slots {
		if s.Level == level && s.HeldBy(participantID) {
			return s, true
		}
	}
	return models.QueueSlot{}, false
}

func (f *fakeMatrixStore) donationsOfType(t models.DonationType) []models.Donation {
	var out []models.Donation
	for _, d := range f.donations {
		if d.Type == t {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// slotStore

func (f *fakeMatrixStore) SlotsByLevel(_ context.Context, level int) ([]models.QueueSlot, error) {
	var out []models.QueueSlot
	for _, s := range f.slots {
		if s.Level == level {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (f *fakeMatrixStore) SlotsByParticipant(_ context.Context, participantID string) ([]models.QueueSlot, error) {
	var out []models.QueueSlot
	for _, s := range f.slots {
		if s.HeldBy(participantID) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level < out[j].Level })
	return out, nil
}

func (f *fakeMatrixStore) SlotByParticipant(_ context.Context, participantID string, level int) (*models.QueueSlot, error) {
	if s, ok := f.slotOf(participantID, level); ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeMatrixStore) SlotByPosition(_ context.Context, level, position int) (*models.QueueSlot, error) {
	for _, s := range f.slots {
		if s.Level == level && s.Position == position {
			return &s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeMatrixStore) SlotByID(_ context.Context, id string) (*models.QueueSlot, error) {
	if s, ok := f.slots[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeMatrixStore) InsertSlot(_ context.Context, slot *models.QueueSlot) error {
	for _, s := range f.slots {
		if s.Level == slot.Level && s.Position == slot.Position {
			return fmt.Errorf("duplicate position %d in level %d", slot.Position, slot.Level)
		}
	}
	if slot.ID == "" {
		slot.ID = fmt.Sprintf("slot-%d-%d", slot.Level, slot.Position)
	}
	f.slots[slot.ID] = *slot
	return nil
}

func (f *fakeMatrixStore) AssignParticipant(_ context.Context, slotID, participantID string, required int) error {
	s, ok := f.slots[slotID]
	if !ok || s.Occupied() {
		return repository.ErrSlotTaken
	}
	id := participantID
	s.ParticipantID = &id
	s.DonationsReceived = 0
	s.TotalReceived = decimal.Zero
	s.DonationsRequired = required
	s.LevelCompleted = false
	s.LevelCompletedAt = nil
	f.slots[slotID] = s
	return nil
}

func (f *fakeMatrixStore) UpdateSlotCounters(_ context.Context, slotID string, received int, total decimal.Decimal) error {
	s, ok := f.slots[slotID]
	if !ok {
		return sql.ErrNoRows
	}
	s.DonationsReceived = received
	s.TotalReceived = total
	f.slots[slotID] = s
	return nil
}

func (f *fakeMatrixStore) MarkLevelCompleted(_ context.Context, slotID string, at time.Time) (bool, error) {
	s, ok := f.slots[slotID]
	if !ok || s.LevelCompleted {
		return false, nil
	}
	s.LevelCompleted = true
	s.LevelCompletedAt = &at
	f.slots[slotID] = s
	return true, nil
}

func (f *fakeMatrixStore) ClearParticipant(_ context.Context, slotID string) error {
	s, ok := f.slots[slotID]
	if !ok || !s.Occupied() {
		return nil
	}
	s.PassedParticipantIDs = append(append(pq.StringArray(nil), s.PassedParticipantIDs...), *s.ParticipantID)
	s.ParticipantID = nil
	f.slots[slotID] = s
	return nil
}

func (f *fakeMatrixStore) SetPositions(_ context.Context, level int, moves []models.SlotPosition) error {
	for _, m := range moves {
		s, ok := f.slots[m.SlotID]
		if !ok || s.Level != level {
			return fmt.Errorf("queue slot %s not in level %d", m.SlotID, level)
		}
		s.Position = m.Position
		f.slots[m.SlotID] = s
	}
	seen := make(map[int]bool)
	for _, s := range f.slots {
		if s.Level != level {
			continue
		}
		if seen[s.Position] {
			return fmt.Errorf("duplicate position %d in level %d", s.Position, level)
		}
		seen[s.Position] = true
	}
	return nil
}

func (f *fakeMatrixStore) QueueStats(_ context.Context, level int) (*models.QueueStats, error) {
	stats := &models.QueueStats{Level: level}
	for _, s := range f.slots {
		if s.Level != level {
			continue
		}
		stats.TotalSlots++
		if s.Occupied() {
			stats.FilledSlots++
		}
		if s.LevelCompleted {
			stats.CompletedSlots++
		}
	}
	return stats, nil
}

// donationLedger

func (f *fakeMatrixStore) CreateDonation(_ context.Context, in models.NewDonation) (*models.Donation, error) {
	if f.failCreate != nil {
		if err := f.failCreate(in); err != nil {
			return nil, err
		}
	}
	d := models.Donation{
		ID:         f.nextID("don"),
		DonorID:    in.DonorID,
		ReceiverID: in.ReceiverID,
		Amount:     in.Amount,
		Type:       in.Type,
		Status:     models.DonationStatusPendingPayment,
		Deadline:   in.Deadline,
		CreatedAt:  f.now,
		UpdatedAt:  f.now,
	}
	if in.Notes != "" {
		notes := in.Notes
		d.Notes = &notes
	}
	f.donations[d.ID] = d
	return &d, nil
}

func (f *fakeMatrixStore) GetDonation(_ context.Context, id string) (*models.Donation, error) {
	if d, ok := f.donations[id]; ok {
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeMatrixStore) GetDonationForUpdate(ctx context.Context, id string) (*models.Donation, error) {
	return f.GetDonation(ctx, id)
}

func (f *fakeMatrixStore) TransitionStatus(_ context.Context, id string, from, to models.DonationStatus, at time.Time) (bool, error) {
	d, ok := f.donations[id]
	if !ok || d.Status != from {
		return false, nil
	}
	d.Status = to
	d.UpdatedAt = at
	if to == models.DonationStatusConfirmed {
		d.CompletedAt = &at
	}
	f.donations[id] = d
	return true, nil
}

func (f *fakeMatrixStore) AttachReceipt(_ context.Context, id, receiptRef string, at time.Time) (bool, error) {
	d, ok := f.donations[id]
	if !ok || d.Status != models.DonationStatusPendingPayment {
		return false, nil
	}
	d.ReceiptRef = &receiptRef
	d.Status = models.DonationStatusPendingConfirmation
	d.UpdatedAt = at
	f.donations[id] = d
	return true, nil
}

func (f *fakeMatrixStore) FindPending(_ context.Context, donorID string, types []models.DonationType) ([]models.Donation, error) {
	var out []models.Donation
	for _, d := range f.donations {
		if d.DonorID != donorID || !d.Status.IsPending() {
			continue
		}
		for _, t := range types {
			if d.Type == t {
				out = append(out, d)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeMatrixStore) CountConfirmed(_ context.Context, donationType models.DonationType, since time.Time) (int, error) {
	count := 0
	for _, d := range f.donations {
		if d.Type == donationType && d.Status == models.DonationStatusConfirmed && d.CompletedAt != nil && !d.CompletedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (f *fakeMatrixStore) HasOpenDonation(_ context.Context, donorID, receiverID string) (bool, error) {
	for _, d := range f.donations {
		if d.DonorID == donorID && d.ReceiverID == receiverID && d.Status.IsPending() {
			return true, nil
		}
	}
	return false, nil
}

// participantDirectory

func (f *fakeMatrixStore) GetParticipant(_ context.Context, id string) (*models.Participant, error) {
	if p, ok := f.participants[id]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeMatrixStore) ParticipantsByIDs(_ context.Context, ids []string) ([]models.Participant, error) {
	var out []models.Participant
	for _, id := range ids {
		if p, ok := f.participants[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeMatrixStore) GetCurrentLevel(_ context.Context, id string) (int, error) {
	if p, ok := f.participants[id]; ok {
		return p.CurrentLevel, nil
	}
	return 0, sql.ErrNoRows
}

func (f *fakeMatrixStore) SetCurrentLevel(_ context.Context, id string, level int) error {
	p, ok := f.participants[id]
	if !ok {
		return sql.ErrNoRows
	}
	if p.CurrentLevel < level {
		p.CurrentLevel = level
		f.participants[id] = p
	}
	return nil
}

func (f *fakeMatrixStore) MarkReentryEligible(_ context.Context, id string, at time.Time) error {
	if f.failReopen != nil {
		return f.failReopen
	}
	p, ok := f.participants[id]
	if !ok {
		return sql.ErrNoRows
	}
	p.CanReenter = true
	p.N3CompletedAt = &at
	f.participants[id] = p
	return nil
}

func (f *fakeMatrixStore) EnsureParticipant(_ context.Context, id string) error {
	if _, ok := f.participants[id]; !ok {
		f.participants[id] = models.Participant{ID: id, CurrentLevel: models.MinLevel, CreatedAt: f.now}
	}
	return nil
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evts ...events.Event) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evts...)
	return nil
}

func (p *recordingPublisher) ofType(eventType string) []events.Event {
	var out []events.Event
	for _, e := range p.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
