package service

import (
	"sort"

	"github.com/noah-isme/donation-matrix-api/internal/events"
	"github.com/noah-isme/donation-matrix-api/internal/models"
)

// effects collects what a matrix transaction did so it can be published, measured and
// cache-invalidated once the transaction commits.
type effects struct {
	events    []events.Event
	generated []models.DonationType
	completed []int
	advanced  []int
	skipped   []string
	confirmed int
	touched   map[string]struct{}
}

type effectsMark struct {
	events    int
	generated int
}

func newEffects() *effects {
	return &effects{touched: make(map[string]struct{})}
}

func (fx *effects) emit(evt events.Event) {
	fx.events = append(fx.events, evt)
}

func (fx *effects) touch(ids ...string) {
	for _, id := range ids {
		if id != "" {
			fx.touched[id] = struct{}{}
		}
	}
}

func (fx *effects) donationCreated(d *models.Donation) {
	fx.generated = append(fx.generated, d.Type)
	fx.touch(d.DonorID, d.ReceiverID)
	fx.emit(events.New(events.TypeDonationCreated, d.ID, d))
}

// mark and rewind discard what a rolled back savepoint recorded.
func (fx *effects) mark() effectsMark {
	return effectsMark{events: len(fx.events), generated: len(fx.generated)}
}

func (fx *effects) rewind(m effectsMark) {
	fx.events = fx.events[:m.events]
	fx.generated = fx.generated[:m.generated]
}

func (fx *effects) touchedIDs() []string {
	ids := make([]string, 0, len(fx.touched))
	for id := range fx.touched {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type levelCompletedPayload struct {
	ParticipantID string `json:"participant_id"`
	Level         int    `json:"level"`
	Position      int    `json:"position"`
}

type placementPayload struct {
	ParticipantID     string `json:"participant_id"`
	Level             int    `json:"level"`
	Position          int    `json:"position"`
	RequestedPosition int    `json:"requested_position"`
}

type advancementPayload struct {
	ParticipantID string `json:"participant_id"`
	FromLevel     int    `json:"from_level"`
	ToLevel       int    `json:"to_level"`
	Mechanism     string `json:"mechanism"`
}

type skippedPayload struct {
	ParticipantID string `json:"participant_id"`
	Level         int    `json:"level"`
	Position      int    `json:"position,omitempty"`
	Step          string `json:"step"`
	Reason        string `json:"reason"`
}

type packagePayload struct {
	DonorID        string `json:"donor_id"`
	ConfirmedCount int    `json:"confirmed_upgrades"`
}
