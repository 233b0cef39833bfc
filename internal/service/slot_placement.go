package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/donation-matrix-api/internal/models"
	appErrors "github.com/noah-isme/donation-matrix-api/pkg/errors"
)

type placement struct {
	slot      *models.QueueSlot
	requested int
	existing  bool
}

func (p *placement) reassigned() bool {
	return !p.existing && p.slot.Position != p.requested
}

// placeParticipant ensures participantID holds a slot in level. An empty slot row at the
// target position is reused. In strict mode an occupied position or an existing slot in
// the level is an error; otherwise the next free position above the requested one is used.
func placeParticipant(ctx context.Context, slots slotStore, participantID string, level, position int, strict bool) (*placement, error) {
	rule, ok := models.RuleFor(level)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown level %d", level))
	}

	existing, err := slots.SlotByParticipant(ctx, participantID, level)
	if err == nil {
		if strict {
			return nil, appErrors.Clone(appErrors.ErrAlreadyInQueue, fmt.Sprintf("participant already holds position %d in level %d", existing.Position, level))
		}
		return &placement{slot: existing, requested: position, existing: true}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load participant slot: %w", err)
	}

	levelSlots, err := slots.SlotsByLevel(ctx, level)
	if err != nil {
		return nil, err
	}
	byPosition := make(map[int]*models.QueueSlot, len(levelSlots))
	for i := range levelSlots {
		byPosition[levelSlots[i].Position] = &levelSlots[i]
	}

	target := position
	if strict {
		if s, ok := byPosition[target]; ok && s.Occupied() {
			return nil, appErrors.Clone(appErrors.ErrPositionOccupied, fmt.Sprintf("position %d in level %d is occupied", target, level))
		}
	} else {
		for {
			s, ok := byPosition[target]
			if !ok || !s.Occupied() {
				break
			}
			target++
		}
	}

	pid := participantID
	if empty, ok := byPosition[target]; ok {
		if err := slots.AssignParticipant(ctx, empty.ID, participantID, rule.RequiredDonations); err != nil {
			return nil, err
		}
		empty.ParticipantID = &pid
		empty.DonationsReceived = 0
		empty.TotalReceived = decimal.Zero
		empty.DonationsRequired = rule.RequiredDonations
		empty.LevelCompleted = false
		empty.LevelCompletedAt = nil
		return &placement{slot: empty, requested: position}, nil
	}

	slot := &models.QueueSlot{
		Level:             level,
		Position:          target,
		ParticipantID:     &pid,
		TotalReceived:     decimal.Zero,
		DonationsRequired: rule.RequiredDonations,
	}
	if err := slots.InsertSlot(ctx, slot); err != nil {
		return nil, err
	}
	return &placement{slot: slot, requested: position}, nil
}
