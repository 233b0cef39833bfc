package models

import "github.com/shopspring/decimal"

const (
	MinLevel = 1
	MaxLevel = 3

	cascadeBlockSize    = 3
	cascadeBasePosition = 34
)

// LevelRule is the static configuration of one matrix level.
type LevelRule struct {
	Level             int
	UnitAmount        decimal.Decimal
	RequiredDonations int
	// UpgradeType is empty for the last level.
	UpgradeType    DonationType
	UpgradeAmount  decimal.Decimal
	SpilloverType  DonationType
	SpilloverTotal decimal.Decimal
	// SpilloverUnit splits SpilloverTotal into individual donations; zero means a single donation.
	SpilloverUnit decimal.Decimal
}

var (
	// PackageAmount is the bonus reinjection emitted by the package trigger.
	PackageAmount = decimal.NewFromInt(8000)

	defaultLevelRules = map[int]LevelRule{
		1: {
			Level:             1,
			UnitAmount:        decimal.NewFromInt(100),
			RequiredDonations: 3,
			UpgradeType:       DonationTypeUpgradeN2,
			UpgradeAmount:     decimal.NewFromInt(200),
			SpilloverType:     DonationTypeCascadeN1,
			SpilloverTotal:    decimal.NewFromInt(100),
		},
		2: {
			Level:             2,
			UnitAmount:        decimal.NewFromInt(200),
			RequiredDonations: 18,
			UpgradeType:       DonationTypeUpgradeN3,
			UpgradeAmount:     decimal.NewFromInt(1600),
			SpilloverType:     DonationTypeReinjectionN2,
			SpilloverTotal:    decimal.NewFromInt(2000),
			SpilloverUnit:     decimal.NewFromInt(200),
		},
		3: {
			Level:             3,
			UnitAmount:        decimal.NewFromInt(1600),
			RequiredDonations: 27,
			SpilloverType:     DonationTypeFinalPaymentN3,
			SpilloverTotal:    decimal.NewFromInt(8000),
		},
	}
)

// RuleFor returns the rule of a level.
func RuleFor(level int) (LevelRule, bool) {
	rule, ok := defaultLevelRules[level]
	return rule, ok
}

// ValidLevel reports whether level is one of the matrix levels.
func ValidLevel(level int) bool {
	return level >= MinLevel && level <= MaxLevel
}

// LevelByAmount maps a donation amount to the level whose unit it matches.
// Unknown amounts fall back to level 1.
func LevelByAmount(amount decimal.Decimal) int {
	for level := MinLevel; level <= MaxLevel; level++ {
		if defaultLevelRules[level].UnitAmount.Equal(amount) {
			return level
		}
	}
	return MinLevel
}

// CascadeReceiverPosition returns the level-1 position fed by a completing donor:
// every block of three consecutive positions feeds one position from 34 upward.
func CascadeReceiverPosition(donorPosition int) int {
	return floorDiv(donorPosition-1, cascadeBlockSize) + cascadeBasePosition
}

// SplitAmount breaks total into unit-sized pieces. A non-positive unit yields total as a single piece.
func SplitAmount(total, unit decimal.Decimal) []decimal.Decimal {
	if !total.IsPositive() {
		return nil
	}
	if !unit.IsPositive() || unit.GreaterThanOrEqual(total) {
		return []decimal.Decimal{total}
	}
	pieces := make([]decimal.Decimal, 0, total.Div(unit).IntPart()+1)
	remaining := total
	for remaining.GreaterThanOrEqual(unit) {
		pieces = append(pieces, unit)
		remaining = remaining.Sub(unit)
	}
	if remaining.IsPositive() {
		pieces = append(pieces, remaining)
	}
	return pieces
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
