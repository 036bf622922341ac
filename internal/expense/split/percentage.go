package split

import "github.com/shopspring/decimal"

// =============================================================================
// PERCENTAGE SPLIT STRATEGY
// Divides the expense based on specified percentages for each participant
// =============================================================================

// PercentageStrategy implements the Strategy interface for percentage-based splits
type PercentageStrategy struct{}

// Type returns the split type identifier
func (s *PercentageStrategy) Type() SplitType {
	return SplitTypePercentage
}

// Validate checks if the inputs are valid for a percentage split
func (s *PercentageStrategy) Validate(totalAmount decimal.Decimal, participants []SplitInput) error {
	if err := validateCommon(totalAmount, participants); err != nil {
		return err
	}

	totalPercentage := decimal.Zero
	for _, p := range participants {
		if p.Percentage == nil {
			return ErrMissingPercentage
		}
		if p.Percentage.IsNegative() || p.Percentage.GreaterThan(hundred) {
			return ErrPercentageOutOfRange
		}
		totalPercentage = totalPercentage.Add(*p.Percentage)
	}

	// Allow for percentages that were rounded client-side (99.99 to 100.01)
	if totalPercentage.Sub(hundred).Abs().GreaterThan(decimal.New(1, -2)) {
		return ErrInvalidPercentages
	}

	return nil
}

// Calculate divides the total amount based on each participant's percentage.
// Rounded shares rarely add up to the exact total, so the last participant
// absorbs the difference.
func (s *PercentageStrategy) Calculate(totalAmount decimal.Decimal, participants []SplitInput) ([]SplitOutput, error) {
	if err := s.Validate(totalAmount, participants); err != nil {
		return nil, err
	}

	outputs := make([]SplitOutput, len(participants))
	distributed := decimal.Zero

	for i, p := range participants {
		share := round2(totalAmount.Mul(*p.Percentage).Div(hundred))
		distributed = distributed.Add(share)
		outputs[i] = SplitOutput{MemberID: p.MemberID, Share: share}
	}

	difference := totalAmount.Sub(distributed)
	if !difference.IsZero() {
		last := len(outputs) - 1
		outputs[last].Share = round2(outputs[last].Share.Add(difference))
	}

	return outputs, nil
}
