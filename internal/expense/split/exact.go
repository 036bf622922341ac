package split

import "github.com/shopspring/decimal"

// =============================================================================
// EXACT SPLIT STRATEGY
// Each participant owes a specific exact amount (must sum to total)
// =============================================================================

// ExactStrategy implements the Strategy interface for exact amount splits
type ExactStrategy struct{}

// Type returns the split type identifier
func (s *ExactStrategy) Type() SplitType {
	return SplitTypeExact
}

// Validate checks if the inputs are valid for an exact split
func (s *ExactStrategy) Validate(totalAmount decimal.Decimal, participants []SplitInput) error {
	if err := validateCommon(totalAmount, participants); err != nil {
		return err
	}

	totalExact := decimal.Zero
	for _, p := range participants {
		if p.Amount == nil {
			return ErrMissingExactAmount
		}
		if p.Amount.IsNegative() {
			return ErrNegativeShare
		}
		totalExact = totalExact.Add(*p.Amount)
	}

	// sub-cent slack only: a full cent off is a client error
	if totalExact.Sub(totalAmount).Abs().GreaterThanOrEqual(decimal.New(1, -2)) {
		return ErrInvalidExactAmounts
	}

	return nil
}

// Calculate returns the share specified for each participant, payer included.
// Rounding sub-cent amounts can leave the shares off by a cent, so the last
// participant absorbs the difference and the stored shares always sum to the
// total.
func (s *ExactStrategy) Calculate(totalAmount decimal.Decimal, participants []SplitInput) ([]SplitOutput, error) {
	if err := s.Validate(totalAmount, participants); err != nil {
		return nil, err
	}

	outputs := make([]SplitOutput, len(participants))
	distributed := decimal.Zero

	for i, p := range participants {
		share := round2(*p.Amount)
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
