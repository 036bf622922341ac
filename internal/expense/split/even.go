package split

import "github.com/shopspring/decimal"

// =============================================================================
// EVEN SPLIT STRATEGY
// Divides the expense equally among all participants
// =============================================================================

// EvenStrategy implements the Strategy interface for even splits
type EvenStrategy struct{}

// Type returns the split type identifier
func (s *EvenStrategy) Type() SplitType {
	return SplitTypeEven
}

// Validate checks if the inputs are valid for an even split
func (s *EvenStrategy) Validate(totalAmount decimal.Decimal, participants []SplitInput) error {
	return validateCommon(totalAmount, participants)
}

// Calculate divides the total amount evenly among all participants. The payer
// gets a share too; leftover cents from rounding land on the first
// participant so the shares sum to the total exactly.
func (s *EvenStrategy) Calculate(totalAmount decimal.Decimal, participants []SplitInput) ([]SplitOutput, error) {
	if err := s.Validate(totalAmount, participants); err != nil {
		return nil, err
	}

	count := decimal.NewFromInt(int64(len(participants)))
	sharePerPerson := round2(totalAmount.Div(count))

	distributed := sharePerPerson.Mul(count)
	remainder := totalAmount.Sub(distributed)

	outputs := make([]SplitOutput, len(participants))
	for i, p := range participants {
		share := sharePerPerson
		if i == 0 {
			share = round2(share.Add(remainder))
		}
		outputs[i] = SplitOutput{MemberID: p.MemberID, Share: share}
	}

	return outputs, nil
}
