package split

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func sumShares(outputs []SplitOutput) decimal.Decimal {
	total := decimal.Zero
	for _, o := range outputs {
		total = total.Add(o.Share)
	}
	return total
}

func TestEvenStrategy(t *testing.T) {
	tests := []struct {
		name         string
		total        string
		participants []SplitInput
		wantShares   []string
		wantErr      error
	}{
		{
			name:         "three-way split of 90",
			total:        "90",
			participants: []SplitInput{{MemberID: "a"}, {MemberID: "b"}, {MemberID: "c"}},
			wantShares:   []string{"30", "30", "30"},
		},
		{
			name:         "remainder cent lands on first participant",
			total:        "10",
			participants: []SplitInput{{MemberID: "a"}, {MemberID: "b"}, {MemberID: "c"}},
			wantShares:   []string{"3.34", "3.33", "3.33"},
		},
		{
			name:         "single participant owns the whole amount",
			total:        "42.17",
			participants: []SplitInput{{MemberID: "a"}},
			wantShares:   []string{"42.17"},
		},
		{
			name:         "no participants",
			total:        "10",
			participants: nil,
			wantErr:      ErrNoParticipants,
		},
		{
			name:         "zero amount",
			total:        "0",
			participants: []SplitInput{{MemberID: "a"}},
			wantErr:      ErrNonPositiveAmount,
		},
		{
			name:         "duplicate participant",
			total:        "10",
			participants: []SplitInput{{MemberID: "a"}, {MemberID: "a"}},
			wantErr:      ErrDuplicateParticipant,
		},
	}

	strategy := &EvenStrategy{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outputs, err := strategy.Calculate(dec(tt.total), tt.participants)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Calculate() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Calculate() error = %v", err)
			}
			assertShares(t, outputs, tt.participants, tt.wantShares)
			if got := sumShares(outputs); !got.Equal(dec(tt.total)) {
				t.Errorf("shares sum to %s, want %s", got, tt.total)
			}
		})
	}
}

func TestPercentageStrategy(t *testing.T) {
	tests := []struct {
		name         string
		total        string
		participants []SplitInput
		wantShares   []string
		wantErr      error
	}{
		{
			name:  "fifty fifty",
			total: "100",
			participants: []SplitInput{
				{MemberID: "a", Percentage: decPtr("50")},
				{MemberID: "b", Percentage: decPtr("50")},
			},
			wantShares: []string{"50", "50"},
		},
		{
			name:  "uneven percentages with rounding fixup on last",
			total: "10",
			participants: []SplitInput{
				{MemberID: "a", Percentage: decPtr("33.33")},
				{MemberID: "b", Percentage: decPtr("33.33")},
				{MemberID: "c", Percentage: decPtr("33.34")},
			},
			wantShares: []string{"3.33", "3.33", "3.34"},
		},
		{
			name:  "percentages not summing to 100",
			total: "100",
			participants: []SplitInput{
				{MemberID: "a", Percentage: decPtr("60")},
				{MemberID: "b", Percentage: decPtr("30")},
			},
			wantErr: ErrInvalidPercentages,
		},
		{
			name:  "missing percentage",
			total: "100",
			participants: []SplitInput{
				{MemberID: "a", Percentage: decPtr("100")},
				{MemberID: "b"},
			},
			wantErr: ErrMissingPercentage,
		},
		{
			name:  "percentage above 100",
			total: "100",
			participants: []SplitInput{
				{MemberID: "a", Percentage: decPtr("150")},
			},
			wantErr: ErrPercentageOutOfRange,
		},
	}

	strategy := &PercentageStrategy{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outputs, err := strategy.Calculate(dec(tt.total), tt.participants)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Calculate() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Calculate() error = %v", err)
			}
			assertShares(t, outputs, tt.participants, tt.wantShares)
			if got := sumShares(outputs); !got.Equal(dec(tt.total)) {
				t.Errorf("shares sum to %s, want %s", got, tt.total)
			}
		})
	}
}

func TestExactStrategy(t *testing.T) {
	tests := []struct {
		name         string
		total        string
		participants []SplitInput
		wantShares   []string
		wantErr      error
	}{
		{
			name:  "exact amounts summing to total",
			total: "75.50",
			participants: []SplitInput{
				{MemberID: "a", Amount: decPtr("50.25")},
				{MemberID: "b", Amount: decPtr("25.25")},
			},
			wantShares: []string{"50.25", "25.25"},
		},
		{
			name:  "sub-cent drift is tolerated",
			total: "100.00",
			participants: []SplitInput{
				{MemberID: "a", Amount: decPtr("50.005")},
				{MemberID: "b", Amount: decPtr("49.99")},
			},
			wantShares: []string{"50.01", "49.99"},
		},
		{
			name:  "rounded drift lands on last participant",
			total: "100.00",
			participants: []SplitInput{
				{MemberID: "a", Amount: decPtr("33.334")},
				{MemberID: "b", Amount: decPtr("33.334")},
				{MemberID: "c", Amount: decPtr("33.334")},
			},
			wantShares: []string{"33.33", "33.33", "33.34"},
		},
		{
			name:  "one cent short is rejected",
			total: "100.00",
			participants: []SplitInput{
				{MemberID: "a", Amount: decPtr("50.00")},
				{MemberID: "b", Amount: decPtr("49.99")},
			},
			wantErr: ErrInvalidExactAmounts,
		},
		{
			name:  "negative share",
			total: "10",
			participants: []SplitInput{
				{MemberID: "a", Amount: decPtr("20")},
				{MemberID: "b", Amount: decPtr("-10")},
			},
			wantErr: ErrNegativeShare,
		},
		{
			name:  "missing amount",
			total: "10",
			participants: []SplitInput{
				{MemberID: "a", Amount: decPtr("10")},
				{MemberID: "b"},
			},
			wantErr: ErrMissingExactAmount,
		},
	}

	strategy := &ExactStrategy{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outputs, err := strategy.Calculate(dec(tt.total), tt.participants)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Calculate() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Calculate() error = %v", err)
			}
			assertShares(t, outputs, tt.participants, tt.wantShares)
			if got := sumShares(outputs); !got.Equal(dec(tt.total)) {
				t.Errorf("shares sum to %s, want %s", got, tt.total)
			}
		})
	}
}

func TestFactory(t *testing.T) {
	factory := NewSplitStrategyFactory()

	for _, splitType := range []SplitType{SplitTypeEven, SplitTypePercentage, SplitTypeExact} {
		strategy, err := factory.Create(splitType)
		if err != nil {
			t.Fatalf("Create(%s) error = %v", splitType, err)
		}
		if strategy.Type() != splitType {
			t.Errorf("Create(%s).Type() = %s", splitType, strategy.Type())
		}
	}

	if _, err := factory.CreateFromString("RANDOM"); !errors.Is(err, ErrUnknownSplitType) {
		t.Errorf("CreateFromString(RANDOM) error = %v, want ErrUnknownSplitType", err)
	}
}

func assertShares(t *testing.T, outputs []SplitOutput, participants []SplitInput, want []string) {
	t.Helper()
	if len(outputs) != len(want) {
		t.Fatalf("got %d shares, want %d", len(outputs), len(want))
	}
	for i := range want {
		if outputs[i].MemberID != participants[i].MemberID {
			t.Errorf("share[%d] member = %s, want %s", i, outputs[i].MemberID, participants[i].MemberID)
		}
		if !outputs[i].Share.Equal(dec(want[i])) {
			t.Errorf("share[%d] = %s, want %s", i, outputs[i].Share, want[i])
		}
	}
}
