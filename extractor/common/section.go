package common

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Sign is the multiplier a section applies to unsigned amounts.
type Sign int

const (
	SignUnknown Sign = 0
	SignIncome  Sign = 1
	SignExpense Sign = -1
)

func (s Sign) String() string {
	switch s {
	case SignIncome:
		return "+1"
	case SignExpense:
		return "-1"
	default:
		return "0"
	}
}

// Apply returns abs(amount) * s. The raw sign of amount is discarded.
func (s Sign) Apply(amount decimal.Decimal) decimal.Decimal {
	return amount.Abs().Mul(decimal.NewFromInt(int64(s)))
}

// Classifier maps free text to a section sign by case-insensitive substring
// search. Income phrases are checked before expense phrases.
type Classifier struct {
	positive []string
	negative []string
	terminal []string
}

func NewClassifier(positive, negative, terminal []string) Classifier {
	return Classifier{
		positive: lowerAll(positive),
		negative: lowerAll(negative),
		terminal: lowerAll(terminal),
	}
}

// LoadClassifier reads the vocabularies under sections.* from viper.
func LoadClassifier() Classifier {
	return NewClassifier(
		viper.GetStringSlice("sections.positive"),
		viper.GetStringSlice("sections.negative"),
		viper.GetStringSlice("sections.terminal"),
	)
}

func (c Classifier) Classify(text string) Sign {
	lower := strings.ToLower(text)
	if containsAny(lower, c.positive) {
		return SignIncome
	}
	if containsAny(lower, c.negative) {
		return SignExpense
	}
	return SignUnknown
}

func (c Classifier) IsTerminal(text string) bool {
	return containsAny(strings.ToLower(text), c.terminal)
}

// SectionState is where a scan is within the document.
type SectionState int

const (
	StateUnknown SectionState = iota
	StateIncome
	StateExpense
	StateTerminal
)

func (s SectionState) String() string {
	switch s {
	case StateIncome:
		return "income"
	case StateExpense:
		return "expense"
	case StateTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// SectionContext threads the current section through one document scan.
// A terminal section emits nothing until a new income or expense header.
type SectionContext struct {
	classifier Classifier
	state      SectionState
}

func NewSectionContext(c Classifier) *SectionContext {
	return &SectionContext{classifier: c}
}

// Observe feeds a non-transaction line to the state machine and reports
// whether it was a section header.
func (sc *SectionContext) Observe(text string) bool {
	if sc.classifier.IsTerminal(text) {
		sc.state = StateTerminal
		return true
	}
	switch sc.classifier.Classify(text) {
	case SignIncome:
		sc.state = StateIncome
		return true
	case SignExpense:
		sc.state = StateExpense
		return true
	}
	return false
}

func (sc *SectionContext) State() SectionState {
	return sc.state
}

func (sc *SectionContext) Terminal() bool {
	return sc.state == StateTerminal
}

func (sc *SectionContext) Sign() Sign {
	switch sc.state {
	case StateIncome:
		return SignIncome
	case StateExpense:
		return SignExpense
	default:
		return SignUnknown
	}
}

func containsAny(lower string, phrases []string) bool {
	for _, p := range phrases {
		if p != "" && strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(strings.TrimSpace(s)))
	}
	return out
}
