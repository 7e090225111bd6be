package common

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func testClassifier() Classifier {
	return NewClassifier(
		[]string{"deposits", "additions", "credits", "payments received", "income"},
		[]string{"withdrawals", "deductions", "debits", "checks paid", "checks", "purchases", "fees", "subtractions"},
		[]string{"daily balance", "balance detail"},
	)
}

func TestClassify(t *testing.T) {
	c := testClassifier()

	tests := []struct {
		text string
		want Sign
	}{
		{"Deposits and Other Additions", SignIncome},
		{"Banking/Debit Card Withdrawals and Purchases", SignExpense},
		{"Online and Electronic Banking Deductions", SignExpense},
		{"CHECKS PAID", SignExpense},
		{"Account summary", SignUnknown},
		{"", SignUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.text))
		})
	}
}

func TestClassify_IncomeWinsOnMixedText(t *testing.T) {
	c := testClassifier()
	assert.Equal(t, SignIncome, c.Classify("Deposits ... Withdrawals"))
}

func TestSectionContext_Transitions(t *testing.T) {
	sc := NewSectionContext(testClassifier())
	assert.Equal(t, StateUnknown, sc.State())
	assert.Equal(t, SignUnknown, sc.Sign())

	assert.False(t, sc.Observe("Page 1 of 2"))
	assert.Equal(t, StateUnknown, sc.State())

	assert.True(t, sc.Observe("Deposits and Other Additions"))
	assert.Equal(t, SignIncome, sc.Sign())

	assert.True(t, sc.Observe("Banking/Debit Card Withdrawals"))
	assert.Equal(t, SignExpense, sc.Sign())

	assert.True(t, sc.Observe("Daily Balance Detail"))
	assert.True(t, sc.Terminal())
	assert.Equal(t, SignUnknown, sc.Sign())

	// plain text does not leave the terminal section
	assert.False(t, sc.Observe("08/29 1,200.00"))
	assert.True(t, sc.Terminal())

	assert.True(t, sc.Observe("Deposits continued"))
	assert.False(t, sc.Terminal())
	assert.Equal(t, SignIncome, sc.Sign())
}

func TestSignApply_IgnoresRawSign(t *testing.T) {
	raw := decimal.RequireFromString("-12.50")

	assert.True(t, SignExpense.Apply(raw).Equal(decimal.RequireFromString("-12.50")))
	assert.True(t, SignIncome.Apply(raw).Equal(decimal.RequireFromString("12.50")))
}
