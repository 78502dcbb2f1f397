package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finqa/internal/domain"
)

func TestClassifyPrimaryIntent(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		name     string
		question string
		want     domain.IntentKind
	}{
		{
			name:     "plain question defaults to query",
			question: "What are the branch opening hours?",
			want:     domain.IntentQuery,
		},
		{
			name:     "conjoined asks are multi intent",
			question: "how to open mobile banking and current loan rates",
			want:     domain.IntentMultiIntent,
		},
		{
			name:     "eligibility check is reasoning",
			question: "My monthly income is 8000 yuan, am I eligible for a credit loan?",
			want:     domain.IntentReasoning,
		},
		{
			name:     "summary trigger wording",
			question: "Summarize the main functions of corporate online banking",
			want:     domain.IntentSummary,
		},
		{
			name:     "financial product terms",
			question: "current loan interest rates",
			want:     domain.IntentFinancial,
		},
		{
			name:     "amount plus application wording is reasoning",
			question: "I want to apply for a $50,000 loan with monthly income of $8,000",
			want:     domain.IntentReasoning,
		},
		{
			name:     "multi intent wins over reasoning and summary",
			question: "summarize mobile banking features and list the loan requirements",
			want:     domain.IntentMultiIntent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.question)
			assert.Equal(t, tt.want, got.Kind)
		})
	}
}

func TestClassifySubQuestions(t *testing.T) {
	c := NewClassifier()

	t.Run("conjoined asks decompose into two", func(t *testing.T) {
		got := c.Classify("how to open mobile banking and current loan rates")
		require.Len(t, got.SubQuestions, 2)
		assert.Equal(t, "how to open mobile banking?", got.SubQuestions[0])
		assert.Equal(t, "current loan rates?", got.SubQuestions[1])
		assert.True(t, got.IsMultiIntent)
	})

	t.Run("plain question decomposes into exactly one", func(t *testing.T) {
		got := c.Classify("What are the branch opening hours?")
		require.Len(t, got.SubQuestions, 1)
		assert.Equal(t, "What are the branch opening hours?", got.SubQuestions[0])
		assert.False(t, got.IsMultiIntent)
	})

	t.Run("short fragments do not split", func(t *testing.T) {
		got := c.Classify("deposit and withdrawal")
		require.Len(t, got.SubQuestions, 1)
		assert.False(t, got.IsMultiIntent)
		assert.Equal(t, domain.IntentFinancial, got.Kind)
	})

	t.Run("semicolon separates asks", func(t *testing.T) {
		got := c.Classify("how do I reset my password; what is the transfer limit")
		require.Len(t, got.SubQuestions, 2)
		assert.True(t, got.IsMultiIntent)
	})
}

func TestClassifyFlagsAreIndependent(t *testing.T) {
	c := NewClassifier()

	got := c.Classify("summarize mobile banking features and list the loan requirements")
	assert.Equal(t, domain.IntentMultiIntent, got.Kind)
	assert.True(t, got.IsMultiIntent)
	assert.True(t, got.IsSummary)
	assert.True(t, got.IsReasoning)
	assert.True(t, got.IsFinancial)
}

func TestExtractConstraints(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		name     string
		question string
		want     []domain.Constraint
	}{
		{
			name:     "amounts",
			question: "apply for a $50,000 loan with income of 8000 yuan",
			want: []domain.Constraint{
				{Kind: "amount", Value: "$50,000"},
				{Kind: "amount", Value: "8000 yuan"},
			},
		},
		{
			name:     "percentage",
			question: "is the rate still 3.85%?",
			want:     []domain.Constraint{{Kind: "percentage", Value: "3.85%"}},
		},
		{
			name:     "age does not re-match as a duration",
			question: "can a customer 65 years old apply?",
			want:     []domain.Constraint{{Kind: "age", Value: "65 years old"}},
		},
		{
			name:     "loan term",
			question: "mortgage repayment over 30 years",
			want:     []domain.Constraint{{Kind: "term", Value: "30 years"}},
		},
		{
			name:     "no numbers no constraints",
			question: "how do I open an account?",
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.question)
			assert.Equal(t, tt.want, got.Constraints)
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	c := NewClassifier()
	q := "My monthly income is 8000 yuan, am I eligible for a 500,000 yuan credit loan?"

	first := c.Classify(q)
	second := c.Classify(q)
	assert.Equal(t, first, second)
}

func TestClassifyNeverFails(t *testing.T) {
	c := NewClassifier()

	for _, q := range []string{"", "???", "and", " ; "} {
		got := c.Classify(q)
		assert.Equal(t, domain.IntentQuery, got.Kind)
		require.Len(t, got.SubQuestions, 1)
	}
}
