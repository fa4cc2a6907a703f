package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ask/pkg/llm"
	"github.com/ekaya-inc/ekaya-ask/pkg/models"
	"github.com/ekaya-inc/ekaya-ask/pkg/prompts"
)

const salesSchema = "Table: sales\n  - id (INTEGER)\n  - region (TEXT)\n  - amount (REAL)\n"

func TestIsSchemaQuestion(t *testing.T) {
	tests := []struct {
		question string
		want     bool
	}{
		{"what columns exist", true},
		{"show me columns", true},
		{"Which FIELDS are in the table?", true},
		{"list the headers", true},
		{"what attributes does a sale have", true},
		{"describe the schema", true},
		{"what is the data structure?", true},
		{"column-wise totals", true},
		{"total sales by region", false},
		{"how did the fieldwork team perform", false},
		{"top 10 products", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSchemaQuestion(tt.question))
		})
	}
}

func TestClassifier_SchemaKeywordSkipsGateway(t *testing.T) {
	gw := llm.NewMockGateway("DB")
	c := NewClassifier(gw, zap.NewNop())

	got := c.Classify(context.Background(), "what columns exist", salesSchema)

	assert.Equal(t, models.SchemaRequest(), got)
	assert.Zero(t, gw.CallCount(""))
}

func TestClassifier_Classify(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
		want  models.Classification
	}{
		{"sentinel", "DB", nil, models.Answerable()},
		{"sentinel lowercase with whitespace", "  db \n", nil, models.Answerable()},
		{"advice", "Focus on loyalty programs.", nil, models.OutOfScope("Focus on loyalty programs.")},
		{"advice is trimmed", "\n Try bundles. \n", nil, models.OutOfScope("Try bundles.")},
		{"sentinel inside prose is advice", "DB questions are great", nil, models.OutOfScope("DB questions are great")},
		{"gateway failure", "", errors.New("connection refused"), models.OutOfScope(ClassificationErrorMessage)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &llm.MockGateway{CompleteFunc: func(context.Context, string, llm.Params) (string, error) {
				return tt.reply, tt.err
			}}
			c := NewClassifier(gw, zap.NewNop())

			got := c.Classify(context.Background(), "which region sells most", salesSchema)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifier_Params(t *testing.T) {
	gw := llm.NewMockGateway("DB")
	NewClassifier(gw, zap.NewNop()).Classify(context.Background(), "which region sells most", salesSchema)

	calls := gw.Calls()
	if assert.Len(t, calls, 1) {
		p := calls[0].Params
		assert.Equal(t, "classify", p.Operation)
		assert.Equal(t, prompts.ClassifierSystem, p.System)
		assert.InDelta(t, 0.1, p.Temperature, 1e-9)
		assert.Equal(t, 500, p.MaxTokens)
		assert.Contains(t, calls[0].Prompt, "which region sells most")
		assert.Contains(t, calls[0].Prompt, salesSchema)
	}
}
