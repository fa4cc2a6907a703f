package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ask/pkg/llm"
)

func TestRefiner_Refine(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
		want  string
	}{
		{"refined", "  What is the SUM of amount grouped by region?\n", nil, "What is the SUM of amount grouped by region?"},
		{"gateway failure keeps original", "", errors.New("rate limited"), "sales per area"},
		{"blank reply keeps original", "   ", nil, "sales per area"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &llm.MockGateway{CompleteFunc: func(context.Context, string, llm.Params) (string, error) {
				return tt.reply, tt.err
			}}
			got := NewRefiner(gw, zap.NewNop()).Refine(context.Background(), "sales per area", salesSchema)
			assert.Equal(t, tt.want, got)

			calls := gw.Calls()
			if assert.Len(t, calls, 1) {
				assert.Equal(t, "refine", calls[0].Params.Operation)
				assert.InDelta(t, 0.2, calls[0].Params.Temperature, 1e-9)
			}
		})
	}
}
