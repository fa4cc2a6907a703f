package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ekaya-inc/ekaya-ask/pkg/models"
)

func TestPrintBundle(t *testing.T) {
	var out bytes.Buffer
	printBundle(&out, &models.ResultBundle{
		Summary:   "North leads.",
		SQL:       "SELECT region, SUM(amount) AS total FROM sales GROUP BY region",
		Columns:   []string{"region", "total"},
		Results:   models.Rows{{"region": "north", "total": 120.5}, {"region": "south", "total": nil}},
		FollowUps: []string{"Which month was best?"},
		Cached:    true,
	})

	got := out.String()
	assert.Contains(t, got, "North leads.")
	assert.Contains(t, got, "SQL: SELECT region")
	assert.Contains(t, got, "(answered from cache)")
	assert.Contains(t, got, "120.5")
	assert.Contains(t, got, "NULL")
	assert.Contains(t, got, "  - Which month was best?")
}

func TestPrintBundle_SummaryOnly(t *testing.T) {
	var out bytes.Buffer
	printBundle(&out, &models.ResultBundle{Summary: "Please upload a file first."})

	assert.Equal(t, "Please upload a file first.\n", out.String())
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "NULL"},
		{int64(42), "42"},
		{float64(3), "3"},
		{0.25, "0.25"},
		{"north", "north"},
		{true, "true"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatValue(tt.in))
	}
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()

	for _, path := range [][]string{{"serve"}, {"mcp"}, {"ask"}, {"schema"}, {"cache", "purge"}, {"cache", "evict"}, {"config"}} {
		cmd, _, err := root.Find(path)
		if assert.NoError(t, err, path) {
			assert.Equal(t, path[len(path)-1], cmd.Name())
		}
	}
}
