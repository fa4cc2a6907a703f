package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-ask/pkg/models"
)

func TestBuildVisualization(t *testing.T) {
	tests := []struct {
		name            string
		rows            models.Rows
		columns         []string
		wantNumeric     []string
		wantCategorical []string
		wantX, wantY    string
	}{
		{
			name:            "region totals",
			rows:            models.Rows{{"region": "north", "total": 120.5}, {"region": "south", "total": 50.25}},
			columns:         []string{"region", "total"},
			wantNumeric:     []string{"total"},
			wantCategorical: []string{"region"},
			wantX:           "region",
			wantY:           "total",
		},
		{
			name:            "nulls are ignored, all-null column is categorical",
			rows:            models.Rows{{"n": nil, "empty": nil}, {"n": int64(3), "empty": nil}},
			columns:         []string{"n", "empty"},
			wantNumeric:     []string{"n"},
			wantCategorical: []string{"empty"},
			wantX:           "empty",
			wantY:           "n",
		},
		{
			name:            "mixed values are categorical",
			rows:            models.Rows{{"v": int64(1)}, {"v": "two"}},
			columns:         []string{"v"},
			wantNumeric:     []string{},
			wantCategorical: []string{"v"},
			wantX:           "v",
			wantY:           "v",
		},
		{
			name:            "only numbers falls back to first column for x",
			rows:            models.Rows{{"a": int64(1), "b": 2.5}},
			columns:         []string{"a", "b"},
			wantNumeric:     []string{"a", "b"},
			wantCategorical: []string{},
			wantX:           "a",
			wantY:           "a",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildVisualization(tt.rows, tt.columns)
			require.NotNil(t, got)
			assert.Equal(t, tt.rows, got.Data)
			assert.Equal(t, tt.columns, got.Columns)
			assert.Equal(t, tt.wantNumeric, got.NumericColumns)
			assert.Equal(t, tt.wantCategorical, got.CategoricalColumns)
			assert.Equal(t, models.ChartSettings{ChartType: "bar", XCol: tt.wantX, YCol: tt.wantY}, got.DefaultSettings)
		})
	}
}

func TestBuildVisualization_Empty(t *testing.T) {
	assert.Nil(t, BuildVisualization(nil, []string{"a"}))
	assert.Nil(t, BuildVisualization(models.Rows{}, []string{"a"}))
	assert.Nil(t, BuildVisualization(models.Rows{{"a": 1}}, nil))
}

func TestBuildVisualization_Deterministic(t *testing.T) {
	rows := models.Rows{{"region": "north", "total": 1.0}}
	assert.Equal(t, BuildVisualization(rows, []string{"region", "total"}), BuildVisualization(rows, []string{"region", "total"}))
}
