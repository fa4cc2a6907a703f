package services

import "github.com/ekaya-inc/ekaya-ask/pkg/models"

// BuildVisualization derives the chart payload from result values. It
// returns nil when there are no rows. A column is numeric when it has at
// least one value and every value is an integer or float; all other
// columns are categorical.
func BuildVisualization(rows models.Rows, columns []string) *models.VisualizationPayload {
	if len(rows) == 0 || len(columns) == 0 {
		return nil
	}

	numeric := []string{}
	categorical := []string{}
	for _, col := range columns {
		if isNumericColumn(rows, col) {
			numeric = append(numeric, col)
		} else {
			categorical = append(categorical, col)
		}
	}

	settings := models.ChartSettings{
		ChartType: models.ChartTypeBar,
		XCol:      columns[0],
		YCol:      columns[0],
	}
	if len(categorical) > 0 {
		settings.XCol = categorical[0]
	}
	if len(numeric) > 0 {
		settings.YCol = numeric[0]
	}

	return &models.VisualizationPayload{
		Data:               rows,
		Columns:            columns,
		NumericColumns:     numeric,
		CategoricalColumns: categorical,
		DefaultSettings:    settings,
	}
}

func isNumericColumn(rows models.Rows, col string) bool {
	seen := false
	for _, row := range rows {
		switch row[col].(type) {
		case nil:
		case int64, float64, int, int32, float32:
			seen = true
		default:
			return false
		}
	}
	return seen
}
