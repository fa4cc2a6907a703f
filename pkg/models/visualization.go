package models

// Chart defaults.
const (
	ChartTypeBar = "bar"
)

// VisualizationPayload is everything a chart renderer needs for one result.
type VisualizationPayload struct {
	Data               Rows          `json:"data"`
	Columns            []string      `json:"columns"`
	NumericColumns     []string      `json:"numeric_columns"`
	CategoricalColumns []string      `json:"categorical_columns"`
	DefaultSettings    ChartSettings `json:"default_settings"`
}

// ChartSettings is the initial chart selection.
type ChartSettings struct {
	ChartType string `json:"chart_type"`
	XCol      string `json:"x_col"`
	YCol      string `json:"y_col"`
}
