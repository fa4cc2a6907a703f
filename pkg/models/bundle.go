package models

import "time"

// ResultBundle is the complete response to one question. Only Summary is
// always present; the other fields depend on the branch taken.
type ResultBundle struct {
	Question        string                `json:"question"`
	Classification  ClassificationKind    `json:"classification,omitempty"`
	RefinedQuestion string                `json:"refined_question,omitempty"`
	SQL             string                `json:"sql,omitempty"`
	Summary         string                `json:"summary"`
	Visualization   *VisualizationPayload `json:"visualization,omitempty"`
	FollowUps       []string              `json:"follow_up_questions,omitempty"`
	Results         Rows                  `json:"results,omitempty"`
	Columns         []string              `json:"columns,omitempty"`
	Cached          bool                  `json:"cached"`
	// Failed is set when the summary explains a pipeline failure.
	Failed bool `json:"failed,omitempty"`
}

// CacheEntry is a persisted answer keyed by the (question, schema) fingerprint.
type CacheEntry struct {
	Key           string                `json:"cache_key"`
	Question      string                `json:"query"`
	SchemaHash    string                `json:"schema_hash"`
	SQL           string                `json:"sql_query"`
	Summary       string                `json:"summary"`
	Visualization *VisualizationPayload `json:"visualization_data"`
	FollowUps     []string              `json:"follow_up_questions"`
	Results       Rows                  `json:"results"`
	Columns       []string              `json:"columns"`
	CreatedAt     time.Time             `json:"created_at"`
	LastAccessed  time.Time             `json:"last_accessed"`
}

// Bundle converts a cache entry back into a result bundle.
func (e *CacheEntry) Bundle() *ResultBundle {
	return &ResultBundle{
		Question:       e.Question,
		Classification: KindAnswerable,
		SQL:            e.SQL,
		Summary:        e.Summary,
		Visualization:  e.Visualization,
		FollowUps:      e.FollowUps,
		Results:        e.Results,
		Columns:        e.Columns,
		Cached:         true,
	}
}
