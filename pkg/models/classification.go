package models

// ClassificationKind is the branch a question takes through the pipeline.
type ClassificationKind string

const (
	// KindAnswerable questions are answered by generating and running SQL.
	KindAnswerable ClassificationKind = "answerable"
	// KindSchemaRequest questions ask about the tables and columns themselves.
	KindSchemaRequest ClassificationKind = "schema_request"
	// KindOutOfScope questions get the model's advice text instead of SQL.
	KindOutOfScope ClassificationKind = "out_of_scope"
)

// Classification is the result of classifying a question. Advice is set
// only for KindOutOfScope.
type Classification struct {
	Kind   ClassificationKind `json:"kind"`
	Advice string             `json:"advice,omitempty"`
}

func Answerable() Classification {
	return Classification{Kind: KindAnswerable}
}

func SchemaRequest() Classification {
	return Classification{Kind: KindSchemaRequest}
}

func OutOfScope(advice string) Classification {
	return Classification{Kind: KindOutOfScope, Advice: advice}
}
