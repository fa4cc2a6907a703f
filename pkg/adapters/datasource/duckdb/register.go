package duckdb

import (
	"context"

	"github.com/ekaya-inc/ekaya-ask/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Type:        "duckdb",
			DisplayName: "CSV file",
			Extensions:  []string{".csv", ".tsv"},
		},
		Open: func(ctx context.Context, path string) (datasource.Source, error) {
			return NewAdapter(ctx, path)
		},
	})
}
