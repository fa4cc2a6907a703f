package sqlite

import (
	"context"

	"github.com/ekaya-inc/ekaya-ask/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Type:        "sqlite",
			DisplayName: "SQLite database",
			Extensions:  []string{".db", ".sqlite", ".sqlite3"},
		},
		Open: func(ctx context.Context, path string) (datasource.Source, error) {
			return NewAdapter(ctx, path)
		},
	})
}
