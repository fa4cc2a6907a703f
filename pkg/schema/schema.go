// Package schema renders a data source's tables and columns as the
// deterministic text description used in prompts and cache keys.
package schema

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ask/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-ask/pkg/apperrors"
)

// UnknownType renders a column whose declared type is empty.
const UnknownType = "ANY"

// Table is one table of a schema.
type Table struct {
	Name    string              `json:"name"`
	Columns []datasource.Column `json:"columns"`
}

// Schema is the ordered list of tables of a data source.
type Schema struct {
	Tables []Table `json:"tables"`
}

// Introspector extracts schemas from data sources.
type Introspector struct {
	logger *zap.Logger
}

// NewIntrospector creates an Introspector.
func NewIntrospector(logger *zap.Logger) *Introspector {
	return &Introspector{logger: logger.Named("schema")}
}

// Extract reads every table and its columns in the source's enumeration order.
// Any failure is an apperrors.ErrSchema.
func (i *Introspector) Extract(ctx context.Context, src datasource.SchemaExtractor) (*Schema, error) {
	names, err := src.GetTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrSchema, err)
	}

	s := &Schema{Tables: make([]Table, 0, len(names))}
	for _, name := range names {
		cols, err := src.GetColumns(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("%w: table %s: %v", apperrors.ErrSchema, name, err)
		}
		s.Tables = append(s.Tables, Table{Name: name, Columns: cols})
	}

	if len(s.Tables) == 0 {
		return nil, fmt.Errorf("%w: data source has no tables", apperrors.ErrSchema)
	}

	i.logger.Debug("Extracted schema", zap.Int("tables", len(s.Tables)))
	return s, nil
}

// Describe extracts the schema of src and renders it.
func (i *Introspector) Describe(ctx context.Context, src datasource.SchemaExtractor) (string, error) {
	s, err := i.Extract(ctx, src)
	if err != nil {
		return "", err
	}
	return s.String(), nil
}

// String renders the schema description:
//
//	Table: sales
//	  - id (INTEGER)
//	  - amount (REAL)
func (s *Schema) String() string {
	var sb strings.Builder
	for _, t := range s.Tables {
		sb.WriteString("Table: ")
		sb.WriteString(t.Name)
		sb.WriteByte('\n')
		for _, c := range t.Columns {
			fmt.Fprintf(&sb, "  - %s (%s)\n", c.Name, typeName(c.DataType))
		}
	}
	return sb.String()
}

// ColumnListing renders one line per table: "sales: id (INTEGER), amount (REAL)".
func (s *Schema) ColumnListing() []string {
	lines := make([]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		cols := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			cols[i] = fmt.Sprintf("%s (%s)", c.Name, typeName(c.DataType))
		}
		lines = append(lines, t.Name+": "+strings.Join(cols, ", "))
	}
	return lines
}

// Parse recovers a Schema from a description. It accepts any indentation
// before the "- column (TYPE)" lines and ignores lines it does not recognise.
func Parse(description string) *Schema {
	s := &Schema{}
	var current *Table

	scanner := bufio.NewScanner(strings.NewReader(description))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "Table:"):
			s.Tables = append(s.Tables, Table{Name: strings.TrimSpace(strings.TrimPrefix(line, "Table:"))})
			current = &s.Tables[len(s.Tables)-1]
		case strings.HasPrefix(line, "-") && current != nil:
			current.Columns = append(current.Columns, parseColumn(strings.TrimSpace(strings.TrimPrefix(line, "-"))))
		}
	}
	return s
}

func parseColumn(text string) datasource.Column {
	if strings.HasSuffix(text, ")") {
		if open := strings.LastIndex(text, " ("); open > 0 {
			return datasource.Column{
				Name:     strings.TrimSpace(text[:open]),
				DataType: text[open+2 : len(text)-1],
			}
		}
	}
	return datasource.Column{Name: text, DataType: UnknownType}
}

func typeName(t string) string {
	t = strings.TrimSpace(t)
	if t == "" {
		return UnknownType
	}
	return strings.ToUpper(t)
}
