// Package prompts builds the language-model prompts of the question pipeline.
package prompts

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AnswerableSentinel is the whole reply the classifier expects for a
// question the data can answer.
const AnswerableSentinel = "DB"

// ClassifierSystem is the system message of the classification call.
const ClassifierSystem = "You are an expert data analyst and business consultant."

// SummaryPreviewRows is the number of result rows shown to the summarizer.
const SummaryPreviewRows = 5

// BuildClassificationPrompt asks whether question can be answered from the
// data described by schema, or otherwise for expert advice.
func BuildClassificationPrompt(question, schema string) string {
	var p strings.Builder

	p.WriteString("You are a data analyst who can interpret business questions creatively using available data.\n\n")
	p.WriteString("## Schema\n\n")
	p.WriteString(schema)
	p.WriteString("\n\n## User Question\n\n")
	fmt.Fprintf(&p, "%q\n\n", question)

	p.WriteString("## Classification Rules\n\n")
	fmt.Fprintf(&p, "1. Respond with exactly %q if:\n", AnswerableSentinel)
	p.WriteString("   - the question can be answered using available columns directly\n")
	p.WriteString("   - the question can be answered by interpreting available columns\n")
	p.WriteString("   - the question involves product analysis, sales patterns or customer behaviour derivable from the data\n")
	p.WriteString("   - the question can be answered through aggregations or combinations of existing columns\n")
	p.WriteString("2. For any other question, give a helpful expert answer WITHOUT mentioning data or database limitations.\n\n")

	p.WriteString("Examples answered from the data:\n")
	p.WriteString("- \"Which products are often bought together?\"\n")
	p.WriteString("- \"Do customers prefer certain products?\"\n")
	p.WriteString("- \"What trends do we see in the data?\"\n\n")
	p.WriteString("Examples needing expert advice:\n")
	p.WriteString("- \"How should we market our products?\"\n")
	p.WriteString("- \"What's the best pricing strategy?\"\n")
	p.WriteString("- \"Why is the sky blue?\"\n\n")

	p.WriteString("## Output Format\n\n")
	fmt.Fprintf(&p, "- Data questions: reply with %s and nothing else\n", AnswerableSentinel)
	p.WriteString("- Other questions: reply with the expert answer\n")

	return p.String()
}

// BuildRefinementPrompt asks for question restated in the schema's own terms.
func BuildRefinementPrompt(question, schema string) string {
	var p strings.Builder

	p.WriteString("Refine the user's question into a precise question that aligns strictly with this schema:\n\n")
	p.WriteString(schema)
	p.WriteString("\n\n## Original Question\n\n")
	fmt.Fprintf(&p, "%q\n\n", question)

	p.WriteString("## Instructions\n\n")
	p.WriteString("1. Restate the question more explicitly if it is ambiguous.\n")
	p.WriteString("2. If it references a concept that is not a column, map it onto the known columns.\n")
	p.WriteString("3. Name the matching columns when you are certain they match the user's intention.\n")
	p.WriteString("4. If the user wants an aggregate measure (sum, average, ...), say so.\n")
	p.WriteString("5. When the question names a specific product, category or other free-text value, ask for a LIKE pattern match rather than exact equality.\n")
	p.WriteString("6. When comparing several columns, use aggregates over the relevant subset rather than listing every column.\n\n")

	p.WriteString("## Output\n\n")
	p.WriteString("Return only the refined question, in one short natural-language sentence that references column names.\n")

	return p.String()
}

// BuildSQLPrompt asks for a single read-only SELECT answering question.
func BuildSQLPrompt(question, schema string) string {
	var p strings.Builder

	p.WriteString("Convert the question into a SQL query for this database:\n\n")
	p.WriteString(schema)
	p.WriteString("\n\n## Question\n\n")
	fmt.Fprintf(&p, "%q\n\n", question)

	p.WriteString("## Requirements\n\n")
	p.WriteString("- Write exactly one SELECT statement. Never modify data.\n")
	p.WriteString("- Match specific product or category names with LIKE, not =.\n")
	p.WriteString("- For \"best\" or \"top\" questions, return the top 10 rows by the relevant metric.\n")
	p.WriteString("- Unless all rows are explicitly requested, include a LIMIT clause.\n")
	p.WriteString("- Use SUM, AVG, MAX, MIN or COUNT when the question asks for a summary.\n")
	p.WriteString("- Return concise, meaningful data rather than the whole dataset.\n\n")

	p.WriteString("**Output only the SQL statement**, without explanations, comments or code fences.\n")

	return p.String()
}

// BuildSummaryPrompt asks for a short business narrative of the results.
// Only the first SummaryPreviewRows rows are included.
func BuildSummaryPrompt(sqlQuery string, rows []map[string]any, columns []string) string {
	var p strings.Builder

	p.WriteString("As a data insights specialist, analyze these SQL query results.\n\n")
	fmt.Fprintf(&p, "Query: %s\n", sqlQuery)
	fmt.Fprintf(&p, "Columns: %s\n", strings.Join(columns, ", "))
	fmt.Fprintf(&p, "Results (first %d of %d):\n", min(len(rows), SummaryPreviewRows), len(rows))
	for _, row := range rows[:min(len(rows), SummaryPreviewRows)] {
		p.WriteString(formatRow(row, columns))
		p.WriteByte('\n')
	}

	p.WriteString("\nProvide a concise summary that:\n")
	p.WriteString("1. Highlights key findings and patterns\n")
	p.WriteString("2. Mentions specific numbers and trends\n")
	p.WriteString("3. Compares relevant metrics\n")
	p.WriteString("4. Provides business context\n\n")
	p.WriteString("Use business-friendly language and keep it to 2-3 sentences. Focus on actionable insights rather than describing the data.\n")

	return p.String()
}

// BuildFollowUpPrompt asks for three follow-up questions, one per line.
func BuildFollowUpPrompt(question, schema string) string {
	var p strings.Builder

	p.WriteString("Based on this user question and database schema, suggest 3 relevant follow-up questions.\n\n")
	fmt.Fprintf(&p, "User Question: %s\n\n", question)
	p.WriteString("Schema:\n")
	p.WriteString(schema)
	p.WriteString("\n\nRules:\n")
	p.WriteString("1. Questions must be answerable from the data in the schema\n")
	p.WriteString("2. Questions should build upon the current question\n")
	p.WriteString("3. Keep questions concise and business-focused\n")
	p.WriteString("4. Avoid technical SQL terms\n\n")
	p.WriteString("Format: return only the questions, one per line, without numbering.\n")

	return p.String()
}

// formatRow renders a row as a JSON object with keys in column order.
func formatRow(row map[string]any, columns []string) string {
	parts := make([]string, 0, len(columns))
	for _, col := range columns {
		k, _ := json.Marshal(col)
		v, err := json.Marshal(row[col])
		if err != nil {
			v = []byte(fmt.Sprintf("%q", fmt.Sprint(row[col])))
		}
		parts = append(parts, string(k)+": "+string(v))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
