// test-model-outputs checks that the question pipeline's prompts produce
// usable output across multiple models. It asks each model to classify a
// data question and to write SQL for it, then validates the SQL.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ask/pkg/llm"
	"github.com/ekaya-inc/ekaya-ask/pkg/models"
	"github.com/ekaya-inc/ekaya-ask/pkg/services"
)

// Model defines a model endpoint to test
type Model struct {
	Name     string
	Provider string
	Endpoint string
	Model    string
	APIKey   string
}

var defaultModels = []Model{
	{
		Name:     "gpt-4o-mini",
		Provider: llm.ProviderOpenAI,
		Model:    "gpt-4o-mini",
		APIKey:   os.Getenv("OPENAI_API_KEY"),
	},
	{
		Name:     "claude-3-5-haiku",
		Provider: llm.ProviderAnthropic,
		Model:    "claude-3-5-haiku-latest",
		APIKey:   os.Getenv("ANTHROPIC_API_KEY"),
	},
	{
		Name:     "local-openai-compatible",
		Provider: llm.ProviderOpenAI,
		Endpoint: "http://localhost:30000/v1",
		Model:    "local",
	},
}

const sampleSchema = `Table: orders
  - id (INTEGER)
  - created_at (TEXT)
  - customer_id (INTEGER)
  - status (TEXT)
  - total_amount (REAL)
Table: customers
  - id (INTEGER)
  - name (TEXT)
  - region (TEXT)
`

var sampleQuestions = []string{
	"What is the total order amount per region?",
	"How many orders were cancelled last month?",
}

func main() {
	timeout := flag.Duration("timeout", 120*time.Second, "Timeout for each model call")
	only := flag.String("model", "", "Only test the model with this name")
	flag.Parse()

	logConfig := zap.NewDevelopmentConfig()
	logConfig.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	logger, _ := logConfig.Build()
	defer func() { _ = logger.Sync() }()

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("Pipeline Prompt Test")
	fmt.Println("Testing classification and SQL generation across multiple models")
	fmt.Println(strings.Repeat("=", 80))

	ctx := context.Background()

	results := make(map[string]TestResult)
	for _, model := range defaultModels {
		if *only != "" && model.Name != *only {
			continue
		}
		fmt.Printf("\n%s\n", strings.Repeat("-", 80))
		fmt.Printf("Testing: %s (%s)\n", model.Name, model.Provider)
		fmt.Printf("%s\n\n", strings.Repeat("-", 80))

		result := testModel(ctx, model, logger, *timeout)
		results[model.Name] = result
		printResult(result)
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 80))
	fmt.Println("SUMMARY")
	fmt.Printf("%s\n\n", strings.Repeat("=", 80))

	allPassed := true
	for name, result := range results {
		status := "✓ PASS"
		if !result.Success {
			status = "✗ FAIL"
			allPassed = false
		}
		fmt.Printf("%s: %s (%dms)\n", status, name, result.DurationMs)
		for _, e := range result.Errors {
			fmt.Printf("  Error: %s\n", e)
		}
	}

	if !allPassed {
		fmt.Println("\nSome models failed.")
		os.Exit(1)
	}
	fmt.Println("\nAll models passed!")
}

type TestResult struct {
	Success    bool
	Errors     []string
	DurationMs int64
}

func testModel(ctx context.Context, model Model, logger *zap.Logger, timeout time.Duration) TestResult {
	result := TestResult{}
	start := time.Now()

	gateway, err := llm.NewGateway(llm.Config{
		Provider: model.Provider,
		Model:    model.Model,
		BaseURL:  model.Endpoint,
		APIKey:   model.APIKey,
		Timeout:  timeout,
	}, logger)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to create gateway: %v", err))
		return result
	}

	classifier := services.NewClassifier(gateway, logger)
	generator := services.NewSQLGenerator(gateway, logger)

	for _, q := range sampleQuestions {
		fmt.Printf("Question: %s\n", q)

		c := classifier.Classify(ctx, q, sampleSchema)
		fmt.Printf("  classification: %s\n", c.Kind)
		if c.Kind != models.KindAnswerable {
			result.Errors = append(result.Errors, fmt.Sprintf("%q classified as %s", q, c.Kind))
			continue
		}

		sql, err := generator.Generate(ctx, q, sampleSchema)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%q: %v", q, err))
			continue
		}
		fmt.Printf("  sql: %s\n", truncateString(sql, 200))
	}

	result.DurationMs = time.Since(start).Milliseconds()
	result.Success = len(result.Errors) == 0
	return result
}

func printResult(result TestResult) {
	fmt.Println("\n--- Test Result ---")
	if result.Success {
		fmt.Println("Status: ✓ PASS")
		return
	}
	fmt.Println("Status: ✗ FAIL")
	for _, e := range result.Errors {
		fmt.Printf("Error: %s\n", e)
	}
}

func truncateString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
