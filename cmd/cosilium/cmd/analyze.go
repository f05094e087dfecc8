package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sozercan/cosilium/apimodels"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <task>",
	Short: "Run one analysis and print the JSON response",
	Long: `Run a single analysis without starting the server.

The context file holds a list of context items in YAML or JSON:

  - type: text
    title: Market data
    content: EU revenue grew 12% last year.
  - type: url
    title: Competitor
    content: https://example.com/pricing

Examples:
  cosilium analyze "Should we enter the EU market next year?" --type strategy
  cosilium analyze "Assess the migration plan" --type risk --context-file ctx.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

var (
	analyzeType        string
	analyzeIterations  int
	analyzeContextFile string
	analyzeSessionID   string
)

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&analyzeType, "type", "general", "analysis type, e.g. strategy or risk")
	analyzeCmd.Flags().IntVar(&analyzeIterations, "iterations", 1, "iterations to report")
	analyzeCmd.Flags().StringVar(&analyzeContextFile, "context-file", "", "YAML or JSON file with context items")
	analyzeCmd.Flags().StringVar(&analyzeSessionID, "session", "", "session id (generated when empty)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	req := apimodels.AnalysisRequest{
		Task:          strings.Join(args, " "),
		TaskType:      analyzeType,
		MaxIterations: analyzeIterations,
		SessionID:     analyzeSessionID,
	}
	if analyzeContextFile != "" {
		items, err := readContextFile(analyzeContextFile)
		if err != nil {
			return err
		}
		req.Context = items
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	resp, err := a.analyzer.Analyze(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// readContextFile parses context items. YAML is a superset of JSON, so one
// decoder serves both.
func readContextFile(path string) ([]apimodels.ContextItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading context file: %w", err)
	}

	var items []apimodels.ContextItem
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parsing context file %s: %w", path, err)
	}
	for i, it := range items {
		if it.Type != apimodels.ContextText && it.Type != apimodels.ContextURL {
			return nil, fmt.Errorf("context item %d: type must be %q or %q", i, apimodels.ContextText, apimodels.ContextURL)
		}
	}
	return items, nil
}
