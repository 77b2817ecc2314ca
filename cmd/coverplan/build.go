package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/evalforge/coverplan/internal/config"
	"github.com/evalforge/coverplan/internal/plan"
	"github.com/evalforge/coverplan/internal/taxonomy"
)

var buildFlags struct {
	conceptsPath    string
	configPath      string
	suggestionsPath string
	outputPath      string
	format          string
}

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a coverage plan from a concept snapshot and planner config",
	Long: `Build stratifies the concept snapshot across the configured facet
grid, allocates the item budget, and writes the versioned coverage plan.
The allocation report and diagnostics summary are printed to stderr.`,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVar(&buildFlags.conceptsPath, "concepts", "", "Path to the concept snapshot YAML (required)")
	buildCmd.Flags().StringVar(&buildFlags.configPath, "config", "", "Path to the planner configuration YAML (required)")
	buildCmd.Flags().StringVar(&buildFlags.suggestionsPath, "suggestions", "", "Path to approved difficulty-override suggestions YAML")
	buildCmd.Flags().StringVarP(&buildFlags.outputPath, "output", "o", "", "Output file path (default: stdout)")
	buildCmd.Flags().StringVar(&buildFlags.format, "format", "json", "Output format: json or yaml")
	_ = buildCmd.MarkFlagRequired("concepts")
	_ = buildCmd.MarkFlagRequired("config")
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader(config.NewValidator()).Load(buildFlags.configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Logging)

	concepts, snapshotID, err := taxonomy.LoadConcepts(buildFlags.conceptsPath)
	if err != nil {
		return err
	}
	if snapshotID != "" && cfg.Constraints.ConceptSnapshotID == "" {
		cfg.Constraints.ConceptSnapshotID = snapshotID
	}
	logger.Debug("concept snapshot loaded", "path", buildFlags.conceptsPath, "concepts", len(concepts), "snapshot_id", snapshotID)

	suggestions, err := loadSuggestions(buildFlags.suggestionsPath)
	if err != nil {
		return err
	}

	builder := plan.NewBuilder(plan.WithLogger(logger))
	result, err := builder.Build(cmd.Context(), plan.BuildInput{
		Concepts:    concepts,
		Facets:      cfg.Facets,
		Policy:      cfg.Policy,
		Constraints: cfg.Constraints,
		Suggestions: suggestions,
		LeafOnly:    cfg.LeafOnly,
		SizeWeights: cfg.SizeWeights,
	})
	if err != nil {
		return err
	}

	if err := writePlan(result, buildFlags.outputPath, buildFlags.format); err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr, renderSummary(result))
	return nil
}

// loadSuggestions parses the optional suggestions file.
func loadSuggestions(path string) ([]taxonomy.Suggestion, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suggestions file: %w", err)
	}
	var file struct {
		Suggestions []taxonomy.Suggestion `yaml:"suggestions"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse suggestions file: %w", err)
	}
	return file.Suggestions, nil
}

// writePlan serializes the plan to the requested format and destination.
func writePlan(p *plan.CoveragePlan, path, format string) error {
	var data []byte
	var err error
	switch format {
	case "json":
		data, err = json.MarshalIndent(p, "", "  ")
		if err == nil {
			data = append(data, '\n')
		}
	case "yaml":
		// Round-trip through JSON so the artifact's json tags name the
		// YAML keys as well.
		var generic map[string]any
		data, err = json.Marshal(p)
		if err == nil {
			if err = json.Unmarshal(data, &generic); err == nil {
				data, err = yaml.Marshal(generic)
			}
		}
	default:
		return fmt.Errorf("unsupported output format %q (use json or yaml)", format)
	}
	if err != nil {
		return fmt.Errorf("failed to serialize plan: %w", err)
	}

	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
