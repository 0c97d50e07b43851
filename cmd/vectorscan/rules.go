package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/praetorian-inc/vectorscan-go/pkg/rule"
	"github.com/praetorian-inc/vectorscan-go/pkg/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	rulesPath    string
	outputFormat string
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage detection rules",
	Long:  "Commands for listing and validating detection rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available rules",
	Long:  "Display all available detection rules with their IDs and names",
	RunE:  runRulesList,
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate rules",
	Long: `Compile every rule with the engine and check that its examples match
and its negative examples do not.`,
	RunE: runRulesValidate,
}

func init() {
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesValidateCmd)
	rulesCmd.PersistentFlags().StringVar(&rulesPath, "rules", "", "Path to custom rules file, pattern list or directory")
	rulesListCmd.Flags().StringVar(&outputFormat, "format", "table", "Output format: table, json")
}

func runRulesList(cmd *cobra.Command, args []string) error {
	rules, err := loadRules(rulesPath, "", "")
	if err != nil {
		return err
	}

	// Output based on format
	switch outputFormat {
	case "json":
		return outputRulesJSON(cmd, rules)
	case "table":
		return outputRulesTable(cmd, rules)
	default:
		return fmt.Errorf("unknown output format: %s", outputFormat)
	}
}

func runRulesValidate(cmd *cobra.Command, args []string) error {
	rules, err := loadRules(rulesPath, "", "")
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	failed := 0
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		err := rule.ValidateRule(r)
		if err == nil && seen[r.ID] {
			err = fmt.Errorf("duplicate rule ID: %s", r.ID)
		}
		seen[r.ID] = true
		if err != nil {
			failed++
			fmt.Fprintf(out, "FAIL  %s: %v\n", r.ID, err)
			continue
		}
		logger.Debug("rule valid", zap.String("rule", r.ID))
	}

	fmt.Fprintf(out, "%d rules checked, %d failed\n", len(rules), failed)
	if failed > 0 {
		return errors.New("rule validation failed")
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// loadRules loads rules from path, or the builtin rules when path is empty,
// then applies the include/exclude filters.
func loadRules(path, include, exclude string) ([]*types.Rule, error) {
	loader := rule.NewLoader()

	var rules []*types.Rule
	var err error
	if path != "" {
		rules, err = loader.LoadPath(path)
		if err != nil {
			return nil, fmt.Errorf("loading rules from %s: %w", path, err)
		}
	} else {
		rules, err = loader.LoadBuiltinRules()
		if err != nil {
			return nil, fmt.Errorf("loading builtin rules: %w", err)
		}
	}

	// Apply filtering if patterns specified
	if include != "" || exclude != "" {
		config := rule.FilterConfig{
			Include: rule.ParsePatterns(include),
			Exclude: rule.ParsePatterns(exclude),
		}
		rules, err = rule.Filter(rules, config)
		if err != nil {
			return nil, fmt.Errorf("filtering rules: %w", err)
		}
	}
	if len(rules) == 0 {
		return nil, errors.New("no rules selected")
	}

	logger.Debug("loaded rules", zap.Int("rules", len(rules)), zap.String("path", path))
	return rules, nil
}

func outputRulesJSON(cmd *cobra.Command, rules []*types.Rule) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(rules)
}

func outputRulesTable(cmd *cobra.Command, rules []*types.Rule) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "ID\tName\tFlags\tCategories\n")
	fmt.Fprintf(w, "--\t----\t-----\t----------\n")

	for _, r := range rules {
		categories := ""
		if len(r.Categories) > 0 {
			categories = r.Categories[0]
			if len(r.Categories) > 1 {
				categories += fmt.Sprintf(" (+%d)", len(r.Categories)-1)
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.Name, r.Flags, categories)
	}

	return nil
}
