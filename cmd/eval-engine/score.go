// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/eval-engine/internal/fieldeval"
	"github.com/pdiddy/eval-engine/internal/store"
	"github.com/pdiddy/eval-engine/pkg/types"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score one extracted field against its reference value",
	Long: `Score runs the similarity and quality scorers on a single field and
blends each with an optional 1-5 rating. List and structured values are
given as JSON or YAML literals.

The full scoring detail, including any stage that fell back to the
neutral score, is printed as JSON.`,
	RunE: runScore,
}

func runScore(cmd *cobra.Command, args []string) error {
	reference, _ := cmd.Flags().GetString("reference")
	extracted, _ := cmd.Flags().GetString("extracted")
	fieldType, _ := cmd.Flags().GetString("type")
	rating, _ := cmd.Flags().GetInt("rating")
	domain, _ := cmd.Flags().GetString("domain")
	field, _ := cmd.Flags().GetString("field")
	expertise, _ := cmd.Flags().GetFloat64("expertise")

	d := types.Domain(domain)
	if !d.Valid() {
		return fmt.Errorf("unknown domain %q", domain)
	}
	ft := types.FieldType(fieldType)

	ref, err := parseValue(reference, ft)
	if err != nil {
		return fmt.Errorf("parsing --reference: %w", err)
	}
	ext, err := parseValue(extracted, ft)
	if err != nil {
		return fmt.Errorf("parsing --extracted: %w", err)
	}

	p := fieldeval.New(engineCfg, store.NewMemory(), logger, metrics)
	ev, err := p.Evaluate(cmd.Context(), fieldeval.FieldInput{
		Domain:    d,
		Field:     field,
		Pair:      types.FieldPair{Reference: ref, Extracted: ext, FieldType: ft},
		Rating:    rating,
		Expertise: expertise,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(ev)
}

// parseValue decodes list and structured literals; every other field type
// is scored as the raw string.
func parseValue(s string, ft types.FieldType) (any, error) {
	switch ft {
	case types.FieldList, types.FieldStructured:
		if s == "" {
			return nil, nil
		}
		var v any
		if err := yaml.Unmarshal([]byte(s), &v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return s, nil
	}
}

func init() {
	scoreCmd.Flags().String("reference", "", "reference (ground-truth) value")
	scoreCmd.Flags().String("extracted", "", "extracted value to score")
	scoreCmd.Flags().String("type", string(types.FieldText), "field type: text, number, date, resource, list, structured")
	scoreCmd.Flags().Int("rating", 0, "evaluator rating 1-5 (0 for unrated)")
	scoreCmd.Flags().String("domain", string(types.DomainMetadata), "evaluation domain")
	scoreCmd.Flags().String("field", "field", "field id")
	scoreCmd.Flags().Float64("expertise", 0, "evaluator expertise multiplier (recorded, not applied)")

	rootCmd.AddCommand(scoreCmd)
}
