// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/eval-engine/internal/archive"
	"github.com/pdiddy/eval-engine/internal/assessment"
	"github.com/pdiddy/eval-engine/internal/fieldeval"
	"github.com/pdiddy/eval-engine/internal/secrets"
	"github.com/pdiddy/eval-engine/internal/session"
	"github.com/pdiddy/eval-engine/internal/store"
	"github.com/pdiddy/eval-engine/pkg/types"
)

// archiveTokenEnv overrides the archive-token secret.
const archiveTokenEnv = "EVAL_ENGINE_ARCHIVE_TOKEN"

// rankedInput is a field scored by candidate rank instead of text
// comparison.
type rankedInput struct {
	Domain types.Domain            `yaml:"domain"`
	Field  string                  `yaml:"field"`
	Choice assessment.RankedChoice `yaml:"choice"`
}

// paperInput is one evaluator's pass over one paper.
type paperInput struct {
	Token  string                 `yaml:"token"`
	User   types.UserInfo         `yaml:"user"`
	Fields []fieldeval.FieldInput `yaml:"fields"`
	Ranked []rankedInput          `yaml:"ranked"`
}

func readPaperInput(path string) (paperInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return paperInput{}, fmt.Errorf("reading %s: %w", path, err)
	}
	var in paperInput
	if err := yaml.Unmarshal(data, &in); err != nil {
		return paperInput{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	if in.Token == "" {
		return paperInput{}, fmt.Errorf("%s: token is required", path)
	}
	for i, f := range in.Fields {
		if !f.Domain.Valid() {
			return paperInput{}, fmt.Errorf("%s: fields[%d]: unknown domain %q", path, i, f.Domain)
		}
		if f.Field == "" {
			return paperInput{}, fmt.Errorf("%s: fields[%d]: field id is required", path, i)
		}
		if f.Expertise == 0 {
			in.Fields[i].Expertise = in.User.ExpertiseWeight
		}
	}
	for i, r := range in.Ranked {
		if !r.Domain.Valid() || r.Field == "" {
			return paperInput{}, fmt.Errorf("%s: ranked[%d]: domain and field are required", path, i)
		}
	}
	return in, nil
}

var assessCmd = &cobra.Command{
	Use:   "assess <paper.yaml>",
	Short: "Run one evaluator's pass over a paper",
	Long: `Assess reads a paper file listing the evaluator, the paper token, and
the rated fields, scores every field, and prints the per-domain and
per-paper assessment.

Progress is kept in the configured store, so an interrupted pass resumes
where it stopped. With --archive the finished pass is written to the
archive endpoint (archive.url) or the archive directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runAssess,
}

func runAssess(cmd *cobra.Command, args []string) error {
	doArchive, _ := cmd.Flags().GetBool("archive")
	format, _ := cmd.Flags().GetString("format")

	in, err := readPaperInput(args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	persistent, err := store.Open(ctx, engineCfg.Store, in.Token+"/"+in.User.Evaluator().ID)
	if err != nil {
		return err
	}
	defer persistent.Close()

	sink, err := archiveSink(engineCfg.Archive)
	if err != nil {
		return err
	}

	s, err := session.New(ctx, session.Options{
		Config:     engineCfg,
		Token:      in.Token,
		User:       in.User,
		Persistent: persistent,
		Sink:       sink,
		Log:        logger,
		Metrics:    metrics,
	})
	if err != nil {
		return err
	}

	if err := applyInput(ctx, s, in); err != nil {
		s.Close(ctx)
		return err
	}
	if err := s.Close(ctx); err != nil {
		logger.Warn("saving progress", zap.Error(err))
	}

	pa, err := s.Assessment(ctx)
	if err != nil {
		return err
	}
	if err := writeOutput(os.Stdout, format, pa); err != nil {
		return err
	}

	if !doArchive {
		return nil
	}
	res, err := s.Archive(ctx)
	if err != nil {
		if archive.IsRetryable(err) {
			return fmt.Errorf("%w (retry assess --archive later)", err)
		}
		return err
	}
	if res.Skipped {
		fmt.Fprintln(os.Stderr, "Evaluation already archived")
		return nil
	}
	fmt.Fprintln(os.Stderr, "Archived to", res.Location)
	return nil
}

// applyInput scores every field of in. Scoring defects are logged by the
// processor; only persistence errors are reported here.
func applyInput(ctx context.Context, s *session.Session, in paperInput) error {
	for _, f := range in.Fields {
		ev, err := s.Evaluate(ctx, f)
		if err != nil {
			logger.Warn("field scored but not saved",
				zap.String("domain", string(f.Domain)), zap.String("field", f.Field), zap.Error(err))
			continue
		}
		for _, d := range ev.Defects {
			fmt.Fprintf(os.Stderr, "%s/%s: %s\n", f.Domain, f.Field, d.Error())
		}
	}
	for _, r := range in.Ranked {
		score := r.Choice.Score(r.Field, engineCfg.DomainFor(r.Domain))
		if err := s.SetCustom(ctx, r.Domain, score); err != nil {
			return fmt.Errorf("recording %s/%s: %w", r.Domain, r.Field, err)
		}
	}
	return nil
}

// archiveSink selects the HTTP sink when an endpoint is configured and the
// directory sink otherwise.
func archiveSink(cfg types.ArchiveConfig) (archive.Sink, error) {
	if cfg.URL == "" {
		return archive.DirSink{Dir: cfg.Dir}, nil
	}
	token, ok := secrets.Lookup(loadedSecrets, secrets.ArchiveToken, archiveTokenEnv)
	if !ok {
		return nil, fmt.Errorf("archive.url is set but no %s secret or %s is available",
			secrets.ArchiveToken, archiveTokenEnv)
	}
	sink := archive.NewHTTPSink(cfg, token)
	if cfg.UserAgent == "" {
		sink.UserAgent = "eval-engine/" + version
	}
	return sink, nil
}

func writeOutput(w io.Writer, format string, v any) error {
	switch format {
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := newJSONEncoder(w)
		return enc.Encode(v)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
}

func init() {
	assessCmd.Flags().Bool("archive", false, "archive the finished pass")
	assessCmd.Flags().String("format", "yaml", "output format: yaml or json")

	rootCmd.AddCommand(assessCmd)
}
