// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/eval-engine/internal/archive"
	"github.com/pdiddy/eval-engine/internal/config"
	"github.com/pdiddy/eval-engine/internal/session"
	"github.com/pdiddy/eval-engine/internal/store"
	"github.com/pdiddy/eval-engine/pkg/types"
)

const paperYAML = `
token: paper-42
user:
  first_name: Ada
  last_name: Lovelace
  role: domain_expert
  expertise_weight: 1.5
fields:
  - domain: metadata
    field: title
    pair:
      reference: Graph Neural Networks
      extracted: Graph Neural Network
    rating: 4
  - domain: metadata
    field: authors
    pair:
      reference: [Ada Lovelace, Charles Babbage]
      extracted: [Ada Lovelace]
      type: list
    rating: 3
    expertise: 2
ranked:
  - domain: research_field
    field: research_field
    choice:
      candidates: [Computer Science, Physics]
      reference: Computer Science
      selected: computer science
      rating: 5
`

func writePaper(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "paper.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadPaperInput(t *testing.T) {
	in, err := readPaperInput(writePaper(t, paperYAML))
	require.NoError(t, err)

	assert.Equal(t, "paper-42", in.Token)
	assert.Equal(t, "Ada Lovelace", in.User.Evaluator().ID)
	require.Len(t, in.Fields, 2)
	assert.Equal(t, types.FieldText, in.Fields[0].Pair.Type())
	assert.Equal(t, 1.5, in.Fields[0].Expertise, "expertise defaults to the user's weight")
	assert.Equal(t, 2.0, in.Fields[1].Expertise)
	assert.Equal(t, []any{"Ada Lovelace", "Charles Babbage"}, in.Fields[1].Pair.Reference)
	require.Len(t, in.Ranked, 1)
	assert.Equal(t, "computer science", in.Ranked[0].Choice.Selected)
}

func TestReadPaperInputRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{"missing token", "fields: []\n", "token is required"},
		{"unknown domain", "token: p\nfields:\n  - domain: abstract\n    field: x\n", `unknown domain "abstract"`},
		{"missing field id", "token: p\nfields:\n  - domain: content\n", "field id is required"},
		{"ranked without domain", "token: p\nranked:\n  - field: x\n", "ranked[0]"},
		{"not yaml", "token: [", "parsing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readPaperInput(writePaper(t, tt.content))
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		name string
		in   string
		ft   types.FieldType
		want any
	}{
		{"text is raw", "[not a list]", types.FieldText, "[not a list]"},
		{"list literal", `["a", "b"]`, types.FieldList, []any{"a", "b"}},
		{"structured literal", "{metric: F1, value: 0.9}", types.FieldStructured, map[string]any{"metric": "F1", "value": 0.9}},
		{"empty list", "", types.FieldList, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseValue(tt.in, tt.ft)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyInputAndArchive(t *testing.T) {
	ctx := context.Background()
	engineCfg = config.Default()
	in, err := readPaperInput(writePaper(t, paperYAML))
	require.NoError(t, err)

	dir := t.TempDir()
	s, err := session.New(ctx, session.Options{
		Config:     engineCfg,
		Token:      in.Token,
		User:       in.User,
		Persistent: store.NewMemory(),
		Sink:       archive.DirSink{Dir: dir},
	})
	require.NoError(t, err)
	require.NoError(t, applyInput(ctx, s, in))
	require.NoError(t, s.Close(ctx))

	pa, err := s.Assessment(ctx)
	require.NoError(t, err)
	require.Contains(t, pa.Domains, types.DomainMetadata)
	assert.Len(t, pa.Domains[types.DomainMetadata].Fields, 2)
	rf := pa.Domains[types.DomainResearchField].Fields["research_field"]
	assert.InDelta(t, 1.0, rf.AccuracyScore, 1e-9, "top-ranked reference selected with rating 5")

	res, err := s.Archive(ctx)
	require.NoError(t, err)
	assert.FileExists(t, res.Location)

	loaded, err := archive.LoadDir(ctx, dir)
	require.NoError(t, err)
	require.Len(t, loaded.Payloads, 1)
	assert.Equal(t, "paper-42", loaded.Payloads[0].Token)
}

func TestArchiveSink(t *testing.T) {
	sink, err := archiveSink(types.ArchiveConfig{Dir: "records"})
	require.NoError(t, err)
	assert.Equal(t, archive.DirSink{Dir: "records"}, sink)

	loadedSecrets = nil
	t.Setenv(archiveTokenEnv, "")
	_, err = archiveSink(types.ArchiveConfig{URL: "https://archive.example/records"})
	assert.ErrorContains(t, err, "no archive-token secret")

	loadedSecrets = map[string]string{"archive-token": "s3cret"}
	sink, err = archiveSink(types.ArchiveConfig{URL: "https://archive.example/records"})
	require.NoError(t, err)
	httpSink, ok := sink.(*archive.HTTPSink)
	require.True(t, ok)
	assert.Equal(t, "s3cret", httpSink.Token)
	assert.Equal(t, "eval-engine/"+version, httpSink.UserAgent)
}

func TestWriteOutput(t *testing.T) {
	v := types.DomainOverall{AccuracyScore: 0.5, Fields: 2}

	var buf bytes.Buffer
	require.NoError(t, writeOutput(&buf, "yaml", v))
	assert.Contains(t, buf.String(), "accuracy_score: 0.5")

	buf.Reset()
	require.NoError(t, writeOutput(&buf, "json", v))
	assert.Contains(t, buf.String(), `"accuracyScore": 0.5`)

	assert.Error(t, writeOutput(&buf, "csv", v))
}
