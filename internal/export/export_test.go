package export

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/knoldeck/internal/apkg"
	"github.com/conorfennell/knoldeck/internal/config"
	"github.com/conorfennell/knoldeck/internal/deck"
	"github.com/conorfennell/knoldeck/internal/domain"
	"github.com/conorfennell/knoldeck/internal/knol"
)

type recordingPackager struct {
	calls int
	deck  domain.Deck
	notes []domain.Note
}

func (p *recordingPackager) Write(_ context.Context, _ string, d domain.Deck, _ *domain.Template, notes []domain.Note) error {
	p.calls++
	p.deck = d
	p.notes = notes
	return nil
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func newConfig(mode config.Mode, source, output string) *config.Config {
	return &config.Config{
		Mode:     mode,
		Output:   output,
		LogLevel: "info",
		Source:   config.SourceConfig{Path: source, ReposDir: "repos", Pattern: "*.txt"},
	}
}

func newExporter(p Packager) *Exporter {
	tmpl := domain.BaseTemplate
	return &Exporter{
		Template: &tmpl,
		Packager: p,
		Logger:   slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
	}
}

const exampleFile = "1234\nMy Deck\nfile_id:abc\nWhat is 2+2?\n2+2\n4\n"

func TestRunRelease(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"b.txt":     "1234\nMy Deck\nfile_id:b\ns3\nq3\na3\n",
		"a.txt":     "1234\nMy Deck\nfile_id:a\ns1\nq1\na1\ns2\nq2\na2\n",
		"notes.md":  "ignored",
		"empty.txt": "1234\nMy Deck\nfile_id:empty\n",
	})
	p := &recordingPackager{}

	res, err := newExporter(p).Run(context.Background(), newConfig(config.ModeRelease, dir, "deck.apkg"))
	require.NoError(t, err)

	assert.Equal(t, 1, p.calls)
	assert.Equal(t, domain.Deck{ID: 1234, Name: "My Deck"}, res.Deck)
	assert.Equal(t, 3, res.Notes)
	assert.Len(t, res.Files, 3)

	var questions []string
	for _, n := range p.notes {
		questions = append(questions, n.Fields[1])
	}
	assert.Equal(t, []string{"q1", "q2", "q3"}, questions)
}

func TestRunReleaseDirWithGlobCharacters(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cards[1]")
	require.NoError(t, os.Mkdir(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "deck.txt"), []byte(exampleFile), 0o644))
	p := &recordingPackager{}

	res, err := newExporter(p).Run(context.Background(), newConfig(config.ModeRelease, dir, "deck.apkg"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "deck.txt")}, res.Files)
	assert.Equal(t, 1, res.Notes)
}

func TestRunBadPattern(t *testing.T) {
	dir := writeFiles(t, map[string]string{"deck.txt": exampleFile})
	cfg := newConfig(config.ModeRelease, dir, "deck.apkg")
	cfg.Source.Pattern = "["
	p := &recordingPackager{}

	_, err := newExporter(p).Run(context.Background(), cfg)
	require.ErrorIs(t, err, filepath.ErrBadPattern)
	assert.Zero(t, p.calls)
}

func TestRunDebug(t *testing.T) {
	dir := writeFiles(t, map[string]string{"deck.txt": exampleFile})
	p := &recordingPackager{}

	res, err := newExporter(p).Run(context.Background(), newConfig(config.ModeDebug, filepath.Join(dir, "deck.txt"), "deck.apkg"))
	require.NoError(t, err)

	assert.Equal(t, deck.DummyDeckID, res.Deck.ID)
	assert.Equal(t, deck.PlaceholderDeckName, p.deck.Name)
	require.Len(t, p.notes, 1)
}

func TestRunFailuresWriteNothing(t *testing.T) {
	testCases := []struct {
		name     string
		files    map[string]string
		expected error
	}{
		{
			name: "duplicate file id",
			files: map[string]string{
				"a.txt": exampleFile,
				"b.txt": "1234\nMy Deck\nfile_id:abc\nanother\nq\na\n",
			},
			expected: domain.ErrDuplicateFile,
		},
		{
			name: "ambiguous deck",
			files: map[string]string{
				"a.txt": exampleFile,
				"b.txt": "1235\nMy Deck\nfile_id:other\n",
			},
			expected: domain.ErrAmbiguousDeck,
		},
		{
			name: "wrong body shape",
			files: map[string]string{
				"a.txt": exampleFile,
				"b.txt": "1234\nMy Deck\nfile_id:other\ns\nq\na\nextra\n",
			},
			expected: domain.ErrMalformedBody,
		},
		{
			name: "duplicate card",
			files: map[string]string{
				"a.txt": "1234\nMy Deck\nfile_id:a\ns\nq\na\ns\nq\na\n",
			},
			expected: domain.ErrDuplicateCard,
		},
		{
			name:     "malformed header",
			files:    map[string]string{"a.txt": "My Deck\n1234\nfile_id:a\n"},
			expected: domain.ErrMalformedHeader,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := writeFiles(t, tc.files)
			output := filepath.Join(t.TempDir(), "deck.apkg")
			p := &apkg.Packager{}

			_, err := newExporter(p).Run(context.Background(), newConfig(config.ModeRelease, dir, output))
			require.ErrorIs(t, err, tc.expected)

			_, statErr := os.Stat(output)
			assert.True(t, os.IsNotExist(statErr), "no package should be written")
		})
	}
}

func TestRunNoFiles(t *testing.T) {
	p := &recordingPackager{}
	_, err := newExporter(p).Run(context.Background(), newConfig(config.ModeRelease, t.TempDir(), "deck.apkg"))
	require.Error(t, err)
	assert.Zero(t, p.calls)
}

func TestRunEndToEnd(t *testing.T) {
	dir := writeFiles(t, map[string]string{"deck.txt": exampleFile})
	ctx := context.Background()

	export := func() *apkg.Package {
		output := filepath.Join(t.TempDir(), "deck.apkg")
		_, err := newExporter(&apkg.Packager{}).Run(ctx, newConfig(config.ModeRelease, dir, output))
		require.NoError(t, err)
		pkg, err := apkg.Read(ctx, output)
		require.NoError(t, err)
		return pkg
	}

	first := export()
	cardID := knol.CardID("What is 2+2?", "file_id:abc")

	assert.Equal(t, domain.Deck{ID: 1234, Name: "My Deck"}, first.Deck)
	require.Len(t, first.Notes, 1)
	assert.Equal(t, knol.GUID(int64(1234), cardID), first.Notes[0].GUID)
	assert.Equal(t, []string{cardID, "2+2", "4"}, first.Notes[0].Fields)

	second := export()
	require.Len(t, second.Notes, 1)
	assert.Equal(t, first.Notes[0].GUID, second.Notes[0].GUID, "guids must survive a re-export")
}
