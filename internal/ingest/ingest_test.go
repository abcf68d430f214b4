package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/resume-parser/constants"
	"github.com/joseph-ayodele/resume-parser/internal/common"
	"github.com/joseph-ayodele/resume-parser/internal/entity"
	"github.com/joseph-ayodele/resume-parser/internal/pipeline"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func fixtureDir(t *testing.T) string {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "alice.pdf"), "%PDF-1.4 alice")
	writeFile(t, filepath.Join(root, "team", "bob.PDF"), "%PDF-1.4 bob")
	writeFile(t, filepath.Join(root, "team", "alice-copy.pdf"), "%PDF-1.4 alice")
	writeFile(t, filepath.Join(root, "notes.txt"), "not a resume")
	writeFile(t, filepath.Join(root, ".cache", "old.pdf"), "%PDF-1.4 old")
	return root
}

func TestScanDirectory(t *testing.T) {
	root := fixtureDir(t)

	got, stats, err := ScanDirectory(context.Background(), root, true)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), stats.Matched)
	assert.Equal(t, uint32(1), stats.Deduplicated)
	assert.Zero(t, stats.Failed)

	refs := map[string]Candidate{}
	for _, c := range got {
		refs[c.Ref] = c
	}
	require.Contains(t, refs, "alice.pdf")
	require.Contains(t, refs, "team/bob.PDF")
	require.Contains(t, refs, "team/alice-copy.pdf")
	assert.NotContains(t, refs, ".cache/old.pdf")
	assert.Equal(t, refs["alice.pdf"].HashHex, refs["team/alice-copy.pdf"].HashHex)
	assert.Equal(t, int64(len("%PDF-1.4 alice")), refs["alice.pdf"].Size)

	_, stats, err = ScanDirectory(context.Background(), root, false)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), stats.Matched)

	_, _, err = ScanDirectory(context.Background(), " ", false)
	assert.Error(t, err)
}

func TestLoadDocument(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "cv.bin")
	writeFile(t, path, "%PDF-1.7 body")

	doc, err := LoadDocument(path, "", 0)
	require.NoError(t, err)
	assert.Equal(t, "cv.bin", doc.Ref)
	assert.Equal(t, constants.MediaTypePDF, doc.MediaType)
	assert.Equal(t, []byte("%PDF-1.7 body"), doc.Bytes)

	_, err = LoadDocument(filepath.Join(root, "missing.pdf"), "", 0)
	assert.Error(t, err)
}

func TestLoadDocumentEnforcesCeiling(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "cv.pdf")
	writeFile(t, path, "%PDF-1.7 twenty bytes")

	doc, err := LoadDocument(path, "cv.pdf", int64(len("%PDF-1.7 twenty bytes")))
	require.NoError(t, err)
	assert.Len(t, doc.Bytes, len("%PDF-1.7 twenty bytes"))

	_, err = LoadDocument(path, "cv.pdf", 8)
	assert.True(t, common.IsCode(err, common.CodePayloadTooLarge), "got %v", err)
}

type refParser struct{}

func (refParser) ParseDocument(_ context.Context, doc pipeline.Document, callerID string) entity.ParseResult {
	return entity.Succeeded(entity.ExtractedProfile{PersonalInfo: entity.PersonalInfo{Name: callerID + ":" + doc.Ref}}, nil)
}

func TestBatchRun(t *testing.T) {
	root := fixtureDir(t)

	items, stats, err := Batch{Parser: refParser{}, CallerID: "cli", Workers: 2, SkipHidden: true}.Run(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), stats.Deduplicated)
	require.Len(t, items, 2)
	assert.Equal(t, "alice.pdf", items[0].Candidate.Ref)
	assert.Equal(t, "team/bob.PDF", items[1].Candidate.Ref)
	for _, it := range items {
		require.True(t, it.Result.Success)
		assert.Equal(t, "cli:"+it.Candidate.Ref, it.Result.Data.PersonalInfo.Name)
	}
}

func TestBatchRunFailsOversizedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "small.pdf"), "%PDF")
	writeFile(t, filepath.Join(root, "large.pdf"), "%PDF-1.4 a much longer body")

	items, _, err := Batch{Parser: refParser{}, CallerID: "cli", MaxBytes: 10}.Run(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "large.pdf", items[0].Candidate.Ref)
	assert.False(t, items[0].Result.Success)
	assert.Equal(t, common.CodePayloadTooLarge, items[0].Result.ErrorCode)
	assert.Contains(t, *items[0].Result.Error, "PAYLOAD_TOO_LARGE")

	assert.Equal(t, "small.pdf", items[1].Candidate.Ref)
	assert.True(t, items[1].Result.Success)
}

func TestStartWatcher(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "existing.pdf"), "%PDF-1.4")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{root}, InitialScan: true, Debounce: 10 * time.Millisecond})
	require.NoError(t, err)

	next := func() string {
		select {
		case p := <-events:
			return p
		case <-time.After(5 * time.Second):
			t.Fatal("no watch event")
			return ""
		}
	}
	assert.Equal(t, filepath.Join(root, "existing.pdf"), next())

	writeFile(t, filepath.Join(root, "ignored.txt"), "x")
	writeFile(t, filepath.Join(root, "new.pdf"), "%PDF-1.4 new")
	assert.Equal(t, filepath.Join(root, "new.pdf"), next())

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-events:
			return !ok
		default:
			return false
		}
	}, 5*time.Second, 5*time.Millisecond)

	_, _, err = StartWatcher(context.Background(), WatchConfig{})
	assert.Error(t, err)
}
