package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/raphaelgruber/taxonomist/internal/llm"
	"github.com/raphaelgruber/taxonomist/internal/llm/llmtest"
	"github.com/raphaelgruber/taxonomist/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCluster(t *testing.T, dir, name string, n int) {
	t.Helper()
	var b strings.Builder
	for i := 0; i < n; i++ {
		line, err := json.Marshal(models.Record{Question: fmt.Sprintf("%s question %d", name, i), Cluster: name})
		require.NoError(t, err)
		b.Write(line)
		b.WriteByte('\n')
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".jsonl"), []byte(b.String()), 0o644))
}

// sampledCount counts the bullet lines of a description prompt.
func sampledCount(prompt string) int {
	n := 0
	for _, line := range strings.Split(prompt, "\n") {
		if strings.HasPrefix(line, "- ") {
			n++
		}
	}
	return n
}

func TestSummarizeCountAndSampleBound(t *testing.T) {
	dir := t.TempDir()
	writeCluster(t, dir, "billing", 120)
	writeCluster(t, dir, "shipping", 3)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	gen := &llmtest.MockGenerator{Response: "  Customers asking about charges.  "}
	s := New(gen, 50, rand.New(rand.NewPCG(3, 3)))

	summaries, err := s.Summarize(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, models.Summary{Name: "billing", Description: "Customers asking about charges.", Count: 120}, summaries[0])
	assert.Equal(t, "shipping", summaries[1].Name)
	assert.Equal(t, 3, summaries[1].Count)

	prompts := gen.Prompts()
	require.Len(t, prompts, 2)
	assert.Equal(t, 50, sampledCount(prompts[0]))
	assert.Equal(t, 3, sampledCount(prompts[1]))
	assert.Nil(t, gen.LastOptions().Temperature, "descriptions use default sampling")
}

func TestSummarizeSkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	content := `{"question":"good one","cluster":"billing"}
not json at all
{"question":"good two","cluster":"billing"}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "billing.jsonl"), []byte(content), 0o644))

	gen := &llmtest.MockGenerator{Response: "desc"}
	summaries, err := New(gen, 50, nil).Summarize(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	assert.Equal(t, 3, summaries[0].Count, "malformed lines still count as lines")
	prompts := gen.Prompts()
	require.Len(t, prompts, 1)
	assert.Equal(t, 2, sampledCount(prompts[0]))
	assert.Contains(t, prompts[0], "good one")
}

func TestSummarizeNamesClusterFromRecords(t *testing.T) {
	dir := t.TempDir()
	long := strings.Repeat("x", 300)
	for _, label := range []string{long, "refund/cancel"} {
		line, err := json.Marshal(models.Record{Question: "q", Cluster: label})
		require.NoError(t, err)
		path := filepath.Join(dir, models.ClusterFileName(label))
		require.NoError(t, os.WriteFile(path, append(line, '\n'), 0o644))
	}

	gen := &llmtest.MockGenerator{Response: "desc"}
	summaries, err := New(gen, 50, nil).Summarize(context.Background(), dir)
	require.NoError(t, err)

	var names []string
	for _, s := range summaries {
		names = append(names, s.Name)
	}
	assert.ElementsMatch(t, []string{long, "refund/cancel"}, names)
}

func TestSummarizeDescriptionFailureContinues(t *testing.T) {
	dir := t.TempDir()
	writeCluster(t, dir, "a", 2)
	writeCluster(t, dir, "b", 2)

	gen := &llmtest.MockGenerator{GenerateFunc: func(_ context.Context, prompt string, _ llm.CallOptions) (string, error) {
		if strings.Contains(prompt, `cluster "a"`) {
			return "", errors.New("timeout")
		}
		return "about b", nil
	}}

	summaries, err := New(gen, 10, nil).Summarize(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Empty(t, summaries[0].Description)
	assert.Equal(t, 2, summaries[0].Count)
	assert.Equal(t, "about b", summaries[1].Description)
}

func TestSummarizeEmptyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.jsonl"), nil, 0o644))

	gen := &llmtest.MockGenerator{Response: "x"}
	summaries, err := New(gen, 0, nil).Summarize(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, []models.Summary{{Name: "empty", Count: 0}}, summaries)
	assert.Zero(t, gen.CallCount())
}

func TestSummarizeMissingDir(t *testing.T) {
	_, err := New(&llmtest.MockGenerator{}, 0, nil).Summarize(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestWriteOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "summary.json")
	require.NoError(t, Write(path, []models.Summary{{Name: "old", Count: 1}}))
	require.NoError(t, Write(path, []models.Summary{{Name: "billing & refunds", Description: "d", Count: 120}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got []models.Summary
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, []models.Summary{{Name: "billing & refunds", Description: "d", Count: 120}}, got)
	assert.Contains(t, string(data), "billing & refunds", "HTML characters are not escaped")
	assert.Contains(t, string(data), `"count": 120`)
}

func TestWriteEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.json")
	require.NoError(t, Write(path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}
