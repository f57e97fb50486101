package labels

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/raphaelgruber/taxonomist/internal/llm"
	"github.com/raphaelgruber/taxonomist/internal/llm/llmtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeCorpus(n int) []string {
	corpus := make([]string, n)
	for i := range corpus {
		corpus[i] = fmt.Sprintf("question %d", i)
	}
	return corpus
}

func newTestDiscoverer(t *testing.T, gen llm.Generator) (*Discoverer, *Store) {
	t.Helper()
	store := NewStore(filepath.Join(t.TempDir(), "data", "labels.txt"))
	return NewDiscoverer(gen, store, rand.New(rand.NewPCG(1, 1))), store
}

func TestDiscoverPersistedLabelsSkipLLM(t *testing.T) {
	gen := &llmtest.MockGenerator{Response: `{"labels":["zzz"]}`}
	d, store := newTestDiscoverer(t, gen)
	require.NoError(t, store.Save([]string{"a", "b"}))

	labels, err := d.Discover(context.Background(), makeCorpus(10), 5)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, labels)
	assert.Zero(t, gen.CallCount(), "backend must not be called when labels are persisted")
}

func TestDiscoverExtractsAndPersists(t *testing.T) {
	gen := &llmtest.MockGenerator{Response: "```json\n{\"labels\": [\"billing\", \"shipping\"]}\n```"}
	d, store := newTestDiscoverer(t, gen)

	labels, err := d.Discover(context.Background(), makeCorpus(20), 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"billing", "shipping"}, labels)

	opts := gen.LastOptions()
	require.NotNil(t, opts.Temperature)
	assert.Zero(t, *opts.Temperature)
	assert.True(t, opts.JSON)

	persisted, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, labels, persisted)

	// Second run short-circuits.
	again, err := d.Discover(context.Background(), makeCorpus(20), 5)
	require.NoError(t, err)
	assert.Equal(t, labels, again)
	assert.Equal(t, 1, gen.CallCount())
}

func TestDiscoverSampleBound(t *testing.T) {
	tests := []struct {
		name       string
		corpusSize int
		sampleSize int
		want       int
	}{
		{"sample smaller than corpus", 100, 10, 10},
		{"sample larger than corpus", 7, 500, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &llmtest.MockGenerator{Response: `{"labels":["a"]}`}
			d, _ := newTestDiscoverer(t, gen)

			_, err := d.Discover(context.Background(), makeCorpus(tt.corpusSize), tt.sampleSize)
			require.NoError(t, err)

			prompts := gen.Prompts()
			require.Len(t, prompts, 1)
			assert.Equal(t, tt.want, strings.Count(prompts[0], "Question: "))
		})
	}
}

func TestDiscoverFailuresYieldEmptyAndPersistNothing(t *testing.T) {
	tests := []struct {
		name string
		gen  *llmtest.MockGenerator
	}{
		{"llm error", &llmtest.MockGenerator{GenerateFunc: func(context.Context, string, llm.CallOptions) (string, error) {
			return "", errors.New("connection refused")
		}}},
		{"not json", &llmtest.MockGenerator{Response: "billing, shipping"}},
		{"json inside prose", &llmtest.MockGenerator{Response: `Here are the labels: {"labels":["a"]} Enjoy!`}},
		{"missing key", &llmtest.MockGenerator{Response: `{"categories":["a"]}`}},
		{"wrong type", &llmtest.MockGenerator{Response: `{"labels":"a"}`}},
		{"empty list", &llmtest.MockGenerator{Response: `{"labels":[]}`}},
		{"only sentinels", &llmtest.MockGenerator{Response: `{"labels":["error","unknown"," "]}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, store := newTestDiscoverer(t, tt.gen)

			labels, err := d.Discover(context.Background(), makeCorpus(5), 5)
			require.NoError(t, err)
			assert.Empty(t, labels)

			exists, err := store.Exists()
			require.NoError(t, err)
			assert.False(t, exists, "no label file may be written on failure")
		})
	}
}

func TestDiscoverEmptyCorpus(t *testing.T) {
	gen := &llmtest.MockGenerator{Response: `{"labels":["a"]}`}
	d, _ := newTestDiscoverer(t, gen)

	labels, err := d.Discover(context.Background(), nil, 10)
	require.NoError(t, err)
	assert.Empty(t, labels)
	assert.Zero(t, gen.CallCount())
}

func TestParseLabels(t *testing.T) {
	labels, err := ParseLabels(`{"labels":[" billing ","shipping","billing","error","order\nstatus",""]}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"billing", "shipping", "order status"}, labels)
}

func TestNormalizeDropsCollidingFileNames(t *testing.T) {
	got := Normalize([]string{"refund/cancel", "refund_cancel", ".", "..", "error", "billing"})
	assert.Equal(t, []string{"refund/cancel", "billing"}, got)
}

func TestStoreLoadNormalizes(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "labels.txt"))
	edited := "billing\n billing \nunknown\nerror\norder   status\n\nrefund/cancel\nrefund_cancel\n"
	require.NoError(t, os.WriteFile(store.Path(), []byte(edited), 0o644))

	labels, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"billing", "order status", "refund/cancel"}, labels)
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc...", truncate("abcdef", 3))

	got := truncate(strings.Repeat("é", 10), 5) // 2 bytes per rune
	assert.True(t, utf8.ValidString(got), "got %q", got)
	assert.Equal(t, "éé...", got)
}

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "labels.txt"))

	exists, err := store.Exists()
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Save([]string{"a", "b c"}))
	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Equal(t, "a\nb c", string(data))

	require.NoError(t, os.WriteFile(store.Path(), []byte("a\n\n b \n"), 0o644))
	labels, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, labels)
}
