package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/raphaelgruber/taxonomist/internal/metrics"
	"github.com/raphaelgruber/taxonomist/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readRecords(t *testing.T, path string) []models.Record {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var records []models.Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec models.Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}
	require.NoError(t, scanner.Err())
	return records
}

func TestSinkRoutesRecordsPerCluster(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "clusters")
	collector := metrics.NewCollector()
	s, err := New(dir, collector)
	require.NoError(t, err)

	records := []models.Record{
		{Question: "Q1", Cluster: "billing"},
		{Question: "Q2", Cluster: models.ClusterUnknown},
		{Question: "Q3", Cluster: models.ClusterError},
		{Question: "Q4", Cluster: "billing"},
	}
	for _, r := range records {
		require.NoError(t, s.Write(r))
	}
	assert.Equal(t, 3, s.Clusters())
	require.NoError(t, s.Close())

	assert.Equal(t, []models.Record{records[0], records[3]}, readRecords(t, filepath.Join(dir, "billing.jsonl")))
	assert.Equal(t, []models.Record{records[1]}, readRecords(t, filepath.Join(dir, "unknown.jsonl")))
	assert.Equal(t, []models.Record{records[2]}, readRecords(t, filepath.Join(dir, "error.jsonl")))
	assert.EqualValues(t, 4, collector.ClusterTotal())
}

func TestSinkLongClusterLabel(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, nil)
	require.NoError(t, err)

	long := strings.Repeat("x", 300)
	records := []models.Record{
		{Question: "Q1", Cluster: long},
		{Question: "Q2", Cluster: "b"},
		{Question: "Q3", Cluster: long},
	}
	for _, r := range records {
		require.NoError(t, s.Write(r))
	}
	require.NoError(t, s.Close())

	got := readRecords(t, filepath.Join(dir, models.ClusterFileName(long)))
	assert.Equal(t, []models.Record{records[0], records[2]}, got)
	assert.Equal(t, []models.Record{records[1]}, readRecords(t, filepath.Join(dir, "b.jsonl")))
}

func TestSinkAppendsToExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "billing.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"question":"old","cluster":"billing"}`+"\n"), 0o644))

	s, err := New(dir, nil)
	require.NoError(t, err)
	require.NoError(t, s.Write(models.Record{Question: "new", Cluster: "billing"}))
	require.NoError(t, s.Close())

	got := readRecords(t, path)
	require.Len(t, got, 2)
	assert.Equal(t, "old", got[0].Question)
	assert.Equal(t, "new", got[1].Question)
}

func TestSinkCloseIdempotentAndRejectsWrites(t *testing.T) {
	s, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	require.NoError(t, s.Write(models.Record{Question: "q", Cluster: "a"}))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Write(models.Record{Question: "q", Cluster: "a"}), ErrClosed)
}

func TestSinkEmptyClusterIsUnknown(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, nil)
	require.NoError(t, err)
	require.NoError(t, s.Write(models.Record{Question: "q"}))
	require.NoError(t, s.Close())

	got := readRecords(t, filepath.Join(dir, "unknown.jsonl"))
	assert.Equal(t, []models.Record{{Question: "q", Cluster: models.ClusterUnknown}}, got)
}

func TestDrain(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, nil)
	require.NoError(t, err)
	defer s.Close()

	stream := make(chan models.Record, 250)
	for i := 0; i < 250; i++ {
		cluster := "a"
		if i%2 == 1 {
			cluster = "b"
		}
		stream <- models.Record{Question: "q", Cluster: cluster}
	}
	close(stream)

	var last int
	n, err := s.Drain(context.Background(), stream, func(n int, _ models.Record) { last = n })
	require.NoError(t, err)
	assert.Equal(t, 250, n)
	assert.Equal(t, 250, last)
	assert.Equal(t, 250, s.Written())
}

func TestDrainStopsOnCancel(t *testing.T) {
	s, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := s.Drain(ctx, make(chan models.Record), nil)
	assert.Zero(t, n)
	assert.ErrorIs(t, err, context.Canceled)
}
