package corpus

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSkipsEmptyRows(t *testing.T) {
	input := `flags,instruction,category
B,how do I cancel my order?,ORDER
B,   ,ORDER
B,"I want a refund, please",REFUND
B
B,,ACCOUNT
B,  where is my package  ,SHIPPING
`
	questions, err := Read(strings.NewReader(input), "instruction")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"how do I cancel my order?",
		"I want a refund, please",
		"where is my package",
	}, questions)
}

func TestReadKeepsDuplicates(t *testing.T) {
	input := "instruction\nsame question\nsame question\n"
	questions, err := Read(strings.NewReader(input), "instruction")
	require.NoError(t, err)
	assert.Len(t, questions, 2)
}

func TestReadStripsBOM(t *testing.T) {
	input := "\ufeffinstruction,response\nhello,hi\n"
	questions, err := Read(strings.NewReader(input), "instruction")
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, questions)
}

func TestReadMissingColumn(t *testing.T) {
	_, err := Read(strings.NewReader("question,answer\nq,a\n"), "instruction")
	assert.ErrorIs(t, err, ErrMissingColumn)

	_, err = Read(strings.NewReader(""), "instruction")
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corpus.csv")
	require.NoError(t, os.WriteFile(path, []byte("instruction\na\nb\n"), 0o644))

	questions, err := Load(path, "instruction")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, questions)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.csv"), "instruction")
	assert.ErrorIs(t, err, ErrCorpusNotFound)
}
