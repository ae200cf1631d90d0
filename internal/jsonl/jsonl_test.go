package jsonl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Key   string `json:"key"`
	Value int    `json:"value"`
}

func TestWriteThenScanRoundTrips(t *testing.T) {
	items := []sample{{Key: "a", Value: 1}, {Key: "b", Value: 2}}

	data, err := WriteLines(items)
	require.NoError(t, err)

	got, err := ScanLines[sample](data)
	require.NoError(t, err)
	assert.Equal(t, items, got)
}

func TestScanLinesSkipsBlankLines(t *testing.T) {
	data := []byte("{\"key\":\"a\",\"value\":1}\n\n{\"key\":\"b\",\"value\":2}\n")

	got, err := ScanLines[sample](data)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Key)
	assert.Equal(t, "b", got[1].Key)
}

func TestScanLinesReportsLineNumberOnParseError(t *testing.T) {
	data := []byte("{\"key\":\"a\",\"value\":1}\nnot json\n")

	_, err := ScanLines[sample](data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestWriteLinesEmptyInput(t *testing.T) {
	data, err := WriteLines([]sample{})
	require.NoError(t, err)
	assert.Empty(t, data)
}
