package debugrec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededRecorder() *CRDTRecorder {
	r := NewCRDTRecorder(10)
	r.Enable()
	r.RecordOp(RecordedOp{MapID: "m", Key: "a", Operation: OpSet, Value: "v1"})
	r.RecordOp(RecordedOp{MapID: "m", Key: "b", Operation: OpDelete})
	return r
}

func TestExportAndImportJSONRoundTrips(t *testing.T) {
	r := seededRecorder()
	data, err := r.ExportJSON(false)
	require.NoError(t, err)

	r2 := NewCRDTRecorder(10)
	require.NoError(t, r2.ImportJSON(data))
	r2.Enable()

	ops := r2.FilterOps(FilterOptions{})
	require.Len(t, ops, 2)
	assert.Equal(t, "a", ops[0].Key)
	assert.Equal(t, "b", ops[1].Key)
}

func TestExportJSONCompressedRoundTrips(t *testing.T) {
	r := seededRecorder()
	data, err := r.ExportJSON(true)
	require.NoError(t, err)

	r2 := NewCRDTRecorder(10)
	require.NoError(t, r2.ImportJSON(data))
	assert.Len(t, r2.FilterOps(FilterOptions{}), 2)
}

func TestExportAndImportNDJSONRoundTrips(t *testing.T) {
	r := seededRecorder()
	data, err := r.ExportNDJSON(false)
	require.NoError(t, err)

	r2 := NewCRDTRecorder(10)
	require.NoError(t, r2.ImportNDJSON(data))

	ops := r2.FilterOps(FilterOptions{})
	require.Len(t, ops, 2)
	assert.Equal(t, "b", ops[1].Key)
}

func TestExportNDJSONCompressedRoundTrips(t *testing.T) {
	r := seededRecorder()
	data, err := r.ExportNDJSON(true)
	require.NoError(t, err)

	r2 := NewCRDTRecorder(10)
	require.NoError(t, r2.ImportNDJSON(data))
	assert.Len(t, r2.FilterOps(FilterOptions{}), 2)
}

func TestExportCSVIncludesHeaderAndRows(t *testing.T) {
	r := seededRecorder()
	data, err := r.ExportCSV()
	require.NoError(t, err)
	assert.Contains(t, string(data), "sequence,mapId,nodeId,operation,key,value,timestamp")
	assert.Contains(t, string(data), "a")
	assert.Contains(t, string(data), "b")
}

func TestImportJSONRejectsWrongSchemaVersion(t *testing.T) {
	r2 := NewCRDTRecorder(10)
	err := r2.ImportJSON([]byte(`{"schemaVersion":999,"ops":[]}`))
	assert.Error(t, err)
}
