package debugrec

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/golang/snappy"

	"github.com/replikv/replikv/internal/jsonl"
)

// SchemaVersion is stamped into every exported envelope so Import can
// reject incompatible data.
const SchemaVersion = 1

// exportEnvelope is the on-disk/NDJSON-line shape for one recorded op.
type exportEnvelope struct {
	SchemaVersion int        `json:"schemaVersion"`
	Op            RecordedOp `json:"op"`
}

// ExportJSON serializes every captured op as a single JSON array,
// optionally snappy-compressed.
func (r *CRDTRecorder) ExportJSON(compress bool) ([]byte, error) {
	r.mu.Lock()
	ops := append([]RecordedOp(nil), r.ops...)
	r.mu.Unlock()

	data, err := json.Marshal(struct {
		SchemaVersion int          `json:"schemaVersion"`
		Ops           []RecordedOp `json:"ops"`
	}{SchemaVersion: SchemaVersion, Ops: ops})
	if err != nil {
		return nil, fmt.Errorf("debugrec: marshal JSON export: %w", err)
	}
	if compress {
		return snappy.Encode(nil, data), nil
	}
	return data, nil
}

// ExportNDJSON serializes every captured op as newline-delimited JSON
// envelopes, one schema-versioned op per line, optionally snappy-
// compressed as a whole.
func (r *CRDTRecorder) ExportNDJSON(compress bool) ([]byte, error) {
	r.mu.Lock()
	ops := append([]RecordedOp(nil), r.ops...)
	r.mu.Unlock()

	envelopes := make([]exportEnvelope, len(ops))
	for i, op := range ops {
		envelopes[i] = exportEnvelope{SchemaVersion: SchemaVersion, Op: op}
	}

	data, err := jsonl.WriteLines(envelopes)
	if err != nil {
		return nil, fmt.Errorf("debugrec: %w", err)
	}
	if compress {
		return snappy.Encode(nil, data), nil
	}
	return data, nil
}

// ExportCSV serializes every captured op as CSV with a header row. Value
// is rendered via fmt.Sprintf("%v", ...) since it is an arbitrary any.
func (r *CRDTRecorder) ExportCSV() ([]byte, error) {
	r.mu.Lock()
	ops := append([]RecordedOp(nil), r.ops...)
	r.mu.Unlock()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"sequence", "mapId", "nodeId", "operation", "key", "value", "timestamp"}); err != nil {
		return nil, fmt.Errorf("debugrec: write CSV header: %w", err)
	}
	for _, op := range ops {
		row := []string{
			strconv.Itoa(op.Sequence),
			op.MapID,
			op.NodeID,
			string(op.Operation),
			op.Key,
			fmt.Sprintf("%v", op.Value),
			op.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("debugrec: write CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("debugrec: flush CSV: %w", err)
	}
	return buf.Bytes(), nil
}

// ImportJSON loads a JSON export produced by ExportJSON, replacing this
// recorder's currently captured ops. data may be snappy-compressed; it is
// decoded as compressed first and falls back to raw JSON.
func (r *CRDTRecorder) ImportJSON(data []byte) error {
	raw, err := maybeDecompress(data)
	if err != nil {
		return err
	}
	var envelope struct {
		SchemaVersion int          `json:"schemaVersion"`
		Ops           []RecordedOp `json:"ops"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("debugrec: unmarshal JSON import: %w", err)
	}
	if envelope.SchemaVersion != SchemaVersion {
		return fmt.Errorf("debugrec: unsupported schema version %d (want %d)", envelope.SchemaVersion, SchemaVersion)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = envelope.Ops
	r.seq = 0
	for _, op := range r.ops {
		if op.Sequence > r.seq {
			r.seq = op.Sequence
		}
	}
	return nil
}

// ImportNDJSON loads an NDJSON export produced by ExportNDJSON, replacing
// this recorder's currently captured ops.
func (r *CRDTRecorder) ImportNDJSON(data []byte) error {
	raw, err := maybeDecompress(data)
	if err != nil {
		return err
	}

	envelopes, err := jsonl.ScanLines[exportEnvelope](raw)
	if err != nil {
		return fmt.Errorf("debugrec: %w", err)
	}

	ops := make([]RecordedOp, len(envelopes))
	for i, envelope := range envelopes {
		if envelope.SchemaVersion != SchemaVersion {
			return fmt.Errorf("debugrec: line %d: unsupported schema version %d", i+1, envelope.SchemaVersion)
		}
		ops[i] = envelope.Op
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = ops
	r.seq = 0
	for _, op := range r.ops {
		if op.Sequence > r.seq {
			r.seq = op.Sequence
		}
	}
	return nil
}

// maybeDecompress attempts snappy decoding first, falling back to the
// raw input when it isn't valid snappy-framed data.
func maybeDecompress(data []byte) ([]byte, error) {
	if decoded, err := snappy.Decode(nil, data); err == nil {
		return decoded, nil
	}
	return data, nil
}
