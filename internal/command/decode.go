package command

import (
	"encoding/json"
	"fmt"
)

// request is the adapter-facing input shape, per spec.md §6.
type request struct {
	Type string          `json:"type"`
	Keys []string        `json:"keys,omitempty"`
	Cols json.RawMessage `json:"cols,omitempty"`
	Rows json.RawMessage `json:"rows,omitempty"`
}

// DecodeLine parses one line of adapter input into a Command. The
// returned error, when non-nil, is always something the caller should
// report as a Debug event rather than treat as fatal — see spec.md §7
// ("malformed JSON on stdio ... dropped ... emits a Debug event").
func DecodeLine(line []byte) (Command, error) {
	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		return Command{}, fmt.Errorf("malformed command: %w", err)
	}
	switch req.Type {
	case "sendKeys":
		seqs := make([]InputSeq, len(req.Keys))
		for i, k := range req.Keys {
			seqs[i] = ParseKey(k)
		}
		return Command{Input: seqs}, nil
	case "takeSnapshot":
		return Command{Snapshot: true}, nil
	case "resize":
		cols, err := decodeInt(req.Cols)
		if err != nil {
			return Command{}, fmt.Errorf("invalid resize.cols: %w", err)
		}
		rows, err := decodeInt(req.Rows)
		if err != nil {
			return Command{}, fmt.Errorf("invalid resize.rows: %w", err)
		}
		return Command{Resize: &ResizeArgs{Cols: cols, Rows: rows}}, nil
	case "exit":
		return Command{Exit: true}, nil
	default:
		return Command{}, fmt.Errorf("unknown command type %q", req.Type)
	}
}

func decodeInt(raw json.RawMessage) (int, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("missing field")
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, err
	}
	return n, nil
}
