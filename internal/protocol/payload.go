package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PayloadMarker prefixes the one output line a probe script emits as JSON.
const PayloadMarker = "@@LEGOSORTER@@"

// ExtractPayload decodes the last marker line in output into v.
func ExtractPayload(output string, v any) error {
	lines := strings.Split(output, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		idx := strings.Index(line, PayloadMarker)
		if idx < 0 {
			continue
		}
		body := strings.TrimSpace(line[idx+len(PayloadMarker):])
		if err := json.Unmarshal([]byte(body), v); err != nil {
			return fmt.Errorf("protocol: decode payload: %w", err)
		}
		return nil
	}
	return ErrNoPayload
}

// StripPayload returns output without marker lines, for printing.
func StripPayload(output string) string {
	lines := strings.Split(output, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.Contains(line, PayloadMarker) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimRight(strings.Join(kept, "\n"), "\n")
}

// FormatPayload renders v as a marker line; the fake host uses it.
func FormatPayload(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return PayloadMarker + " " + string(raw), nil
}
