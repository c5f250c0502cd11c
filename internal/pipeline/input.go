package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ppiankov/eventscout/internal/model"
)

// LoadEvents reads a batch of events from a JSON file
func LoadEvents(path string) ([]model.EventRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	return DecodeEvents(f)
}

// DecodeEvents accepts either a JSON array of events or an object with an
// "events" array
func DecodeEvents(r io.Reader) ([]model.EventRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("decode input: empty document")
	}

	var events []model.EventRecord
	if data[0] == '[' {
		if err := json.Unmarshal(data, &events); err != nil {
			return nil, fmt.Errorf("decode input: %w", err)
		}
		return events, nil
	}

	var wrapped struct {
		Events []model.EventRecord `json:"events"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	if wrapped.Events == nil {
		return nil, fmt.Errorf("decode input: no \"events\" array")
	}
	return wrapped.Events, nil
}
