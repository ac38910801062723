package stories

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// Payload is one decoded item from the source. Numbers are json.Number.
type Payload map[string]any

// DecodePayload decodes one item. A JSON null yields a nil Payload.
func DecodePayload(data []byte) (Payload, error) {
	var p Payload
	if err := decode(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode item: %w", err)
	}
	return p, nil
}

// DecodePayloads decodes an array of items and drops null entries.
func DecodePayloads(data []byte) ([]Payload, error) {
	var all []Payload
	if err := decode(data, &all); err != nil {
		return nil, fmt.Errorf("failed to decode items: %w", err)
	}
	return compact(all), nil
}

func decode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// compact drops nil payloads in place, keeping order.
func compact(in []Payload) []Payload {
	out := in[:0]
	for _, p := range in {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}
