package reply

import (
	"encoding/json"
	"errors"
)

// Shape names which response layout a reply was found in.
type Shape string

const (
	ShapeNested  Shape = "nested"  // {"data": {"reply": "..."}}
	ShapeOutput  Shape = "output"  // {"output": "..."}
	ShapeUnknown Shape = "unknown" // neither field present
)

// Fixed user-facing texts used when the service gives nothing usable.
const (
	FallbackNoReply     = "Maaf, aku sedang tidak konek ke server."
	FallbackUnreachable = "⚠️ Gagal terhubung ke server."
)

// Reply is the text to show for one prompt.
type Reply struct {
	Text     string `json:"reply"`
	Shape    Shape  `json:"shape"`
	Fallback bool   `json:"fallback"`
}

var errInvalidJSON = errors.New("response is not valid JSON")

// Decode extracts the reply text from a response body. The nested layout
// takes precedence over "output"; empty or non-string values count as
// absent. Valid JSON with neither layout yields the no-reply fallback.
func Decode(body []byte) (Reply, error) {
	if !json.Valid(body) {
		return unreachable(), errInvalidJSON
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		// Valid JSON, but not an object.
		return noReply(), nil
	}

	if raw, ok := top["data"]; ok {
		var data map[string]json.RawMessage
		if json.Unmarshal(raw, &data) == nil {
			if s := stringField(data, "reply"); s != "" {
				return Reply{Text: s, Shape: ShapeNested}, nil
			}
		}
	}
	if s := stringField(top, "output"); s != "" {
		return Reply{Text: s, Shape: ShapeOutput}, nil
	}
	return noReply(), nil
}

func stringField(m map[string]json.RawMessage, key string) string {
	raw, ok := m[key]
	if !ok {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

func noReply() Reply {
	return Reply{Text: FallbackNoReply, Shape: ShapeUnknown, Fallback: true}
}

func unreachable() Reply {
	return Reply{Text: FallbackUnreachable, Shape: ShapeUnknown, Fallback: true}
}
