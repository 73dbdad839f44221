package llm

import (
	"bytes"
	"encoding/json"
)

// StripCodeFence removes a surrounding markdown code fence (```json ... ```)
// that local models often wrap around JSON output. Content without a fence
// is returned trimmed.
func StripCodeFence(raw json.RawMessage) json.RawMessage {
	b := bytes.TrimSpace(raw)
	if !bytes.HasPrefix(b, []byte("```")) {
		return b
	}
	b = b[3:]
	// Drop the info string ("json", "JSON", ...) up to the first newline.
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		b = b[i+1:]
	} else {
		b = bytes.TrimLeft(b, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
	}
	b = bytes.TrimSpace(b)
	b = bytes.TrimSuffix(b, []byte("```"))
	return bytes.TrimSpace(b)
}
