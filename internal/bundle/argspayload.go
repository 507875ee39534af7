package bundle

import (
	"encoding/json"
	"fmt"
)

// argsPayloadFormat is the format tag spec §4.4 requires the payload to be
// self-describing with. "json-v1" is decodable by the bootstrap using only
// encoding/json, satisfying the "decodable ... using only modules present
// on the remote interpreter before external installs" requirement.
const argsPayloadFormat = "json-v1"

// ArgsPayload is the on-wire shape written to a bundle's /args.payload.
// Go's single generic input parameter (pkg/dispatch's Wrap[In, Out]) has no
// positional/keyword split the way the source system's **kwargs does; the
// single encoded input value is carried in Positional[0] and Keyword stays
// empty, keeping the envelope shape available if a future caller needs it.
type ArgsPayload struct {
	Format     string                     `json:"format"`
	Positional []json.RawMessage          `json:"positional"`
	Keyword    map[string]json.RawMessage `json:"keyword,omitempty"`
}

// EncodeArgsPayload marshals in as the sole positional argument of a
// json-v1 envelope.
func EncodeArgsPayload(in interface{}) ([]byte, error) {
	raw, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("bundle: encode args: %w", err)
	}
	payload := ArgsPayload{
		Format:     argsPayloadFormat,
		Positional: []json.RawMessage{raw},
	}
	return json.Marshal(payload)
}

// DecodeArgsPayload is the bootstrap-side counterpart, unmarshaling the
// envelope's sole positional value into out.
func DecodeArgsPayload(data []byte, out interface{}) error {
	var payload ArgsPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("bundle: decode args envelope: %w", err)
	}
	if payload.Format != argsPayloadFormat {
		return fmt.Errorf("bundle: unsupported args payload format %q", payload.Format)
	}
	if len(payload.Positional) == 0 {
		return fmt.Errorf("bundle: args payload has no positional value")
	}
	return json.Unmarshal(payload.Positional[0], out)
}
