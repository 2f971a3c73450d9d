package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Inbound is a payload received from a client, over the channel or via the
// HTTP send endpoint. Receiver is always required; Message is required for
// text kinds and FileURL for file and image kinds.
type Inbound struct {
	Receiver     string          `json:"receiver"`
	Kind         MessageKind     `json:"kind,omitempty"`
	Message      json.RawMessage `json:"message,omitempty"`
	FileURL      string          `json:"file_url,omitempty"`
	EncryptedKey string          `json:"encrypted_key,omitempty"`
	IV           string          `json:"iv,omitempty"`
}

// ParseInbound decodes and validates a raw client payload. A missing
// routing field yields ErrMalformedPayload; the zero kind defaults to text.
func ParseInbound(raw []byte) (Inbound, error) {
	var in Inbound
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&in); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if err := in.Validate(); err != nil {
		return Inbound{}, err
	}
	return in, nil
}

// Validate checks required routing fields and defaults the kind.
func (in *Inbound) Validate() error {
	if in.Receiver == "" {
		return fmt.Errorf("%w: missing receiver", ErrMalformedPayload)
	}
	if in.Kind == "" {
		in.Kind = KindText
	}
	if !in.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrMalformedPayload, in.Kind)
	}
	switch in.Kind {
	case KindText:
		if len(in.Message) == 0 {
			return fmt.Errorf("%w: missing message body", ErrMalformedPayload)
		}
	case KindImage, KindFile:
		if in.FileURL == "" {
			return fmt.Errorf("%w: missing file reference", ErrMalformedPayload)
		}
	}
	return nil
}

// NormalizeBody converts a text message body to its storable form: a JSON
// string becomes plain text, any other JSON value is re-serialized to a
// canonical compact encoding and marked structured. The decision is made
// by decoding, never by inspecting leading characters.
func NormalizeBody(raw json.RawMessage) (body string, structured bool, err error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false, fmt.Errorf("%w: invalid message body: %v", ErrMalformedPayload, err)
	}
	if s, ok := v.(string); ok {
		return s, false, nil
	}
	canonical, err := json.Marshal(v)
	if err != nil {
		return "", false, fmt.Errorf("%w: message body not serializable: %v", ErrMalformedPayload, err)
	}
	return string(canonical), true, nil
}
