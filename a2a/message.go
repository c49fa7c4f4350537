// SPDX-License-Identifier: LGPL-3.0-or-later

package a2a

import (
	"encoding/json"
	"fmt"
)

// Role distinguishes which side of a conversation produced a Message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Part is a tagged variant of Message content. v1 defines a single
// variant, TextPart. The format is extensible: a receiver that does not
// recognize a variant's tag preserves it as an UnknownPart instead of
// failing to parse the whole message.
type Part interface {
	partType() string
}

// TextPart is the only Part variant v1 defines.
type TextPart struct {
	Text string
}

func (TextPart) partType() string { return "text" }

// UnknownPart preserves a Part variant this implementation does not
// recognize, so forward compatibility holds: messages round-trip even
// when a future sender adds new Part types this receiver predates.
type UnknownPart struct {
	Type string
	Raw  json.RawMessage
}

func (p UnknownPart) partType() string { return p.Type }

// Message is a request or response payload: a role and an ordered
// sequence of Parts.
type Message struct {
	Role  Role
	Parts []Part
}

type partWire struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type messageWire struct {
	Role  Role              `json:"role"`
	Parts []json.RawMessage `json:"parts"`
}

// MarshalJSON emits the stable wire form: {"type":"text","text":"..."}
// per part, tag names fixed bit-for-bit.
func (m Message) MarshalJSON() ([]byte, error) {
	parts := make([]json.RawMessage, 0, len(m.Parts))
	for _, p := range m.Parts {
		switch v := p.(type) {
		case TextPart:
			raw, err := json.Marshal(partWire{Type: "text", Text: v.Text})
			if err != nil {
				return nil, err
			}
			parts = append(parts, raw)
		case UnknownPart:
			parts = append(parts, v.Raw)
		default:
			return nil, fmt.Errorf("a2a: unhandled part type %T", p)
		}
	}
	return json.Marshal(messageWire{Role: m.Role, Parts: parts})
}

// UnmarshalJSON parses parts leniently: unknown variant tags are kept
// verbatim as UnknownPart rather than rejected.
func (m *Message) UnmarshalJSON(data []byte) error {
	var wire messageWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("%w: message: %v", ErrMalformed, err)
	}
	if wire.Role != RoleUser && wire.Role != RoleAgent {
		return fmt.Errorf("%w: unknown message role %q", ErrInvariant, wire.Role)
	}

	parts := make([]Part, 0, len(wire.Parts))
	for _, raw := range wire.Parts {
		var tag struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &tag); err != nil {
			return fmt.Errorf("%w: part: %v", ErrMalformed, err)
		}
		if tag.Type == "text" {
			var pw partWire
			if err := json.Unmarshal(raw, &pw); err != nil {
				return fmt.Errorf("%w: text part: %v", ErrMalformed, err)
			}
			parts = append(parts, TextPart{Text: pw.Text})
			continue
		}
		parts = append(parts, UnknownPart{Type: tag.Type, Raw: append(json.RawMessage{}, raw...)})
	}

	m.Role = wire.Role
	m.Parts = parts
	return nil
}
