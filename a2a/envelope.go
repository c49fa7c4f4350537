// SPDX-License-Identifier: LGPL-3.0-or-later

package a2a

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// EnvelopeType discriminates the tagged union of A2AEnvelope.
type EnvelopeType string

const (
	EnvelopeAgentCard     EnvelopeType = "AgentCard"
	EnvelopeTask          EnvelopeType = "Task"
	EnvelopeEncryptedTask EnvelopeType = "EncryptedTask"
	EnvelopeAck           EnvelopeType = "Ack"
)

// EncryptedTaskBundle is the ciphertext envelope wrapping a Task that
// was sealed under a derived session key. associated_data is the
// recipient pubkey plus a protocol version string, bound into the AEAD
// tag so ciphertexts cannot be replayed against a different recipient.
type EncryptedTaskBundle struct {
	SenderX25519Pub []byte
	Nonce           []byte
	Ciphertext      []byte
	AssociatedData  []byte
}

// AckPayload is the one-shot acknowledgement published on a message's
// ack topic by the reliability layer after the application has
// successfully processed the corresponding task.
type AckPayload struct {
	MessageID string `json:"message_id"`
}

// Envelope is the wire-level tagged variant published on any content
// topic. Exactly one of the typed fields is populated, matching Type.
type Envelope struct {
	Type          EnvelopeType
	AgentCard     *AgentCard
	Task          *Task
	EncryptedTask *EncryptedTaskBundle
	Ack           *AckPayload
}

type encryptedTaskWire struct {
	SenderX25519Pub string `json:"sender_x25519_pub"`
	Nonce           string `json:"nonce"`
	Ciphertext      string `json:"ciphertext"`
	AssociatedData  string `json:"associated_data"`
}

type envelopeWire struct {
	Type          EnvelopeType       `json:"type"`
	AgentCard     *AgentCard         `json:"card,omitempty"`
	Task          *Task              `json:"task,omitempty"`
	EncryptedTask *encryptedTaskWire `json:"encrypted_task,omitempty"`
	Ack           *AckPayload        `json:"ack,omitempty"`
}

func b64(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }

func unb64(s string) ([]byte, error) { return base64.RawURLEncoding.DecodeString(s) }

// MarshalJSON emits the stable wire form documented in spec §6.
func (e Envelope) MarshalJSON() ([]byte, error) {
	wire := envelopeWire{Type: e.Type}
	switch e.Type {
	case EnvelopeAgentCard:
		if e.AgentCard == nil {
			return nil, fmt.Errorf("a2a: AgentCard envelope missing card")
		}
		wire.AgentCard = e.AgentCard
	case EnvelopeTask:
		if e.Task == nil {
			return nil, fmt.Errorf("a2a: Task envelope missing task")
		}
		wire.Task = e.Task
	case EnvelopeEncryptedTask:
		if e.EncryptedTask == nil {
			return nil, fmt.Errorf("a2a: EncryptedTask envelope missing bundle")
		}
		b := e.EncryptedTask
		wire.EncryptedTask = &encryptedTaskWire{
			SenderX25519Pub: b64(b.SenderX25519Pub),
			Nonce:           b64(b.Nonce),
			Ciphertext:      b64(b.Ciphertext),
			AssociatedData:  b64(b.AssociatedData),
		}
	case EnvelopeAck:
		if e.Ack == nil {
			return nil, fmt.Errorf("a2a: Ack envelope missing payload")
		}
		wire.Ack = e.Ack
	default:
		return nil, fmt.Errorf("a2a: unknown envelope type %q", e.Type)
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes the wire form. An unrecognized Type yields
// ErrUnknownEnvelope; malformed JSON or base64 yields ErrMalformed.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var wire envelopeWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("%w: envelope: %v", ErrMalformed, err)
	}

	switch wire.Type {
	case EnvelopeAgentCard:
		if wire.AgentCard == nil {
			return fmt.Errorf("%w: AgentCard envelope missing card", ErrMalformed)
		}
		e.Type = EnvelopeAgentCard
		e.AgentCard = wire.AgentCard
	case EnvelopeTask:
		if wire.Task == nil {
			return fmt.Errorf("%w: Task envelope missing task", ErrMalformed)
		}
		e.Type = EnvelopeTask
		e.Task = wire.Task
	case EnvelopeEncryptedTask:
		if wire.EncryptedTask == nil {
			return fmt.Errorf("%w: EncryptedTask envelope missing bundle", ErrMalformed)
		}
		sender, err := unb64(wire.EncryptedTask.SenderX25519Pub)
		if err != nil {
			return fmt.Errorf("%w: sender_x25519_pub: %v", ErrMalformed, err)
		}
		nonce, err := unb64(wire.EncryptedTask.Nonce)
		if err != nil {
			return fmt.Errorf("%w: nonce: %v", ErrMalformed, err)
		}
		ciphertext, err := unb64(wire.EncryptedTask.Ciphertext)
		if err != nil {
			return fmt.Errorf("%w: ciphertext: %v", ErrMalformed, err)
		}
		ad, err := unb64(wire.EncryptedTask.AssociatedData)
		if err != nil {
			return fmt.Errorf("%w: associated_data: %v", ErrMalformed, err)
		}
		e.Type = EnvelopeEncryptedTask
		e.EncryptedTask = &EncryptedTaskBundle{
			SenderX25519Pub: sender,
			Nonce:           nonce,
			Ciphertext:      ciphertext,
			AssociatedData:  ad,
		}
	case EnvelopeAck:
		if wire.Ack == nil {
			return fmt.Errorf("%w: Ack envelope missing payload", ErrMalformed)
		}
		e.Type = EnvelopeAck
		e.Ack = wire.Ack
	default:
		return fmt.Errorf("%w: tag %q", ErrUnknownEnvelope, wire.Type)
	}
	return nil
}

// Encode serializes the envelope to its canonical JSON wire form.
func Encode(e Envelope) ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses a wire payload into an Envelope.
func Decode(payload []byte) (Envelope, error) {
	// json.Unmarshal rejects syntactically invalid input before
	// UnmarshalJSON runs, so that case is mapped to ErrMalformed here.
	if !json.Valid(payload) {
		return Envelope{}, fmt.Errorf("%w: envelope: invalid JSON", ErrMalformed)
	}
	var e Envelope
	if err := json.Unmarshal(payload, &e); err != nil {
		return Envelope{}, err
	}
	return e, nil
}
