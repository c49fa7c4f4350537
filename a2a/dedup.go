// SPDX-License-Identifier: LGPL-3.0-or-later

package a2a

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// MessageID extracts the identifier the reliability layer dedups and
// acknowledges by. For a plaintext Task it is the task's own UUID; for
// an EncryptedTask, whose task id is sealed inside the ciphertext, it
// is a deterministic hash of the ciphertext so sender and receiver
// agree on the same ack topic without decrypting. Only Task and
// EncryptedTask envelopes carry a message id.
func MessageID(e Envelope) (string, error) {
	switch e.Type {
	case EnvelopeTask:
		if e.Task == nil {
			return "", fmt.Errorf("a2a: Task envelope missing task")
		}
		return e.Task.ID, nil
	case EnvelopeEncryptedTask:
		if e.EncryptedTask == nil {
			return "", fmt.Errorf("a2a: EncryptedTask envelope missing bundle")
		}
		sum := sha256.Sum256(append(append([]byte{}, e.EncryptedTask.Nonce...), e.EncryptedTask.Ciphertext...))
		return hex.EncodeToString(sum[:]), nil
	default:
		return "", fmt.Errorf("a2a: envelope type %q carries no message id", e.Type)
	}
}
