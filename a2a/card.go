// SPDX-License-Identifier: LGPL-3.0-or-later

package a2a

import "github.com/waku-a2a/agent/crypto"

// AgentCard is an agent's self-described identity and discovery record.
// public_key is treated by receivers as the sender's canonical identity
// regardless of the transport path it arrived on.
type AgentCard struct {
	Name         string              `json:"name"`
	Description  string              `json:"description"`
	Version      string              `json:"version"`
	Capabilities []string            `json:"capabilities"`
	PublicKey    string              `json:"public_key"`
	IntroBundle  *crypto.IntroBundle `json:"intro_bundle,omitempty"`
}

// SupportsEncryption reports whether this card advertises an intro
// bundle an encrypted sender could use.
func (c *AgentCard) SupportsEncryption() bool {
	return c != nil && c.IntroBundle != nil && len(c.IntroBundle.X25519PublicKey) > 0
}
