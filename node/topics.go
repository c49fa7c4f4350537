// SPDX-License-Identifier: LGPL-3.0-or-later

package node

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is the "waku-a2a" in every topic string. An
// implementation may vary it via Config, but the structure after it is
// invariant.
const DefaultTopicPrefix = "/waku-a2a"

const topicVersion = "1"

func discoveryTopic(prefix string) string {
	return fmt.Sprintf("%s/%s/discovery/proto", prefix, topicVersion)
}

// inboxTopic is the task inbox topic for the agent identified by
// pubkeyHex. The pubkey is always lower-cased, matching the canonical
// hex form identity.Identity emits.
func inboxTopic(prefix, pubkeyHex string) string {
	return fmt.Sprintf("%s/%s/task/%s/proto", prefix, topicVersion, strings.ToLower(pubkeyHex))
}

// ackTopicPrefix is the <prefix> the reliability layer expands into
// "<prefix>/ack/{message_id}/proto".
func ackTopicPrefix(prefix string) string {
	return fmt.Sprintf("%s/%s", prefix, topicVersion)
}
