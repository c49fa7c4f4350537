// SPDX-License-Identifier: LGPL-3.0-or-later

package node

import (
	"container/list"
	"sync"
)

// MinSessionCacheSize is the smallest capacity a session cache may be
// constructed with, per the bounded-LRU requirement.
const MinSessionCacheSize = 128

// sessionCache is a bounded LRU of peer_pubkey -> derived session key.
// Eviction is always safe: the derivation that produced the evicted
// entry is deterministic and can simply be redone on next use.
type sessionCache struct {
	capacity int

	mu    sync.Mutex
	order *list.List
	items map[string]*list.Element
}

type sessionCacheEntry struct {
	peerPubkeyHex string
	key           []byte
}

func newSessionCache(capacity int) *sessionCache {
	if capacity < MinSessionCacheSize {
		capacity = MinSessionCacheSize
	}
	return &sessionCache{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

func (c *sessionCache) get(peerPubkeyHex string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[peerPubkeyHex]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*sessionCacheEntry).key, true
}

func (c *sessionCache) put(peerPubkeyHex string, key []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[peerPubkeyHex]; ok {
		c.order.MoveToFront(el)
		el.Value.(*sessionCacheEntry).key = key
		return
	}

	el := c.order.PushFront(&sessionCacheEntry{peerPubkeyHex: peerPubkeyHex, key: key})
	c.items[peerPubkeyHex] = el

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*sessionCacheEntry).peerPubkeyHex)
		}
	}
}
