/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package registry provides an in-memory implementation of
// streamhttp.Registry: a queue/item/player directory. The real catalog and
// player-queue controller live outside this core; this implementation
// serves tests and standalone operation via cmd/streamcore.
package registry

import (
	"fmt"
	"sync"

	"github.com/ripplehome/streamcore/internal/audio"
	"github.com/ripplehome/streamcore/internal/streamhttp"
)

// Registry is a concurrency-safe in-memory queue/item/player directory.
type Registry struct {
	mu         sync.RWMutex
	queues     map[string]*audio.PlayerQueue
	queueOwner map[string]string // queue_id -> player_id
	players    map[string]audio.Player
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{
		queues:     make(map[string]*audio.PlayerQueue),
		queueOwner: make(map[string]string),
		players:    make(map[string]audio.Player),
	}
}

// AddPlayer registers a player.
func (r *Registry) AddPlayer(p audio.Player) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.players[p.ID] = p
}

// AddQueue registers a queue and the player it belongs to.
func (r *Registry) AddQueue(ownerPlayerID string, queue *audio.PlayerQueue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queues[queue.QueueID] = queue
	r.queueOwner[queue.QueueID] = ownerPlayerID
}

// Queue implements streamhttp.Registry.
func (r *Registry) Queue(queueID string) (*audio.PlayerQueue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.queues[queueID]
	if !ok {
		return nil, fmt.Errorf("unknown queue %q", queueID)
	}
	return q, nil
}

// Item implements streamhttp.Registry by scanning the queue's current item
// list for a matching id. Queues in this core are small (a handful of
// tracks), so a linear scan is adequate.
func (r *Registry) Item(queueID, itemID string) (*audio.QueueItem, error) {
	q, err := r.Queue(queueID)
	if err != nil {
		return nil, err
	}
	for _, item := range q.Items() {
		if item.ID == itemID {
			return item, nil
		}
	}
	return nil, fmt.Errorf("unknown item %q in queue %q", itemID, queueID)
}

// PlayerForQueue implements streamhttp.Registry.
func (r *Registry) PlayerForQueue(queueID string) (audio.Player, error) {
	r.mu.RLock()
	playerID, ok := r.queueOwner[queueID]
	r.mu.RUnlock()
	if !ok {
		return audio.Player{}, fmt.Errorf("queue %q has no owning player", queueID)
	}
	return r.Player(playerID)
}

// Player implements streamhttp.Registry.
func (r *Registry) Player(playerID string) (audio.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[playerID]
	if !ok {
		return audio.Player{}, fmt.Errorf("unknown player %q", playerID)
	}
	return p, nil
}

var _ streamhttp.Registry = (*Registry)(nil)
