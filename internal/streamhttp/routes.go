/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package streamhttp

import (
	"github.com/go-chi/chi/v5"
)

// Mount registers the streaming endpoints on r: single-track,
// flow, and multi-subscriber playback, plus the control-layer job creation
// endpoint.
func (c *Controller) Mount(r chi.Router) {
	r.Post("/{queueID}/multi", c.HandleCreateJob)

	r.Get("/{queueID}/single/{itemID}.{fmt}", c.HandleSingle)
	r.Head("/{queueID}/single/{itemID}.{fmt}", c.HandleSingle)

	r.Get("/{queueID}/flow/{itemID}.{fmt}", c.HandleFlow)
	r.Head("/{queueID}/flow/{itemID}.{fmt}", c.HandleFlow)

	r.Get("/{queueID}/multi/{jobID}/{playerID}/{itemID}.{fmt}", c.HandleMulti)
	r.Head("/{queueID}/multi/{jobID}/{playerID}/{itemID}.{fmt}", c.HandleMulti)
}
