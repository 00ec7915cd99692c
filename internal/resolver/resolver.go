/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package resolver mints the deterministic stream URLs the rest of the
// system hands to players: binding queue, job, player, item, and format
// into one of the three streaming route shapes.
package resolver

import (
	"fmt"
	"net"
	"net/url"
)

// Resolver builds stream URLs against a configured publish host:port.
type Resolver struct {
	baseURL string
}

// New constructs a Resolver from an already-resolved publish IP and port.
func New(publishIP string, publishPort int) *Resolver {
	return &Resolver{baseURL: fmt.Sprintf("http://%s:%d", publishIP, publishPort)}
}

// SingleTrackURL builds the single-track endpoint URL:
// /{queue_id}/single/{queue_item_id}.{fmt}
func (r *Resolver) SingleTrackURL(queueID, queueItemID, fmtStr string, seekPositionS int, fadeIn bool) string {
	u := fmt.Sprintf("%s/%s/single/%s.%s", r.baseURL, pathEscape(queueID), pathEscape(queueItemID), pathEscape(fmtStr))
	return appendQuery(u, seekPositionS, fadeIn)
}

// FlowURL builds the flow endpoint URL:
// /{queue_id}/flow/{queue_item_id}.{fmt}
func (r *Resolver) FlowURL(queueID, queueItemID, fmtStr string, seekPositionS int, fadeIn bool) string {
	u := fmt.Sprintf("%s/%s/flow/%s.%s", r.baseURL, pathEscape(queueID), pathEscape(queueItemID), pathEscape(fmtStr))
	return appendQuery(u, seekPositionS, fadeIn)
}

// MultiClientURL builds the multi-subscriber endpoint URL for one
// requesting player:
// /{queue_id}/multi/{job_id}/{player_id}/{queue_item_id}.{fmt}
func (r *Resolver) MultiClientURL(queueID, jobID, playerID, queueItemID, fmtStr string) string {
	return fmt.Sprintf("%s/%s/multi/%s/%s/%s.%s",
		r.baseURL,
		pathEscape(queueID),
		pathEscape(jobID),
		pathEscape(playerID),
		pathEscape(queueItemID),
		pathEscape(fmtStr),
	)
}

func pathEscape(s string) string {
	return url.PathEscape(s)
}

func appendQuery(rawURL string, seekPositionS int, fadeIn bool) string {
	if seekPositionS == 0 && !fadeIn {
		return rawURL
	}
	q := url.Values{}
	if seekPositionS != 0 {
		q.Set("seek_position", fmt.Sprintf("%d", seekPositionS))
	}
	if fadeIn {
		q.Set("fade_in", "1")
	}
	return rawURL + "?" + q.Encode()
}

// DetectPublishIP returns the primary outbound interface's address, used
// when Config.PublishIP is left blank (auto-detect). It dials a UDP socket
// to a well-known address without sending any packet, the standard Go
// idiom for discovering the local routable address.
func DetectPublishIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", fmt.Errorf("resolver: detect publish ip: %w", err)
	}
	defer conn.Close()

	localAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", fmt.Errorf("resolver: unexpected local addr type %T", conn.LocalAddr())
	}
	return localAddr.IP.String(), nil
}
