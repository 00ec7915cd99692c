/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package streamhttp

import (
	"fmt"
	"net/http"

	"github.com/ripplehome/streamcore/internal/audio"
)

// dlnaContentFeatures is the fixed DLNA content-features string sent on
// every response: no seek/transcode flags, byte-streaming transfer mode.
const dlnaContentFeatures = "DLNA.ORG_OP=00;DLNA.ORG_CI=0;DLNA.ORG_FLAGS=0d500000000000000000000000000000"

// setCommonHeaders installs the header set every streaming response
// shares, given the requested fmt suffix (the raw URL token, used verbatim
// for Content-Type).
func setCommonHeaders(w http.ResponseWriter, fmtStr string) {
	h := w.Header()
	h.Set("Content-Type", fmt.Sprintf("audio/%s", fmtStr))
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "close")
	h.Set("icy-name", "Music Assistant")
	h.Set("icy-pub", "0")
	h.Set("transferMode.dlna.org", "Streaming")
	h.Set("contentFeatures.dlna.org", dlnaContentFeatures)
}

// icyMetaIntFor returns the ICY metadata interval: 65536 bytes for
// lossless output, 8192 otherwise.
func icyMetaIntFor(format audio.AudioFormat) int {
	if format.ContentType.IsLossless() {
		return 65536
	}
	return 8192
}
