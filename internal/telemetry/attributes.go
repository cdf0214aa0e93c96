// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys used on session spans.
const (
	SessionIDKey  = "orkestra.session.id"
	SessionCode   = "orkestra.session.code"
	SessionPort   = "orkestra.session.port"
	MaxPlayersKey = "orkestra.session.max_players"
	PlayerIDKey   = "orkestra.player.id"
	CreatorIDKey  = "orkestra.creator.id"
	WorkerPIDKey  = "orkestra.worker.pid"
)

// SessionAttributes describes a session on a span. Empty values are skipped.
func SessionAttributes(id, code string, port uint16) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if id != "" {
		attrs = append(attrs, attribute.String(SessionIDKey, id))
	}
	if code != "" {
		attrs = append(attrs, attribute.String(SessionCode, code))
	}
	if port != 0 {
		attrs = append(attrs, attribute.Int(SessionPort, int(port)))
	}
	return attrs
}
