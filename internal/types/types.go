package types

import "github.com/DoyleJ11/cardclash-backend/pkg/types"

type ClientMessage struct {
	Type string `json:"type"` // "ping"
}

type ServerMessage struct {
	Type  string       `json:"type"` // "event" | "pong" | "error"
	Event *types.Event `json:"event,omitempty"`
	Error string       `json:"error,omitempty"`
}
