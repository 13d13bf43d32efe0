package models

import "time"

type Direction string

const (
	// DirectionInbound is a message written by the contact.
	DirectionInbound Direction = "inbound"
	// DirectionOutbound confirms a message the agent sent from another device.
	DirectionOutbound Direction = "outbound"
)

// ChannelEvent is a text message observed on the channel, already stripped of
// transport details.
type ChannelEvent struct {
	Direction Direction
	Phone     string
	Body      string
	MessageID string
	Timestamp time.Time
}
