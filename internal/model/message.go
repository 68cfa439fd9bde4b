package model

// MessageEnvelope is the transient unit of work handed to the relay. It is
// created from one inbound platform event, consumed by a single relay
// invocation and never persisted.
type MessageEnvelope struct {
	SourceChannelID string   `json:"source_channel_id"`
	GuildID         string   `json:"guild_id"`
	AuthorID        string   `json:"author_id"`
	AuthorName      string   `json:"author_name"`
	RawText         string   `json:"raw_text"`
	Attachments     []string `json:"attachments"`
	OriginMessageID string   `json:"origin_message_id"`

	// Relayed marks content that this system delivered itself. Such
	// envelopes are dropped on ingest so overlapping groups cannot form
	// relay cycles.
	Relayed bool `json:"relayed"`
}

// ModerationDecision is the outcome of one classifier pass over an envelope.
type ModerationDecision struct {
	Toxic      bool
	Categories []string
	Scores     map[string]float64
	// Skipped is true when the classifier was unavailable and the
	// fail-open policy let the message through unmoderated.
	Skipped bool
}

// TopCategory returns the highest-scoring flagged category, empty when the
// decision flagged nothing.
func (d *ModerationDecision) TopCategory() string {
	top, best := "", -1.0
	for _, c := range d.Categories {
		if s := d.Scores[c]; s > best {
			top, best = c, s
		}
	}
	return top
}

// DeliveryErrorKind classifies a failed peer delivery.
type DeliveryErrorKind string

const (
	DeliveryDenied      DeliveryErrorKind = "denied"
	DeliveryRateLimited DeliveryErrorKind = "rate_limited"
	DeliveryUnavailable DeliveryErrorKind = "unavailable"
)

// RelayResult reports the fate of one relay invocation. A moderation block
// yields empty Delivered and empty Failed with Blocked set; suppression is
// policy, not a delivery failure.
type RelayResult struct {
	Delivered []string
	Failed    map[string]DeliveryErrorKind
	Blocked   bool
}
