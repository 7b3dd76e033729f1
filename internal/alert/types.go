package alert

import (
	"errors"
	"time"
)

// ErrMalformedInput marks payloads that cannot be decoded into a message.
var ErrMalformedInput = errors.New("alert: malformed input")

// Attachment is a file attached to an alert message.
type Attachment struct {
	URL         string `json:"url"`
	ContentType string `json:"contentType,omitempty"`
}

// EmbedField is a name/value pair rendered inside an embed.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Embed is a rich preview attached to an alert message.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
}

// RawAlertMessage is an accepted alert exactly as it was received.
type RawAlertMessage struct {
	ID          string       `json:"id"`
	Author      string       `json:"username"`
	Content     string       `json:"content"`
	ChannelID   string       `json:"channelId,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
	Attachments []Attachment `json:"attachments"`
	Embeds      []Embed      `json:"embeds"`
}

// WhaleActivity is the canonical view of a single whale buy.
type WhaleActivity struct {
	ID           string    `json:"id"`
	WhaleLabel   string    `json:"whaleLabel"`
	BuyAmountUSD float64   `json:"buyAmountUsd"`
	TokenSymbol  string    `json:"tokenSymbol"`
	MarketCapUSD float64   `json:"marketCapUsd"`
	SourceURL    string    `json:"sourceUrl,omitempty"`
	Reporter     string    `json:"reporter,omitempty"`
	ObservedAt   time.Time `json:"observedAt"`
}
