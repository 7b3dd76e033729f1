package storage

import (
	"errors"
	"time"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrInvalidInput is returned when a write is missing its key.
	ErrInvalidInput = errors.New("storage: invalid input")
)

// BundleAnalysis summarises holder concentration for a token.
type BundleAnalysis struct {
	HolderCount     int     `json:"holderCount"`
	IsValid         bool    `json:"isValid"`
	TotalPercentage float64 `json:"totalPercentage"`
	AvgPercentage   float64 `json:"avgPercentage"`
}

// RiskAssessment is the scored risk verdict for a token.
type RiskAssessment struct {
	RiskScore  float64 `json:"riskScore"`
	IsHighRisk bool    `json:"isHighRisk"`
}

// TokenNarrative is the cached analysis for one token address.
type TokenNarrative struct {
	Address          string         `json:"address"`
	Name             string         `json:"name"`
	ImageDescription string         `json:"imageDescription"`
	ImageReferences  []string       `json:"imageReferences"`
	FullAnalysis     string         `json:"fullAnalysis"`
	ShortSummary     string         `json:"shortSummary"`
	BundleAnalysis   BundleAnalysis `json:"bundleAnalysis"`
	RiskAssessment   RiskAssessment `json:"riskAssessment"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// RecordQuery selects recent raw messages.
type RecordQuery struct {
	ChannelID string
	Limit     int
}
