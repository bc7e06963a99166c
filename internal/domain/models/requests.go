package models

import "strings"

// Requests for forecast HTTP endpoints and the Kafka request topic.

type PredictRequest struct {
	Symbol          string  `param:"symbol" json:"symbol" validate:"required,max=16"`
	Steps           int     `query:"steps" json:"steps" default:"10" validate:"gte=1,lte=60"`
	ConfidenceLevel float64 `query:"confidence_level" json:"confidenceLevel" default:"0.95" validate:"gt=0,lt=1"`
}

type SummaryRequest struct {
	Symbol string `param:"symbol" json:"symbol" validate:"required,max=16"`
}

type CompareRequest struct {
	Symbol string `param:"symbol" json:"symbol" validate:"required,max=16"`
	Steps  int    `query:"steps" json:"steps" default:"10" validate:"gte=1,lte=60"`
}

// NormalizeSymbol trims and upper-cases a ticker so every entry point keys
// caches and events the same way.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
