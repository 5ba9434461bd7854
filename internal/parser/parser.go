// Package parser turns raw mobile-money SMS text into structured
// receipts. Extraction goes through the model first and falls back to
// pattern matching when the model is unavailable or fails, never when
// it merely reports low confidence.
package parser

import (
	"time"

	"github.com/pkg/errors"

	"github.com/gikundiro/momo-gateway/internal/model"
	"github.com/gikundiro/momo-gateway/pkg/logger"
	"github.com/gikundiro/momo-gateway/pkg/prom"
)

// Extractor is the model-backed extraction stage.
type Extractor interface {
	Extract(sms *model.RawMessage) (*model.ParsedReceipt, error)
	Version() string
}

type Parser struct {
	extractor Extractor
}

// New builds a parser. A nil extractor skips the model stage entirely
// and parses with the heuristic alone.
func New(extractor Extractor) *Parser {
	return &Parser{extractor: extractor}
}

// Parse extracts a receipt from an SMS. A nil receipt with a nil error
// means the message is not a payment confirmation, which is a normal
// outcome rather than a failure.
func (p *Parser) Parse(sms *model.RawMessage) (*model.ParsedReceipt, error) {
	start := time.Now()

	if p.extractor != nil {
		receipt, err := p.extractor.Extract(sms)
		if err == nil {
			observe(p.extractor.Version(), start, receipt)
			return receipt, nil
		}
		if !errors.Is(err, ErrExtractionFailed) {
			return nil, err
		}
		logger.Warn("model extraction failed, falling back to heuristic",
			"sms_id", sms.ID, "error", err.Error())
	}

	receipt := ParseHeuristic(sms)
	observe(HeuristicVersion, start, receipt)
	return receipt, nil
}

func observe(version string, start time.Time, receipt *model.ParsedReceipt) {
	outcome := "parsed"
	if receipt == nil {
		outcome = "not_payment"
	}
	prom.IncParseOutcome(outcome, version)
	prom.ObserveParseDuration(version, time.Since(start).Seconds())
}
