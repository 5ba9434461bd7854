package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gikundiro/momo-gateway/internal/model"
)

const (
	HeuristicVersion    = "heuristic:v1"
	heuristicConfidence = 0.45
	defaultCurrency     = "RWF"
)

var (
	amountRe = regexp.MustCompile(`(?i)([\d,.]+)\s*(RWF|FRW|RF)`)
	refRe    = regexp.MustCompile(`(?i)Ref(?:erence)?[:\s]+([A-Z0-9-]+)`)
)

// ParseHeuristic extracts a receipt from mobile-money confirmation text
// using pattern matching alone. It returns nil when no amount is found,
// meaning the message does not look like a payment at all.
func ParseHeuristic(sms *model.RawMessage) *model.ParsedReceipt {
	m := amountRe.FindStringSubmatch(sms.Text)
	if m == nil {
		return nil
	}

	raw := strings.NewReplacer(",", "", ".", "").Replace(m[1])
	amount, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || amount <= 0 {
		return nil
	}

	currency := strings.ToUpper(m[2])
	if currency == "" {
		currency = defaultCurrency
	}

	ref := model.RefUnknown
	if rm := refRe.FindStringSubmatch(sms.Text); rm != nil {
		ref = strings.ToUpper(rm[1])
	}

	ts := sms.ReceivedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	return &model.ParsedReceipt{
		SmsID:         sms.ID,
		Amount:        amount,
		Currency:      currency,
		PayerMask:     MaskMsisdn(sms.FromMsisdn),
		Ref:           ref,
		Timestamp:     ts,
		Confidence:    heuristicConfidence,
		ParserVersion: HeuristicVersion,
	}
}
