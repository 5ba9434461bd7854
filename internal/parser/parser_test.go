package parser

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gikundiro/momo-gateway/internal/model"
)

func newSms(text string) *model.RawMessage {
	return &model.RawMessage{
		ID:         uuid.New(),
		Text:       text,
		FromMsisdn: "+250788123456",
		ToMsisdn:   "+250788000111",
		ReceivedAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		Status:     model.IngestStatusReceived,
	}
}

func TestParseHeuristic(t *testing.T) {
	t.Run("standard momo confirmation", func(t *testing.T) {
		sms := newSms("You have received 5,000 RWF from John. Ref: MP240314.1234")
		receipt := ParseHeuristic(sms)
		require.NotNil(t, receipt)
		assert.Equal(t, int64(5000), receipt.Amount)
		assert.Equal(t, "RWF", receipt.Currency)
		assert.Equal(t, "MP240314", receipt.Ref)
		assert.Equal(t, HeuristicVersion, receipt.ParserVersion)
		assert.InDelta(t, 0.45, receipt.Confidence, 0.001)
		assert.Equal(t, sms.ID, receipt.SmsID)
		assert.Equal(t, sms.ReceivedAt, receipt.Timestamp)
	})

	t.Run("mtn momo received notification", func(t *testing.T) {
		receipt := ParseHeuristic(newSms("MTN MoMo: You have received 1,000 RWF Ref: ABC123"))
		require.NotNil(t, receipt)
		assert.Equal(t, int64(1000), receipt.Amount)
		assert.Equal(t, "RWF", receipt.Currency)
		assert.Equal(t, "ABC123", receipt.Ref)
		assert.InDelta(t, 0.45, receipt.Confidence, 0.001)
	})

	t.Run("FRW currency variant keeps matched token", func(t *testing.T) {
		receipt := ParseHeuristic(newSms("Payment of 12000 FRW received. Reference TKT-88"))
		require.NotNil(t, receipt)
		assert.Equal(t, int64(12000), receipt.Amount)
		assert.Equal(t, "FRW", receipt.Currency)
		assert.Equal(t, "TKT-88", receipt.Ref)
	})

	t.Run("lowercase currency token is uppercased", func(t *testing.T) {
		receipt := ParseHeuristic(newSms("Received 800 frw from agent. Ref: X1"))
		require.NotNil(t, receipt)
		assert.Equal(t, "FRW", receipt.Currency)
	})

	t.Run("missing reference uses sentinel", func(t *testing.T) {
		receipt := ParseHeuristic(newSms("Received 900 RF from agent"))
		require.NotNil(t, receipt)
		assert.Equal(t, model.RefUnknown, receipt.Ref)
	})

	t.Run("payer mask keeps trailing digits", func(t *testing.T) {
		receipt := ParseHeuristic(newSms("Received 900 RWF"))
		require.NotNil(t, receipt)
		assert.Equal(t, "***456", receipt.PayerMask)
	})

	t.Run("non payment returns nil", func(t *testing.T) {
		assert.Nil(t, ParseHeuristic(newSms("Your data bundle expires tomorrow")))
	})

	t.Run("zero amount returns nil", func(t *testing.T) {
		assert.Nil(t, ParseHeuristic(newSms("Balance: 0 RWF")))
	})
}

func TestRedact(t *testing.T) {
	t.Run("masks phone numbers keeping last three digits", func(t *testing.T) {
		out := Redact("TxId 0788123456 sent you money")
		assert.Equal(t, "TxId ***456 sent you money", out)
	})

	t.Run("masks runs with separators", func(t *testing.T) {
		out := Redact("from +250 788 123 456 at noon")
		assert.NotContains(t, out, "788")
		assert.Contains(t, out, "***456")
	})

	t.Run("leaves short amounts alone", func(t *testing.T) {
		assert.Equal(t, "Received 5000 RWF", Redact("Received 5000 RWF"))
	})
}

type stubExtractor struct {
	receipt *model.ParsedReceipt
	err     error
	called  bool
}

func (s *stubExtractor) Extract(sms *model.RawMessage) (*model.ParsedReceipt, error) {
	s.called = true
	return s.receipt, s.err
}

func (s *stubExtractor) Version() string { return "openai:test" }

func TestParserFallback(t *testing.T) {
	sms := newSms("Received 5,000 RWF Ref: ABC-1")

	t.Run("model result wins when extraction succeeds", func(t *testing.T) {
		want := &model.ParsedReceipt{SmsID: sms.ID, Amount: 5000, Confidence: 0.12, ParserVersion: "openai:test"}
		p := New(&stubExtractor{receipt: want})
		got, err := p.Parse(sms)
		require.NoError(t, err)
		assert.Same(t, want, got)
	})

	t.Run("low confidence is accepted not retried", func(t *testing.T) {
		want := &model.ParsedReceipt{SmsID: sms.ID, Amount: 5000, Confidence: 0.05, ParserVersion: "openai:test"}
		p := New(&stubExtractor{receipt: want})
		got, err := p.Parse(sms)
		require.NoError(t, err)
		assert.Equal(t, "openai:test", got.ParserVersion)
	})

	t.Run("model says not a payment, heuristic is not consulted", func(t *testing.T) {
		p := New(&stubExtractor{})
		got, err := p.Parse(sms)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("extraction failure falls back to heuristic", func(t *testing.T) {
		p := New(&stubExtractor{err: errors.Wrap(ErrExtractionFailed, "timeout")})
		got, err := p.Parse(sms)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, HeuristicVersion, got.ParserVersion)
		assert.Equal(t, int64(5000), got.Amount)
	})

	t.Run("unexpected error propagates", func(t *testing.T) {
		p := New(&stubExtractor{err: errors.New("boom")})
		got, err := p.Parse(sms)
		require.Error(t, err)
		assert.Nil(t, got)
	})

	t.Run("nil extractor goes straight to heuristic", func(t *testing.T) {
		p := New(nil)
		got, err := p.Parse(sms)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, HeuristicVersion, got.ParserVersion)
	})
}
