package parser

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"

	"github.com/gikundiro/momo-gateway/internal/model"
	"github.com/gikundiro/momo-gateway/pkg/logger"
)

// ErrExtractionFailed marks any model-side failure: missing key, timeout,
// HTTP error, or output that does not decode into a receipt. Callers fall
// back to the heuristic only on this class of error.
var ErrExtractionFailed = errors.New("model extraction failed")

type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// OpenAIClient extracts structured receipts from redacted SMS text
// through the chat completions API with a strict JSON schema.
type OpenAIClient struct {
	config OpenAIConfig
	client *fasthttp.Client
}

func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	return &OpenAIClient{
		config: cfg,
		client: &fasthttp.Client{
			MaxConnsPerHost:     64,
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
		},
	}
}

func (c *OpenAIClient) Version() string {
	return "openai:" + c.config.Model
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type       string          `json:"type"`
	JSONSchema json.RawMessage `json:"json_schema"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type extractedReceipt struct {
	Amount     int64   `json:"amount"`
	Currency   string  `json:"currency"`
	PayerMask  string  `json:"payer_mask"`
	Ref        string  `json:"ref"`
	Timestamp  string  `json:"timestamp"`
	Confidence float64 `json:"confidence"`
}

var receiptSchema = json.RawMessage(`{
  "name": "momo_receipt",
  "strict": true,
  "schema": {
    "type": "object",
    "properties": {
      "amount": {"type": "integer", "description": "amount in minor units, 0 if not a payment"},
      "currency": {"type": "string"},
      "payer_mask": {"type": "string"},
      "ref": {"type": "string"},
      "timestamp": {"type": "string"},
      "confidence": {"type": "number"}
    },
    "required": ["amount", "currency", "payer_mask", "ref", "timestamp", "confidence"],
    "additionalProperties": false
  }
}`)

const extractionPrompt = `Extract the mobile money payment from the SMS below.
Respond with amount in minor units (RWF has no decimals), the transaction
reference, the payer mask as given, an ISO-8601 timestamp, and your
confidence between 0 and 1. If the message is not a payment confirmation,
set amount to 0.`

// Extract sends the redacted text to the model and decodes a receipt.
// A nil receipt with a nil error means the model decided the message is
// not a payment.
func (c *OpenAIClient) Extract(sms *model.RawMessage) (*model.ParsedReceipt, error) {
	if c.config.APIKey == "" {
		return nil, errors.Wrap(ErrExtractionFailed, "api key not configured")
	}

	redacted := Redact(sms.Text)
	body, err := json.Marshal(chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: extractionPrompt},
			{Role: "user", Content: redacted},
		},
		ResponseFormat: &responseFormat{Type: "json_schema", JSONSchema: receiptSchema},
	})
	if err != nil {
		return nil, errors.Wrap(ErrExtractionFailed, err.Error())
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.config.BaseURL + "/v1/chat/completions")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.SetBody(body)

	if err := c.client.DoTimeout(req, resp, c.config.Timeout); err != nil {
		return nil, errors.Wrapf(ErrExtractionFailed, "request failed: %v", err)
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, errors.Wrapf(ErrExtractionFailed, "unexpected status code: %d", resp.StatusCode())
	}

	var chat chatResponse
	if err := json.Unmarshal(resp.Body(), &chat); err != nil || len(chat.Choices) == 0 {
		return nil, errors.Wrap(ErrExtractionFailed, "undecodable response")
	}

	var out extractedReceipt
	if err := json.Unmarshal([]byte(chat.Choices[0].Message.Content), &out); err != nil {
		return nil, errors.Wrap(ErrExtractionFailed, "undecodable model output")
	}

	if out.Amount <= 0 {
		logger.Debug("model classified sms as non-payment", "sms_id", sms.ID)
		return nil, nil
	}

	return c.toReceipt(sms, out), nil
}

func (c *OpenAIClient) toReceipt(sms *model.RawMessage, out extractedReceipt) *model.ParsedReceipt {
	currency := out.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	ref := out.Ref
	if ref == "" {
		ref = model.RefUnknown
	}
	mask := out.PayerMask
	if mask == "" {
		mask = MaskMsisdn(sms.FromMsisdn)
	}

	ts := sms.ReceivedAt
	if out.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, out.Timestamp); err == nil {
			ts = parsed
		}
	}
	if ts.IsZero() {
		ts = time.Now()
	}

	confidence := out.Confidence
	if confidence < 0 || confidence > 1 {
		confidence = 0
	}

	return &model.ParsedReceipt{
		SmsID:         sms.ID,
		Amount:        out.Amount,
		Currency:      currency,
		PayerMask:     mask,
		Ref:           ref,
		Timestamp:     ts,
		Confidence:    confidence,
		ParserVersion: c.Version(),
	}
}
