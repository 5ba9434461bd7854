package fixtures

import (
	"fmt"
	"time"

	"github.com/gikundiro/momo-gateway/internal/model"
	"github.com/google/uuid"
)

// Real-world shaped MTN MoMo receipt texts. Amounts are in whole RWF.
var (
	PaymentText5000 = "You have received 5,000 RWF from JEAN BAPTISTE (*250788123456) on your mobile money account. Ref: MP240314.1001. New balance: 25,000 RWF."
	PaymentText1200 = "You have received 1,200 RWF from CLAUDINE U (*250788987654) on your mobile money account. Ref: MP240314.1002. New balance: 26,200 RWF."
	ChatterText     = "Muraho! Umukino wa none utangira saa kumi. Turabona stade!"
	NoRefText       = "You have received 750 RWF from AGENT 40122 on your mobile money account. New balance: 950 RWF."
)

func PaymentText(amount int64, ref string) string {
	return fmt.Sprintf(
		"You have received %d RWF from JEAN BAPTISTE (*250788123456) on your mobile money account. Ref: %s. New balance: 99,999 RWF.",
		amount, ref,
	)
}

func NewIngestRequest(text string) model.SmsIngestRequest {
	return model.SmsIngestRequest{
		Text:       text,
		FromMsisdn: "+250788123456",
		ToMsisdn:   "+250780000001",
		ReceivedAt: time.Now().UTC(),
	}
}

func NewRawMessage(text string, status model.IngestStatus) *model.RawMessage {
	return &model.RawMessage{
		ID:         uuid.New(),
		Text:       text,
		FromMsisdn: "+250788123456",
		ToMsisdn:   "+250780000001",
		ReceivedAt: time.Now().UTC(),
		Status:     status,
	}
}

func NewReceipt(smsID uuid.UUID, amount int64, ref string) *model.ParsedReceipt {
	return &model.ParsedReceipt{
		ID:            uuid.New(),
		SmsID:         smsID,
		Amount:        amount,
		Currency:      "RWF",
		PayerMask:     "***456",
		Ref:           ref,
		Timestamp:     time.Now().UTC(),
		Confidence:    0.45,
		ParserVersion: "heuristic:v1",
	}
}

func NewTicketOrder(userID *uuid.UUID, total int64) *model.TicketOrder {
	return &model.TicketOrder{
		ID:     uuid.New(),
		UserID: userID,
		Total:  total,
		Status: model.TicketOrderPending,
	}
}

func NewShopOrder(userID *uuid.UUID, total int64) *model.ShopOrder {
	return &model.ShopOrder{
		ID:     uuid.New(),
		UserID: userID,
		Total:  total,
		Status: model.ShopOrderPending,
	}
}

func NewSaccoDeposit(userID *uuid.UUID, amount int64) *model.SaccoDeposit {
	return &model.SaccoDeposit{
		ID:     uuid.New(),
		UserID: userID,
		Amount: amount,
		Status: model.SaccoDepositPending,
	}
}

func NewMember(msisdn string) *model.Member {
	return &model.Member{
		ID:     uuid.New(),
		Msisdn: msisdn,
	}
}
