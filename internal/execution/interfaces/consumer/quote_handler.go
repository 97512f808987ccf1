package consumer

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/smartexecution/internal/execution/application"
	"github.com/wyfcoding/smartexecution/pkg/mq"
)

type quoteMessage struct {
	Symbol string          `json:"symbol"`
	Bid    decimal.Decimal `json:"bid"`
	Ask    decimal.Decimal `json:"ask"`
	Last   decimal.Decimal `json:"last"`
}

// QuoteHandler 消费 marketdata.quotes 主题并更新行情
type QuoteHandler struct {
	service *application.ExecutionCommandService
}

func NewQuoteHandler(service *application.ExecutionCommandService) *QuoteHandler {
	return &QuoteHandler{service: service}
}

func (h *QuoteHandler) Handle(ctx context.Context, msg *mq.Message) error {
	var q quoteMessage
	if err := msg.UnmarshalPayload(&q); err != nil {
		return fmt.Errorf("decode quote: %w", err)
	}
	if q.Symbol == "" {
		q.Symbol = msg.Key
	}
	if q.Symbol == "" {
		return fmt.Errorf("quote without symbol at offset %d", msg.Offset)
	}
	return h.service.UpdateQuote(ctx, application.UpdateQuoteCommand{Symbol: q.Symbol, Bid: q.Bid, Ask: q.Ask, Last: q.Last})
}
