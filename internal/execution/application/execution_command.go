package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/smartexecution/internal/execution/domain"
	"github.com/wyfcoding/smartexecution/pkg/logger"
)

var decimalTwo = decimal.NewFromInt(2)

// QuoteUpdater 接收外部报价（纸面交易的行情簿）
type QuoteUpdater interface {
	UpdateQuote(ctx context.Context, symbol string, q domain.Quote)
}

// ExecutionCommandService 处理所有执行相关的写入操作（Commands）。
// 目标只进入队列，由定时任务在下一轮执行中合并
type ExecutionCommandService struct {
	queue  *TargetQueue
	quotes QuoteUpdater
}

// NewExecutionCommandService 构造函数。quotes 为 nil 时不接受报价推送
func NewExecutionCommandService(queue *TargetQueue, quotes QuoteUpdater) *ExecutionCommandService {
	return &ExecutionCommandService{queue: queue, quotes: quotes}
}

// SubmitTargets 校验并排队一批目标，任一目标非法则整批拒绝
func (s *ExecutionCommandService) SubmitTargets(ctx context.Context, cmds []SubmitTargetCommand) ([]domain.PortfolioTarget, error) {
	targets := make([]domain.PortfolioTarget, 0, len(cmds))
	for _, cmd := range cmds {
		t := cmd.Target()
		if err := t.Validate(); err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	s.queue.Push(targets...)
	logger.Info(ctx, "Portfolio targets queued", "count", len(targets))
	return targets, nil
}

// CancelTarget 以数量为 0 的目标撤销合约，工作订单在下一轮被撤单移除
func (s *ExecutionCommandService) CancelTarget(ctx context.Context, symbol string) error {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return fmt.Errorf("%w: symbol is required", domain.ErrInvalidTarget)
	}
	s.queue.Push(domain.PortfolioTarget{Symbol: symbol})
	logger.Info(ctx, "Portfolio target cancel queued", "symbol", symbol)
	return nil
}

// UpdateQuote 推送报价
func (s *ExecutionCommandService) UpdateQuote(ctx context.Context, cmd UpdateQuoteCommand) error {
	if s.quotes == nil {
		return fmt.Errorf("%w: quote updates are not accepted in this broker mode", domain.ErrQuoteUnavailable)
	}
	q := domain.Quote{Bid: cmd.Bid, Ask: cmd.Ask, Last: cmd.Last}
	if cmd.Bid.IsPositive() && cmd.Ask.IsPositive() {
		q.Mid = cmd.Bid.Add(cmd.Ask).Div(decimalTwo)
	}
	s.quotes.UpdateQuote(ctx, cmd.Symbol, q)
	return nil
}
