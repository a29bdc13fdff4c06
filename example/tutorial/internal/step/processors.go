package step

import (
	"context"
	"time"

	"github.com/tigerroll/surfin-tutorial/example/tutorial/internal/domain"
	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
)

// Clock returns the current time. Processors take one so tests can fix the date.
type Clock func() time.Time

func orNow(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}

// PlayerYearsProcessor adds the years of experience to a Player.
type PlayerYearsProcessor struct {
	now Clock
}

func NewPlayerYearsProcessor(now Clock) *PlayerYearsProcessor {
	return &PlayerYearsProcessor{now: orNow(now)}
}

func (p *PlayerYearsProcessor) Process(ctx context.Context, player domain.Player) (domain.PlayerYears, error) {
	return domain.NewPlayerYears(player, p.now()), nil
}

// AccountProcessor settles an Order.
type AccountProcessor struct {
	now Clock
}

func NewAccountProcessor(now Clock) *AccountProcessor {
	return &AccountProcessor{now: orNow(now)}
}

func (p *AccountProcessor) Process(ctx context.Context, order domain.Order) (domain.Account, error) {
	return domain.NewAccount(order, p.now()), nil
}

// PlayerRecordProcessor converts a Player to its Parquet row. Players without an id are
// filtered out.
type PlayerRecordProcessor struct{}

func (PlayerRecordProcessor) Process(ctx context.Context, player domain.Player) (domain.PlayerRecord, error) {
	if player.ID == "" {
		return domain.PlayerRecord{}, port.ErrFilterItem
	}
	return domain.NewPlayerRecord(player), nil
}

var (
	_ port.ItemProcessor[domain.Player, domain.PlayerYears]  = (*PlayerYearsProcessor)(nil)
	_ port.ItemProcessor[domain.Order, domain.Account]       = (*AccountProcessor)(nil)
	_ port.ItemProcessor[domain.Player, domain.PlayerRecord] = PlayerRecordProcessor{}
)
