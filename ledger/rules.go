package ledger

import (
	"fmt"
	"time"
)

// Execution decides the entry price of an admitted signal.
type Execution string

const (
	// ExecSignalClose fills at the signal's entry price (the close of the
	// signal candle) as soon as the trade is created.
	ExecSignalClose Execution = "signal_close"
	// ExecNextOpen leaves the trade WAITING_FOR_EXECUTION until Fill is
	// called with the next candle's open.
	ExecNextOpen Execution = "next_open"
)

type Rules struct {
	OnePerInstrument bool          `json:"one_per_instrument" yaml:"one_per_instrument" mapstructure:"one_per_instrument"`
	Cooldown         time.Duration `json:"cooldown" yaml:"cooldown" mapstructure:"cooldown"`
	MaxTradesPerDay  int           `json:"max_trades_per_day" yaml:"max_trades_per_day" mapstructure:"max_trades_per_day"`
	Execution        Execution     `json:"execution" yaml:"execution" mapstructure:"execution"`
}

func DefaultRules() Rules {
	return Rules{
		OnePerInstrument: true,
		Cooldown:         60 * time.Second,
		MaxTradesPerDay:  5,
		Execution:        ExecSignalClose,
	}
}

func (r Rules) Validate() error {
	switch r.Execution {
	case ExecSignalClose, ExecNextOpen:
	default:
		return fmt.Errorf("ledger: unknown execution policy %q", r.Execution)
	}
	if r.Cooldown < 0 {
		return fmt.Errorf("ledger: cooldown must not be negative")
	}
	if r.MaxTradesPerDay < 0 {
		return fmt.Errorf("ledger: max_trades_per_day must not be negative")
	}
	return nil
}
