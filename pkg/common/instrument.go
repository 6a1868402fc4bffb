package common

import "strings"

type Instrument interface {
	ID() int64
	Symbol() string
	// the FORTS security group, used by mass cancel
	Group() string
}

type base struct {
	id     int64
	symbol string
	group  string
}

func (b base) ID() int64 {
	return b.id
}
func (b base) Symbol() string {
	return b.symbol
}
func (b base) Group() string {
	return b.group
}
func (b base) String() string {
	return b.symbol
}

type Future struct {
	base
}

func (f Future) String() string {
	return "future:" + f.symbol
}

// NewInstrument creates a future, the group is the symbol up to the contract month, e.g. Si-12.26 is in group Si
func NewInstrument(id int64, symbol string) Instrument {
	group := symbol
	if i := strings.IndexByte(symbol, '-'); i > 0 {
		group = symbol[:i]
	}
	return NewFuture(id, symbol, group)
}

func NewFuture(id int64, symbol string, group string) Instrument {
	return Future{base{id, symbol, group}}
}
