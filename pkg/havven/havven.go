// Package havven implements the ledger and matching core of a simulated
// decentralised stablecoin economy. Agents hold fiat, curits (collateral)
// and nomins (the issued stable token), trade them on three order books,
// and may escrow curits with the mint to issue nomins against them.
//
// All monetary quantities are exact decimals; the core is single-threaded
// and owned by one Model instance per simulation run.
package havven

import "github.com/shopspring/decimal"

// Currency identifies one of the three asset classes in the economy.
type Currency int

const (
	FIAT Currency = iota
	CUR
	NOM
)

func (c Currency) String() string {
	switch c {
	case FIAT:
		return "fiat"
	case CUR:
		return "curits"
	case NOM:
		return "nomins"
	default:
		return "unknown"
	}
}

// Trader owns orders and accounts. The matching engine notifies it of
// fills and cancellations; implementations must not panic back into the
// engine from these callbacks.
type Trader interface {
	Account() *Account
	NotifyFilled(*Order)
	NotifyCancelled(*Order)
}

var one = decimal.NewFromInt(1)
