package havven

import (
	"fmt"

	"github.com/luxfi/log"
	"github.com/shopspring/decimal"
)

// Config is the externally supplied parameter surface of the core:
// per-currency transfer fee rates, the mint's utilisation ratio, and the
// display precision used for effectively-zero checks.
type Config struct {
	FiatFee  decimal.Decimal
	CuritFee decimal.Decimal
	NominFee decimal.Decimal

	// UtilisationRatio is the maximum fraction of escrowed collateral
	// value that may be issued as nomins, in (0,1].
	UtilisationRatio decimal.Decimal

	// CurrencyPrecision is the display rounding scale. Internal
	// accounting stays exact; this governs only Round.
	CurrencyPrecision int32
}

// DefaultConfig returns the standard simulation parameters: 0.5% fees
// on every currency, a 25% utilisation ratio and 8 display digits.
func DefaultConfig() Config {
	fee := decimal.New(5, -3)
	return Config{
		FiatFee:           fee,
		CuritFee:          fee,
		NominFee:          fee,
		UtilisationRatio:  decimal.New(25, -2),
		CurrencyPrecision: 8,
	}
}

// Model is the shared context of one simulation run: the fee manager,
// ledger, mint and market manager, wired together and passed explicitly
// to every collaborator. There is no ambient global instance.
type Model struct {
	cfg     Config
	Fees    *FeeManager
	Ledger  *Ledger
	Mint    *Mint
	Markets *MarketManager

	logger log.Logger
}

// NewModel validates cfg and assembles the core. The mint values
// collateral at the curit/nomin market's last traded price.
func NewModel(cfg Config, logger log.Logger) (*Model, error) {
	if cfg.CurrencyPrecision < 0 {
		return nil, fmt.Errorf("%w: currency precision %d", ErrInvalidAmount, cfg.CurrencyPrecision)
	}
	if !cfg.UtilisationRatio.IsPositive() || cfg.UtilisationRatio.GreaterThan(one) {
		return nil, fmt.Errorf("%w: utilisation ratio %s not in (0,1]", ErrInvalidAmount, cfg.UtilisationRatio)
	}
	fees, err := NewFeeManager(FeeRates{Fiat: cfg.FiatFee, Curit: cfg.CuritFee, Nomin: cfg.NominFee})
	if err != nil {
		return nil, err
	}
	ledger := NewLedger(fees, logger)
	markets := NewMarketManager(ledger, logger)
	mint := NewMint(ledger, cfg.UtilisationRatio, markets.CuritNominMarket, logger)
	return &Model{
		cfg:     cfg,
		Fees:    fees,
		Ledger:  ledger,
		Mint:    mint,
		Markets: markets,
		logger:  logger.New("module", "model"),
	}, nil
}

// Config returns the model's parameters.
func (m *Model) Config() Config { return m.cfg }

// Round rounds d to the configured display precision. Used only for
// effectively-zero checks, never for internal accounting.
func (m *Model) Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(m.cfg.CurrencyPrecision)
}

// CuritPrice returns the current curit price in fiat.
func (m *Model) CuritPrice() decimal.Decimal {
	return m.Markets.CuritFiatMarket.Price()
}

// NominPrice returns the current nomin price in fiat.
func (m *Model) NominPrice() decimal.Decimal {
	return m.Markets.NominFiatMarket.Price()
}

// FiatValue values a holding of each currency at current market prices.
func (m *Model) FiatValue(fiat, curits, nomins decimal.Decimal) decimal.Decimal {
	return fiat.
		Add(curits.Mul(m.CuritPrice())).
		Add(nomins.Mul(m.NominPrice()))
}
