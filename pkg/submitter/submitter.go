package submitter

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ton-swap/pkg/asset"
	"ton-swap/pkg/calculator"
	"ton-swap/pkg/contract"
	"ton-swap/pkg/types"
	"ton-swap/pkg/wallet"
)

const (
	// DefaultValidFor bounds how long the wallet may hold the request
	DefaultValidFor = 5 * time.Minute
)

// DefaultGasAmount is attached to the message when the source is not the
// native asset.
var DefaultGasAmount = decimal.RequireFromString("0.05")

// Sender hands a transaction to the wallet for signing
type Sender interface {
	SendTransaction(ctx context.Context, tx wallet.Transaction) (string, error)
}

// SubmitError describes a swap that was not accepted by the wallet
type SubmitError struct {
	Intent types.SwapIntent
	Err    error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("swap %s %s -> %s failed: %v", e.Intent.SourceAmount, e.Intent.Source, e.Intent.Dest, e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// Config configures a Submitter
type Config struct {
	// Contract is the swap contract address receiving the message
	Contract  string
	GasAmount decimal.Decimal
	ValidFor  time.Duration
	Now       func() time.Time
}

// Submitter builds swap messages and delegates signing to a Sender.
type Submitter struct {
	sender Sender
	cfg    Config
	logger *zap.Logger
}

// New creates a submitter sending through sender
func New(sender Sender, cfg Config, logger *zap.Logger) *Submitter {
	if !cfg.GasAmount.IsPositive() {
		cfg.GasAmount = DefaultGasAmount
	}
	if cfg.ValidFor <= 0 {
		cfg.ValidFor = DefaultValidFor
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submitter{sender: sender, cfg: cfg, logger: logger}
}

// Build turns an intent into the transaction request without sending it.
func (s *Submitter) Build(intent types.SwapIntent) (wallet.Transaction, error) {
	if intent.Source.IsZero() || intent.Dest.IsZero() || intent.Source == intent.Dest {
		return wallet.Transaction{}, fmt.Errorf("invalid swap pair %s -> %s", intent.Source, intent.Dest)
	}
	if s.cfg.Contract == "" {
		return wallet.Transaction{}, fmt.Errorf("swap contract address is not configured")
	}

	amount, err := calculator.ParseAmount(intent.SourceAmount)
	if err != nil {
		return wallet.Transaction{}, err
	}
	if !amount.IsPositive() {
		return wallet.Transaction{}, fmt.Errorf("amount must be greater than zero")
	}

	minDest := decimal.Zero
	if intent.MinDestAmount != "" {
		if minDest, err = calculator.ParseAmount(intent.MinDestAmount); err != nil {
			return wallet.Transaction{}, err
		}
	}

	body := contract.SwapBody{
		Source:      intent.Source.Symbol(),
		Dest:        intent.Dest.Symbol(),
		Amount:      intent.Source.ToUnits(amount),
		MinReceived: intent.Dest.ToUnits(minDest),
	}
	payload, err := body.BOC()
	if err != nil {
		return wallet.Transaction{}, fmt.Errorf("failed to build swap payload: %w", err)
	}

	value := s.cfg.GasAmount
	if intent.Source.IsNative() {
		value = amount
	}

	return wallet.Transaction{
		ValidUntil: s.cfg.Now().Add(s.cfg.ValidFor),
		Messages: []wallet.Message{{
			Address: s.cfg.Contract,
			Amount:  asset.Native.ToUnits(value).String(),
			Payload: payload,
		}},
	}, nil
}

// Submit builds the swap transaction and asks the wallet to sign it. It
// returns the signed message BOC reported by the wallet.
func (s *Submitter) Submit(ctx context.Context, intent types.SwapIntent) (string, error) {
	tx, err := s.Build(intent)
	if err != nil {
		return "", &SubmitError{Intent: intent, Err: err}
	}

	s.logger.Info("submitting swap",
		zap.String("source", intent.Source.Symbol()),
		zap.String("dest", intent.Dest.Symbol()),
		zap.String("amount", intent.SourceAmount),
		zap.String("min_received", intent.MinDestAmount),
		zap.String("value", tx.Messages[0].Amount),
		zap.Time("valid_until", tx.ValidUntil))

	boc, err := s.sender.SendTransaction(ctx, tx)
	if err != nil {
		s.logger.Warn("swap was not sent", zap.Error(err))
		return "", &SubmitError{Intent: intent, Err: err}
	}
	return boc, nil
}
