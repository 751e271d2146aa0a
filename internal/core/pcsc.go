package core

import (
	"errors"

	"github.com/ebfe/scard"
)

// PC/SC constants re-exported so callers and mocks don't import scard directly.
const (
	ShareShared = uint32(scard.ShareShared)
	ProtocolAny = uint32(scard.ProtocolAny)
	ProtocolT0  = uint32(scard.ProtocolT0)
	ProtocolT1  = uint32(scard.ProtocolT1)

	LeaveCard = uint32(scard.LeaveCard)
	ResetCard = uint32(scard.ResetCard)
)

// EstablishContext opens a system-scope PC/SC context.
func (DefaultContextFactory) EstablishContext() (SmartCardContext, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, err
	}
	return &pcscContext{ctx: ctx}, nil
}

type pcscContext struct {
	ctx *scard.Context
}

func (c *pcscContext) ListReaders() ([]string, error) {
	return c.ctx.ListReaders()
}

func (c *pcscContext) Connect(reader string, shareMode uint32, protocol uint32) (SmartCard, error) {
	card, err := c.ctx.Connect(reader, scard.ShareMode(shareMode), scard.Protocol(protocol))
	if err != nil {
		return nil, err
	}
	return &pcscCard{card: card}, nil
}

func (c *pcscContext) Release() error {
	return c.ctx.Release()
}

type pcscCard struct {
	card *scard.Card
}

func (c *pcscCard) BeginTransaction() error {
	return c.card.BeginTransaction()
}

func (c *pcscCard) EndTransaction(disposition uint32) error {
	return c.card.EndTransaction(scard.Disposition(disposition))
}

// Transmit relies on scard picking the send PCI from the card's active protocol.
func (c *pcscCard) Transmit(cmd []byte) ([]byte, error) {
	return c.card.Transmit(cmd)
}

func (c *pcscCard) ActiveProtocol() uint32 {
	return uint32(c.card.ActiveProtocol())
}

func (c *pcscCard) Disconnect(disposition uint32) error {
	return c.card.Disconnect(scard.Disposition(disposition))
}

// isServiceUnavailable reports whether err means the OS smart card service is not running.
func isServiceUnavailable(err error) bool {
	return errors.Is(err, scard.ErrNoService) || errors.Is(err, scard.ErrServiceStopped)
}

// isNoReaders reports whether err is PC/SC's way of saying the reader list is empty.
func isNoReaders(err error) bool {
	return errors.Is(err, scard.ErrNoReadersAvailable) || errors.Is(err, scard.ErrUnknownReader)
}

// errorCode stringifies a PC/SC error the way it is shown to the operator.
func errorCode(err error) string {
	var scErr scard.Error
	if errors.As(err, &scErr) {
		return scErr.Error()
	}
	return err.Error()
}

// supportedProtocol reports whether Transmit can run over p. The PC/SC
// binding only frames T=0 and T=1 and panics on anything else.
func supportedProtocol(p uint32) bool {
	return p == ProtocolT0 || p == ProtocolT1
}

// ProtocolName returns a human readable name for a negotiated protocol.
func ProtocolName(p uint32) string {
	switch p {
	case ProtocolT0:
		return "T=0"
	case ProtocolT1:
		return "T=1"
	case uint32(scard.ProtocolUndefined):
		return "undefined"
	default:
		return "unknown"
	}
}
