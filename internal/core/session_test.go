package core

import (
	"errors"
	"testing"

	"github.com/ebfe/scard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testReader = "ACS ACR122U PICC Interface"

func newSession(card *MockSmartCard) (*CardSession, *MockSmartCardContext) {
	ctx := NewMockContext()
	if card != nil {
		ctx.WithCard(testReader, card)
	}
	rc := &ReaderContext{ctx: ctx}
	return rc.NewCardSession(testReader), ctx
}

func TestReadUID(t *testing.T) {
	card := NewMockCard("04a1b2c3")
	session, _ := newSession(card)

	outcome := session.ReadUID()

	require.Equal(t, KindUID, outcome.Kind)
	assert.Equal(t, "04-A1-B2-C3", outcome.UID)
	assert.Equal(t, "Card detected (04-A1-B2-C3)", outcome.Status())
	assert.Equal(t, []string{"begin", "transmit", "end", "disconnect"}, card.calls)
	assert.Equal(t, []byte{0xFF, 0xCA, 0x00, 0x00, 0x00}, card.transmitted[0])
	assert.Equal(t, ProtocolT1, session.Protocol())
}

func TestReadUIDSevenByteUID(t *testing.T) {
	card := NewMockCard("04635d6bc22a81")
	session, _ := newSession(card)

	outcome := session.ReadUID()

	require.Equal(t, KindUID, outcome.Kind)
	assert.Equal(t, "04-63-5D-6B-C2-2A-81", outcome.UID)
}

func TestReadUIDConnectFails(t *testing.T) {
	session, ctx := newSession(nil)

	outcome := session.ReadUID()

	assert.Equal(t, KindNoCard, outcome.Kind)
	assert.Equal(t, StatusNoCard, outcome.Status())
	assert.Equal(t, []string{testReader}, ctx.connects)
}

func TestReadUIDConnectFailsNoTransmit(t *testing.T) {
	card := NewMockCard("04a1b2c3")
	session, ctx := newSession(card)
	ctx.connectErr = scard.ErrNoSmartcard

	outcome := session.ReadUID()

	assert.Equal(t, KindNoCard, outcome.Kind)
	assert.Empty(t, card.calls, "no card call may happen without a connection")
}

func TestReadUIDNoData(t *testing.T) {
	card := NewMockCard("").WithResponse([]byte{0x90, 0x00})
	session, _ := newSession(card)

	outcome := session.ReadUID()

	assert.Equal(t, KindNoUIDReceived, outcome.Kind)
	assert.Equal(t, StatusNoUIDReceived, outcome.Status())
	assert.Equal(t, 1, card.count("end"))
	assert.Equal(t, 1, card.count("disconnect"))
}

func TestReadUIDMalformedResponse(t *testing.T) {
	card := NewMockCard("").WithResponse([]byte{0x90})
	session, _ := newSession(card)

	outcome := session.ReadUID()

	assert.Equal(t, KindNoUIDReceived, outcome.Kind)
	assert.Equal(t, 1, card.count("disconnect"))
}

func TestReadUIDBeginTransactionFails(t *testing.T) {
	card := NewMockCard("04a1b2c3")
	card.beginErr = scard.ErrSharingViolation
	session, _ := newSession(card)

	outcome := session.ReadUID()

	assert.Equal(t, KindTransactionFailed, outcome.Kind)
	assert.Equal(t, StatusTransactionFailed, outcome.Status())
	assert.Equal(t, []string{"begin", "disconnect"}, card.calls)
}

func TestReadUIDTransmitFails(t *testing.T) {
	card := NewMockCard("04a1b2c3")
	card.transmitErr = scard.ErrRemovedCard
	session, _ := newSession(card)

	outcome := session.ReadUID()

	require.Equal(t, KindTransportError, outcome.Kind)
	assert.Equal(t, scard.ErrRemovedCard.Error(), outcome.Code)
	assert.Equal(t, "Error: "+scard.ErrRemovedCard.Error(), outcome.Status())
	assert.Equal(t, []string{"begin", "transmit", "end", "disconnect"}, card.calls)
}

func TestReadUIDCleanupErrorsAreNotEscalated(t *testing.T) {
	card := NewMockCard("04a1b2c3")
	card.endErr = errors.New("end failed")
	card.discErr = errors.New("disconnect failed")
	session, _ := newSession(card)

	outcome := session.ReadUID()

	assert.Equal(t, KindUID, outcome.Kind)
	assert.Equal(t, 1, card.count("end"))
	assert.Equal(t, 1, card.count("disconnect"))
}

func TestReadUIDUnsupportedProtocol(t *testing.T) {
	card := NewMockCard("04a1b2c3")
	card.protocol = 0
	session, _ := newSession(card)

	outcome := session.ReadUID()

	require.Equal(t, KindTransportError, outcome.Kind)
	assert.Equal(t, "Error: unsupported protocol undefined", outcome.Status())
	assert.Equal(t, 0, card.count("transmit"))
	assert.Equal(t, 1, card.count("end"))
	assert.Equal(t, 1, card.count("disconnect"))
}

func TestReadUIDCleanupOncePerConnect(t *testing.T) {
	tests := []struct {
		name        string
		transmitErr error
	}{
		{"transmit succeeds", nil},
		{"transmit fails", errors.New("0x80100016")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := NewMockCard("04a1b2c3")
			card.transmitErr = tt.transmitErr
			session, _ := newSession(card)

			for i := 0; i < 3; i++ {
				session.ReadUID()
			}

			assert.Equal(t, 3, card.count("end"))
			assert.Equal(t, 3, card.count("disconnect"))
		})
	}
}

func TestReadOnce(t *testing.T) {
	card := NewMockCard("04a1b2c3")
	ctx := NewMockContext().WithCard(testReader, card)
	factory := ctx.Factory()

	outcome := ReadOnce(factory)

	assert.Equal(t, KindUID, outcome.Kind)
	assert.Equal(t, testReader, outcome.Reader)
	assert.Equal(t, 1, factory.established)
	assert.Equal(t, 1, ctx.released)
}

func TestReadOnceUsesFirstReader(t *testing.T) {
	ctx := NewMockContext().
		WithReaders([]string{"Reader B", "Reader A"}).
		WithCard("Reader A", NewMockCard("01020304"))

	outcome := ReadOnce(ctx.Factory())

	assert.Equal(t, KindNoCard, outcome.Kind)
	assert.Equal(t, []string{"Reader B"}, ctx.connects)
}

func TestReadOnceServiceUnavailable(t *testing.T) {
	factory := &MockContextFactory{err: scard.ErrNoService}

	outcome := ReadOnce(factory)

	require.Equal(t, KindServiceUnavailable, outcome.Kind)
	assert.Equal(t, scard.ErrNoService.Error(), outcome.Code)
	assert.Contains(t, outcome.Status(), StatusServiceUnavailable)
}

func TestReadOnceServiceStoppedWhileListing(t *testing.T) {
	ctx := NewMockContext().WithListError(scard.ErrServiceStopped)

	outcome := ReadOnce(ctx.Factory())

	assert.Equal(t, KindServiceUnavailable, outcome.Kind)
	assert.Equal(t, 1, ctx.released)
}

func TestReadOnceNoReaders(t *testing.T) {
	tests := []struct {
		name string
		ctx  *MockSmartCardContext
	}{
		{"empty list", NewMockContext().WithReaders(nil)},
		{"no readers error", NewMockContext().WithListError(scard.ErrNoReadersAvailable)},
		{"other list error", NewMockContext().WithListError(errors.New("boom"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := ReadOnce(tt.ctx.Factory())

			assert.Equal(t, KindNoReaderFound, outcome.Kind)
			assert.Equal(t, StatusNoReaderFound, outcome.Status())
			assert.Empty(t, tt.ctx.connects)
			assert.Equal(t, 1, tt.ctx.released)
		})
	}
}

func TestOutcomeFromError(t *testing.T) {
	assert.Equal(t, KindServiceUnavailable, OutcomeFromError(&ServiceError{Err: scard.ErrNoService}).Kind)
	assert.Equal(t, KindNoReaderFound, OutcomeFromError(ErrNoReaderFound).Kind)
	assert.Equal(t, KindTransportError, OutcomeFromError(errors.New("other")).Kind)
}
