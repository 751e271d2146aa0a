package core

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/SimplyPrint/nfc-wedge/internal/logging"
	"go.uber.org/multierr"
)

var (
	// ErrNoReaderFound means the service is up but no reader is attached.
	ErrNoReaderFound = errors.New("no reader found")
)

// ServiceError means the OS smart card service could not be reached.
type ServiceError struct {
	Err error
}

func (e *ServiceError) Error() string {
	return "smart card service unavailable: " + e.Err.Error()
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// OutcomeFromError converts a reader context failure into the outcome reported for it.
func OutcomeFromError(err error) Outcome {
	var svcErr *ServiceError
	switch {
	case errors.As(err, &svcErr):
		return ServiceUnavailable(errorCode(svcErr.Err))
	case errors.Is(err, ErrNoReaderFound):
		return NoReaderFound()
	default:
		return TransportError(errorCode(err))
	}
}

// ReaderContext owns one PC/SC context for the duration of a read attempt.
type ReaderContext struct {
	ctx SmartCardContext
}

// EstablishReaderContext acquires a handle to the smart card service.
// Fails with a *ServiceError when the service is not running.
func EstablishReaderContext(factory ContextFactory) (*ReaderContext, error) {
	ctx, err := factory.EstablishContext()
	if err != nil {
		logging.Error(logging.CatReader, "Failed to establish PC/SC context - is the smart card service running?", map[string]any{
			"error": err.Error(),
			"hint":  "On Linux, ensure pcscd is installed and running: sudo systemctl status pcscd",
		})
		return nil, &ServiceError{Err: err}
	}
	return &ReaderContext{ctx: ctx}, nil
}

// ReaderNames lists attached readers in the order the service reports them.
// Returns ErrNoReaderFound when nothing is attached.
func (rc *ReaderContext) ReaderNames() ([]string, error) {
	names, err := rc.ctx.ListReaders()
	if err != nil {
		if isServiceUnavailable(err) {
			return nil, &ServiceError{Err: err}
		}
		if isNoReaders(err) {
			// Normal when nothing is plugged in.
			logging.Debug(logging.CatReader, "No readers found", map[string]any{
				"error": err.Error(),
			})
		} else {
			logging.Warn(logging.CatReader, "Listing readers failed", map[string]any{
				"error": err.Error(),
			})
		}
		return nil, fmt.Errorf("%w: %v", ErrNoReaderFound, err)
	}
	if len(names) == 0 {
		return nil, ErrNoReaderFound
	}
	return names, nil
}

// Release frees the context. Errors are logged, never returned.
func (rc *ReaderContext) Release() {
	if err := rc.ctx.Release(); err != nil {
		logging.Warn(logging.CatReader, "Failed to release PC/SC context", map[string]any{
			"error": err.Error(),
		})
	}
}

// SelectReader picks the reader to use. Always the first one: setups with
// several readers are not disambiguated.
func SelectReader(names []string) string {
	return names[0]
}

// CardSession is one shared-mode connection to a card through a reader.
type CardSession struct {
	ctx      SmartCardContext
	reader   string
	card     SmartCard
	protocol uint32
}

// NewCardSession prepares a session against reader. Nothing is connected yet.
func (rc *ReaderContext) NewCardSession(reader string) *CardSession {
	return &CardSession{ctx: rc.ctx, reader: reader}
}

// Connect opens a shared, any-protocol connection. It returns false when no card
// is present or the connection fails for any other reason.
func (s *CardSession) Connect() bool {
	card, err := s.ctx.Connect(s.reader, ShareShared, ProtocolAny)
	if err != nil {
		logging.Debug(logging.CatCard, "Connect failed", map[string]any{
			"reader": s.reader,
			"error":  err.Error(),
		})
		return false
	}
	s.card = card
	s.protocol = card.ActiveProtocol()
	return true
}

// Protocol returns the protocol negotiated by Connect.
func (s *CardSession) Protocol() uint32 {
	return s.protocol
}

// ReadUID connects, runs GET DATA inside a transaction and disconnects.
// The card is always released: EndTransaction after a successful
// BeginTransaction and Disconnect after a successful Connect.
func (s *CardSession) ReadUID() Outcome {
	if !s.Connect() {
		return NoCard()
	}

	inTransaction := false
	defer func() { s.cleanup(inTransaction) }()

	cmd := GetUIDCommand()

	if err := s.card.BeginTransaction(); err != nil {
		logging.Warn(logging.CatCard, "Could not begin transaction", map[string]any{
			"reader": s.reader,
			"error":  err.Error(),
		})
		return TransactionFailed()
	}
	inTransaction = true

	return s.transmit(cmd)
}

func (s *CardSession) transmit(cmd Command) Outcome {
	if p := s.Protocol(); !supportedProtocol(p) {
		logging.Warn(logging.CatCard, "Card negotiated an unsupported protocol", map[string]any{
			"reader":   s.reader,
			"protocol": ProtocolName(p),
		})
		return TransportError("unsupported protocol " + ProtocolName(p))
	}

	rsp, err := s.card.Transmit(cmd.Bytes())
	if err != nil {
		logging.Warn(logging.CatCard, "Transmit failed", map[string]any{
			"reader":   s.reader,
			"command":  cmd.String(),
			"protocol": ProtocolName(s.protocol),
			"error":    err.Error(),
		})
		return TransportError(errorCode(err))
	}

	parsed, err := ParseResponse(rsp)
	if err != nil {
		logging.Warn(logging.CatCard, "Malformed GET DATA response", map[string]any{
			"reader":   s.reader,
			"response": hex.EncodeToString(rsp),
			"error":    err.Error(),
		})
		return NoUIDReceived()
	}

	logging.Debug(logging.CatCard, "GET DATA response", map[string]any{
		"reader":   s.reader,
		"protocol": ProtocolName(s.protocol),
		"response": hex.EncodeToString(rsp),
		"status":   parsed.StatusWord(),
		"success":  parsed.Success(),
	})

	if !parsed.HasData() {
		return NoUIDReceived()
	}
	return UID(FormatUID(parsed.Data))
}

// cleanup ends the transaction (leaving the card as is) when one was begun and
// disconnects resetting the card. Failures are logged and otherwise ignored.
func (s *CardSession) cleanup(inTransaction bool) {
	var err error
	if inTransaction {
		if endErr := s.card.EndTransaction(LeaveCard); endErr != nil {
			err = multierr.Append(err, fmt.Errorf("end transaction: %w", endErr))
		}
	}
	if discErr := s.card.Disconnect(ResetCard); discErr != nil {
		err = multierr.Append(err, fmt.Errorf("disconnect: %w", discErr))
	}
	s.card = nil

	if err != nil {
		logging.Warn(logging.CatCard, "Card cleanup failed", map[string]any{
			"reader": s.reader,
			"error":  err.Error(),
		})
	}
}

// ReadOnce performs one complete read attempt with freshly acquired resources:
// establish a context, list readers, pick the first, read its card, release.
func ReadOnce(factory ContextFactory) Outcome {
	rc, err := EstablishReaderContext(factory)
	if err != nil {
		return OutcomeFromError(err)
	}
	defer rc.Release()

	names, err := rc.ReaderNames()
	if err != nil {
		return OutcomeFromError(err)
	}

	reader := SelectReader(names)
	outcome := rc.NewCardSession(reader).ReadUID()
	outcome.Reader = reader
	return outcome
}
