package core

import "fmt"

// OutcomeKind identifies the result of one read attempt.
type OutcomeKind int

const (
	KindUID OutcomeKind = iota
	KindNoCard
	KindNoUIDReceived
	KindServiceUnavailable
	KindNoReaderFound
	KindTransactionFailed
	KindTransportError
)

func (k OutcomeKind) String() string {
	switch k {
	case KindUID:
		return "uid"
	case KindNoCard:
		return "no_card"
	case KindNoUIDReceived:
		return "no_uid_received"
	case KindServiceUnavailable:
		return "service_unavailable"
	case KindNoReaderFound:
		return "no_reader_found"
	case KindTransactionFailed:
		return "transaction_failed"
	case KindTransportError:
		return "transport_error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Operator facing status texts.
const (
	StatusNoCard             = "No card detected"
	StatusNoUIDReceived      = "No uid received"
	StatusNoReaderFound      = "You need at least one reader in order to run this program."
	StatusTransactionFailed  = "Could not begin transaction."
	StatusServiceUnavailable = "The smart card service is not running"
)

// Outcome is the result of a read attempt. UID is set for KindUID,
// Code for KindTransportError and KindServiceUnavailable.
type Outcome struct {
	Kind   OutcomeKind
	UID    string
	Code   string
	Reader string
}

func UID(uid string) Outcome                 { return Outcome{Kind: KindUID, UID: uid} }
func NoCard() Outcome                        { return Outcome{Kind: KindNoCard} }
func NoUIDReceived() Outcome                 { return Outcome{Kind: KindNoUIDReceived} }
func NoReaderFound() Outcome                 { return Outcome{Kind: KindNoReaderFound} }
func TransactionFailed() Outcome             { return Outcome{Kind: KindTransactionFailed} }
func TransportError(code string) Outcome     { return Outcome{Kind: KindTransportError, Code: code} }
func ServiceUnavailable(code string) Outcome { return Outcome{Kind: KindServiceUnavailable, Code: code} }

// Status returns the status line reported for this outcome.
func (o Outcome) Status() string {
	switch o.Kind {
	case KindUID:
		return "Card detected (" + o.UID + ")"
	case KindNoCard:
		return StatusNoCard
	case KindNoUIDReceived:
		return StatusNoUIDReceived
	case KindNoReaderFound:
		return StatusNoReaderFound
	case KindTransactionFailed:
		return StatusTransactionFailed
	case KindTransportError:
		return "Error: " + o.Code
	case KindServiceUnavailable:
		if o.Code == "" {
			return StatusServiceUnavailable
		}
		return StatusServiceUnavailable + ": " + o.Code
	default:
		return o.Kind.String()
	}
}
