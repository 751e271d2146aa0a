package core

// SmartCardContext represents a PC/SC context for listing readers
type SmartCardContext interface {
	ListReaders() ([]string, error)
	Connect(reader string, shareMode uint32, protocol uint32) (SmartCard, error)
	Release() error
}

// SmartCard represents a connected smart card.
// Transmit frames the command with the protocol control information of the
// protocol negotiated at connect time.
type SmartCard interface {
	BeginTransaction() error
	EndTransaction(disposition uint32) error
	Transmit(cmd []byte) ([]byte, error)
	ActiveProtocol() uint32
	Disconnect(disposition uint32) error
}

// ContextFactory creates SmartCardContext instances
// This allows for dependency injection and mocking in tests
type ContextFactory interface {
	EstablishContext() (SmartCardContext, error)
}

// DefaultContextFactory is the production factory that uses real PC/SC
type DefaultContextFactory struct{}
