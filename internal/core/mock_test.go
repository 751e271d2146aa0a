package core

import (
	"encoding/hex"
	"errors"
	"sync"
)

// MockContextFactory implements ContextFactory for testing
type MockContextFactory struct {
	ctx         *MockSmartCardContext
	err         error
	established int
}

func (f *MockContextFactory) EstablishContext() (SmartCardContext, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.established++
	return f.ctx, nil
}

// MockSmartCardContext implements SmartCardContext for testing
type MockSmartCardContext struct {
	readers    []string
	cards      map[string]*MockSmartCard
	listErr    error
	connectErr error
	connects   []string
	released   int
}

// MockSmartCard implements SmartCard for testing
type MockSmartCard struct {
	mu          sync.Mutex
	uid         []byte
	response    []byte // raw response to GET DATA; nil means uid + 90 00
	protocol    uint32
	beginErr    error
	transmitErr error
	endErr      error
	discErr     error

	calls        []string
	transmitted  [][]byte
	inTx         bool
	disconnected bool
}

// NewMockContext creates a new mock context with predefined readers
func NewMockContext() *MockSmartCardContext {
	return &MockSmartCardContext{
		readers: []string{
			"ACS ACR122U PICC Interface",
			"ACS ACR1252 Dual Reader PICC",
			"ACS ACR1252 Dual Reader SAM",
		},
		cards: make(map[string]*MockSmartCard),
	}
}

// WithReaders sets the readers for the mock context
func (m *MockSmartCardContext) WithReaders(readers []string) *MockSmartCardContext {
	m.readers = readers
	return m
}

// WithCard adds a mock card to a specific reader
func (m *MockSmartCardContext) WithCard(readerName string, card *MockSmartCard) *MockSmartCardContext {
	m.cards[readerName] = card
	return m
}

// WithListError makes ListReaders fail
func (m *MockSmartCardContext) WithListError(err error) *MockSmartCardContext {
	m.listErr = err
	return m
}

// Factory wraps the context in a factory
func (m *MockSmartCardContext) Factory() *MockContextFactory {
	return &MockContextFactory{ctx: m}
}

func (m *MockSmartCardContext) ListReaders() ([]string, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.readers, nil
}

func (m *MockSmartCardContext) Connect(reader string, shareMode uint32, protocol uint32) (SmartCard, error) {
	m.connects = append(m.connects, reader)
	if m.connectErr != nil {
		return nil, m.connectErr
	}
	if shareMode != ShareShared || protocol != ProtocolAny {
		return nil, errors.New("unexpected share mode or protocol")
	}
	card, ok := m.cards[reader]
	if !ok {
		return nil, errors.New("no card present")
	}
	card.mu.Lock()
	card.disconnected = false
	card.mu.Unlock()
	return card, nil
}

func (m *MockSmartCardContext) Release() error {
	m.released++
	return nil
}

// NewMockCard creates a mock card answering GET DATA with the given UID hex
func NewMockCard(uidHex string) *MockSmartCard {
	uid, _ := hex.DecodeString(uidHex)
	return &MockSmartCard{uid: uid, protocol: ProtocolT1}
}

// WithResponse sets the raw GET DATA response including the status word
func (m *MockSmartCard) WithResponse(raw []byte) *MockSmartCard {
	m.response = raw
	return m
}

func (m *MockSmartCard) BeginTransaction() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "begin")
	if m.beginErr != nil {
		return m.beginErr
	}
	m.inTx = true
	return nil
}

func (m *MockSmartCard) EndTransaction(disposition uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "end")
	if disposition != LeaveCard {
		return errors.New("unexpected disposition")
	}
	m.inTx = false
	return m.endErr
}

func (m *MockSmartCard) Transmit(cmd []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "transmit")
	m.transmitted = append(m.transmitted, cmd)

	if m.disconnected {
		return nil, errors.New("card disconnected")
	}
	if !m.inTx {
		return nil, errors.New("transmit outside transaction")
	}
	if m.transmitErr != nil {
		return nil, m.transmitErr
	}
	if m.response != nil {
		return m.response, nil
	}
	if len(cmd) == 5 && cmd[0] == 0xFF && cmd[1] == 0xCA {
		return append(append([]byte{}, m.uid...), 0x90, 0x00), nil
	}
	return []byte{0x6A, 0x81}, nil
}

func (m *MockSmartCard) ActiveProtocol() uint32 {
	return m.protocol
}

func (m *MockSmartCard) Disconnect(disposition uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "disconnect")
	if disposition != ResetCard {
		return errors.New("unexpected disposition")
	}
	m.disconnected = true
	return m.discErr
}

func (m *MockSmartCard) count(call string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == call {
			n++
		}
	}
	return n
}
