package output

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SimplyPrint/nfc-wedge/internal/config"
)

type fakeEmitter struct {
	uids   []string
	err    error
	closed bool
}

func (f *fakeEmitter) Emit(uid string) error {
	f.uids = append(f.uids, uid)
	return f.err
}

func (f *fakeEmitter) Close() error {
	f.closed = true
	return nil
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, "")

	require.NoError(t, w.Emit("04-A1-B2-C3"))
	require.NoError(t, w.Emit("01-02"))

	assert.Equal(t, "04-A1-B2-C3\n01-02\n", buf.String())
}

func TestWriterCustomEnding(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, "\r\n")

	require.NoError(t, w.Emit("AA"))
	assert.Equal(t, "AA\r\n", buf.String())
}

func TestMultiContinuesPastFailures(t *testing.T) {
	failing := &fakeEmitter{err: errors.New("device gone")}
	ok := &fakeEmitter{}
	m := NewMulti()
	m.Add("keyboard", failing)
	m.Add("stdout", ok)

	err := m.Emit("04-A1-B2-C3")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "keyboard: device gone")
	assert.Equal(t, []string{"04-A1-B2-C3"}, failing.uids)
	assert.Equal(t, []string{"04-A1-B2-C3"}, ok.uids)
	assert.Equal(t, []string{"keyboard", "stdout"}, m.Names())
}

func TestMultiClose(t *testing.T) {
	a := &fakeEmitter{}
	m := NewMulti()
	m.Add("a", a)
	m.Add("w", NewWriter(&bytes.Buffer{}, ""))

	require.NoError(t, m.Close())
	assert.True(t, a.closed)
}

func TestNewStdoutOnly(t *testing.T) {
	cfg := config.Default()
	cfg.Outputs = []string{config.OutputStdout}

	m, err := New(cfg)

	require.NoError(t, err)
	assert.Equal(t, []string{"stdout"}, m.Names())
}

func TestNewSkipsBrokenOutputs(t *testing.T) {
	cfg := config.Default()
	cfg.Outputs = []string{"printer", config.OutputStdout}

	m, err := New(cfg)

	require.Error(t, err)
	assert.Equal(t, []string{"stdout"}, m.Names())
}

type fakeToken struct {
	done    bool
	err     error
	closeCh chan struct{}
}

func (t *fakeToken) Wait() bool                     { return t.done }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return t.done }
func (t *fakeToken) Done() <-chan struct{}          { return t.closeCh }
func (t *fakeToken) Error() error                   { return t.err }

type fakePublisher struct {
	topic    string
	qos      byte
	retained bool
	payload  interface{}
	token    *fakeToken
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	p.topic, p.qos, p.retained, p.payload = topic, qos, retained, payload
	return p.token
}

func TestMQTTEmit(t *testing.T) {
	pub := &fakePublisher{token: &fakeToken{done: true}}
	m := &MQTT{client: pub, topic: "door/uid"}

	require.NoError(t, m.Emit("04-A1-B2-C3"))

	assert.Equal(t, "door/uid", pub.topic)
	assert.Equal(t, byte(1), pub.qos)
	assert.False(t, pub.retained)
	assert.Equal(t, "04-A1-B2-C3", pub.payload)
}

func TestMQTTEmitErrors(t *testing.T) {
	timeout := &MQTT{client: &fakePublisher{token: &fakeToken{}}, topic: "t"}
	assert.ErrorContains(t, timeout.Emit("AA"), "timed out")

	failed := &MQTT{client: &fakePublisher{token: &fakeToken{done: true, err: errors.New("not connected")}}, topic: "t"}
	assert.ErrorContains(t, failed.Emit("AA"), "not connected")
}

func TestNewMQTTNeedsHost(t *testing.T) {
	_, err := NewMQTT(config.MQTTConfig{Topic: "t"})
	assert.Error(t, err)
}

func TestClientID(t *testing.T) {
	assert.Equal(t, "door-1", clientID("door-1"))

	a, b := clientID(""), clientID("")
	assert.True(t, strings.HasPrefix(a, "nfc-wedge-"))
	assert.Len(t, a, len("nfc-wedge-")+8)
	assert.NotEqual(t, a, b)
}

func TestBuildTLSConfigMissingCA(t *testing.T) {
	_, err := buildTLSConfig(config.MQTTConfig{CACert: "/nonexistent/ca.pem"})
	assert.Error(t, err)
}
