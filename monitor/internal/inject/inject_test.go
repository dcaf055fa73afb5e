package inject

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hex20/telemetry-health/pkg/types"
)

// recordingInjector records kinds and optionally fails or blocks.
type recordingInjector struct {
	mu    sync.Mutex
	kinds []types.AnomalyKind
	err   error
	block bool
	ctxs  []context.Context
}

func (r *recordingInjector) InjectAnomaly(ctx context.Context, kind types.AnomalyKind) error {
	r.mu.Lock()
	r.kinds = append(r.kinds, kind)
	r.ctxs = append(r.ctxs, ctx)
	r.mu.Unlock()
	if r.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return r.err
}

func TestRoundRobin_Order(t *testing.T) {
	s := NewRoundRobin()
	want := []types.AnomalyKind{types.AnomalyBattery, types.AnomalyTemp, types.AnomalyComm, types.AnomalyBattery}
	for i, w := range want {
		assert.Equal(t, w, s.Next(), "pick %d", i)
	}
}

func TestRandom_SeededAndInRange(t *testing.T) {
	a := NewRandom(rand.NewSource(42))
	b := NewRandom(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		ka, kb := a.Next(), b.Next()
		assert.Equal(t, ka, kb, "same seed must give same sequence")
		_, err := types.ParseAnomalyKind(string(ka))
		assert.NoError(t, err)
	}
}

func TestController_InjectNextRotates(t *testing.T) {
	inj := &recordingInjector{}
	c := New(inj, nil)

	var got []types.AnomalyKind
	for i := 0; i < 4; i++ {
		got = append(got, c.InjectNext(context.Background()))
	}
	c.Wait()

	assert.Equal(t, []types.AnomalyKind{types.AnomalyBattery, types.AnomalyTemp, types.AnomalyComm, types.AnomalyBattery}, got)
	assert.ElementsMatch(t, got, inj.kinds)
	st := c.Stats()
	assert.Equal(t, uint64(4), st.Sent)
	assert.Zero(t, st.Failed)
	assert.Equal(t, types.AnomalyBattery, st.LastKind)
}

func TestController_FailuresAreCountedNotReturned(t *testing.T) {
	c := New(&recordingInjector{err: errors.New("upstream down")}, nil)

	kind := c.InjectNext(context.Background())
	c.Wait()

	assert.Equal(t, types.AnomalyBattery, kind)
	assert.Equal(t, uint64(1), c.Stats().Failed)
	assert.Zero(t, c.Stats().Sent)
}

func TestController_OutlivesCallerContext(t *testing.T) {
	inj := &recordingInjector{}
	c := New(inj, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.InjectNext(ctx)
	c.Wait()

	require.Len(t, inj.ctxs, 1)
	assert.Equal(t, uint64(1), c.Stats().Sent, "cancelled caller context must not abort delivery")
}

func TestController_Timeout(t *testing.T) {
	c := New(&recordingInjector{block: true}, nil)
	c.SetTimeout(20 * time.Millisecond)

	start := time.Now()
	c.InjectNext(context.Background())
	c.Wait()

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, uint64(1), c.Stats().Failed)
}

func TestController_SetSelector(t *testing.T) {
	c := New(&recordingInjector{}, nil)
	c.SetSelector(fixedSelector(types.AnomalyComm))
	c.SetSelector(nil) // ignored

	assert.Equal(t, types.AnomalyComm, c.InjectNext(context.Background()))
	c.Wait()
}

type fixedSelector types.AnomalyKind

func (f fixedSelector) Next() types.AnomalyKind { return types.AnomalyKind(f) }

// fakeToken is a completed or pending mqtt.Token.
type fakeToken struct {
	done chan struct{}
	err  error
}

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

func completed(err error) *fakeToken {
	ch := make(chan struct{})
	close(ch)
	return &fakeToken{done: ch, err: err}
}

type fakePublisher struct {
	topic   string
	qos     byte
	payload []byte
	token   mqtt.Token
}

func (p *fakePublisher) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	p.topic, p.qos, p.payload = topic, qos, payload.([]byte)
	return p.token
}

func TestMQTTInjector_Publishes(t *testing.T) {
	pub := &fakePublisher{token: completed(nil)}
	m := &MQTTInjector{pub: pub, topic: "telemetry/inject", qos: 1}

	require.NoError(t, m.InjectAnomaly(context.Background(), types.AnomalyTemp))
	assert.Equal(t, "telemetry/inject", pub.topic)
	assert.Equal(t, byte(1), pub.qos)

	var cmd types.InjectCommand
	require.NoError(t, json.Unmarshal(pub.payload, &cmd))
	assert.Equal(t, types.AnomalyTemp, cmd.Type)
}

func TestMQTTInjector_PublishError(t *testing.T) {
	m := &MQTTInjector{pub: &fakePublisher{token: completed(errors.New("not connected"))}, topic: "t"}
	assert.Error(t, m.InjectAnomaly(context.Background(), types.AnomalyComm))
}

func TestMQTTInjector_ContextEnds(t *testing.T) {
	m := &MQTTInjector{pub: &fakePublisher{token: &fakeToken{done: make(chan struct{})}}, topic: "t"}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := m.InjectAnomaly(ctx, types.AnomalyBattery)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSelectorFor(t *testing.T) {
	if _, ok := SelectorFor("random", rand.NewSource(1)).(*Random); !ok {
		t.Error("random: wrong selector type")
	}
	if _, ok := SelectorFor("round_robin", nil).(*RoundRobin); !ok {
		t.Error("round_robin: wrong selector type")
	}
}
