package engine

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/caarlos0/smsalarm/smsproto"
)

type fakeTransport struct {
	mu     sync.Mutex
	sent   []string
	hints  []TransportHint
	err    error
	ticket Ticket
}

func (t *fakeTransport) Transmit(text string, hint TransportHint) (Ticket, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return 0, t.err
	}
	t.sent = append(t.sent, text)
	t.hints = append(t.hints, hint)
	t.ticket++
	return t.ticket, nil
}

func (t *fakeTransport) texts() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.sent))
	copy(out, t.sent)
	return out
}

type fakeStore struct {
	mu         sync.Mutex
	version    string
	main       bool
	flags      smsproto.Permissions
	zones      []smsproto.ZoneRecord
	scenarios  []smsproto.ScenarioRecord
	users      []smsproto.UserRecord
	status     smsproto.Status
	scenario   string
	configured bool
	statusPuts int
	err        error
	markErr    error
}

func (s *fakeStore) PutPanelInfo(version string, main bool, flags smsproto.Permissions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version, s.main, s.flags = version, main, flags
	return s.err
}

func (s *fakeStore) PutZones(zones []smsproto.ZoneRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zones = zones
	return s.err
}

func (s *fakeStore) PutScenarios(scenarios []smsproto.ScenarioRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenarios = append(s.scenarios, scenarios...)
	return s.err
}

func (s *fakeStore) PutUsers(users []smsproto.UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, users...)
	return s.err
}

func (s *fakeStore) PutStatus(status smsproto.Status, scenario string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status, s.scenario = status, scenario
	s.statusPuts++
	return s.err
}

func (s *fakeStore) MarkConfigured(configured bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markErr != nil {
		return s.markErr
	}
	s.configured = configured
	return s.err
}

func TestSendSingleOutstanding(t *testing.T) {
	transport := &fakeTransport{}
	c := New(transport, &fakeStore{})

	resolved := make(chan smsproto.Response, 1)
	require.NoError(t, c.Send(smsproto.StatusQuery{}, time.Minute, func(r smsproto.Response) {
		resolved <- r
	}, nil))
	require.True(t, c.Pending())

	// a second send must fail without touching the pending exchange
	err := c.Send(smsproto.Disarm{}, time.Minute, nil, nil)
	require.ErrorIs(t, err, ErrExchangePending)
	require.Equal(t, []string{"SYS?"}, transport.texts())

	c.OnIncoming("+391234", "STATUS:ON&SCE=Casa#")
	select {
	case r := <-resolved:
		require.Equal(t, smsproto.KindStatus, r.Kind)
		require.Equal(t, smsproto.StatusArmed, r.Status)
	case <-time.After(time.Second):
		t.Fatal("exchange never resolved")
	}
	require.False(t, c.Pending())
}

func TestSendTransportError(t *testing.T) {
	transport := &fakeTransport{err: errors.New("no signal")}
	c := New(transport, &fakeStore{})

	err := c.Send(smsproto.StatusQuery{}, time.Minute, nil, nil)

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	require.False(t, c.Pending())
}

func TestUnrecognizedDoesNotResolve(t *testing.T) {
	transport := &fakeTransport{}
	c := New(transport, &fakeStore{})

	resolved := make(chan smsproto.Response, 1)
	require.NoError(t, c.Send(smsproto.StatusQuery{}, time.Minute, func(r smsproto.Response) {
		resolved <- r
	}, nil))

	// some panels send free-text log lines before the real reply
	c.OnIncoming("+391234", "power restored")
	require.True(t, c.Pending())
	require.Empty(t, resolved)

	c.OnIncoming("+391234", "STATUS:OFF#")
	select {
	case r := <-resolved:
		require.Equal(t, smsproto.StatusDisarmed, r.Status)
	case <-time.After(time.Second):
		t.Fatal("exchange never resolved")
	}
}

func TestSendTimeout(t *testing.T) {
	transport := &fakeTransport{}
	c := New(transport, &fakeStore{})

	timedOut := make(chan struct{})
	require.NoError(t, c.Send(smsproto.Disarm{}, 10*time.Millisecond, func(smsproto.Response) {
		t.Error("resolved after timeout")
	}, func() {
		close(timedOut)
	}))

	select {
	case <-timedOut:
	case <-time.After(time.Second):
		t.Fatal("timeout never fired")
	}
	require.False(t, c.Pending())

	// a late reply is now unattributable and must not resolve anything
	c.OnIncoming("+391234", "OK:OFF#")
}

func TestCancel(t *testing.T) {
	transport := &fakeTransport{}
	c := New(transport, &fakeStore{})

	// cancelling with nothing pending is a no-op
	c.Cancel()

	require.NoError(t, c.Send(smsproto.Disarm{}, 50*time.Millisecond, func(smsproto.Response) {
		t.Error("resolved after cancel")
	}, func() {
		t.Error("timed out after cancel")
	}))
	c.Cancel()
	c.Cancel()
	require.False(t, c.Pending())

	// neither callback may fire, even once the timer window passes
	time.Sleep(100 * time.Millisecond)
}

func TestPassiveStatusBroadcast(t *testing.T) {
	transport := &fakeTransport{}
	store := &fakeStore{}
	var handled sync.WaitGroup
	handled.Add(1)
	c := New(transport, store, WithUnsolicitedHandler(func(sender string, resp smsproto.Response) {
		defer handled.Done()
		require.Equal(t, "+391234", sender)
		require.Equal(t, smsproto.StatusArmed, resp.Status)
	}))

	c.OnIncoming("+391234", "SYS: ON\nSCE:Casa\nZONES:1,2\n230V: OK")
	handled.Wait()

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Equal(t, smsproto.StatusArmed, store.status)
	require.Equal(t, "Casa", store.scenario)
	require.Equal(t, 1, store.statusPuts)
}

func TestDropsNonStatusWhenIdle(t *testing.T) {
	transport := &fakeTransport{}
	store := &fakeStore{}
	c := New(transport, store)

	c.OnIncoming("+391234", "OK:ON#")
	c.OnIncoming("+391234", "whatever")

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Zero(t, store.statusPuts)
}

func TestTransportHint(t *testing.T) {
	transport := &fakeTransport{}
	c := New(transport, &fakeStore{}, WithTransportHint("sim2"))

	require.NoError(t, c.Send(smsproto.StatusQuery{}, time.Minute, nil, nil))

	transport.mu.Lock()
	defer transport.mu.Unlock()
	require.Equal(t, []TransportHint{"sim2"}, transport.hints)
}

func TestOnSendOutcome(t *testing.T) {
	c := New(&fakeTransport{}, &fakeStore{})

	require.NoError(t, c.Send(smsproto.StatusQuery{}, time.Minute, nil, nil))

	// outcomes are telemetry only: they never resolve the exchange
	c.OnSendOutcome(1, nil)
	c.OnSendOutcome(2, errors.New("network rejected"))
	require.True(t, c.Pending())
}
