package bridge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/calmwater/bestway-bridge/internal/bestway"
)

// fakeSpaClient implements SpaClient in memory.
type fakeSpaClient struct {
	mu sync.Mutex

	token    string
	devices  map[string]bestway.Device
	statuses map[string]bestway.DeviceStatus

	fetchErrs []error // consumed one per FetchData call, nil entries succeed

	bindingsCalls int
	fetchCalls    int
}

func (f *fakeSpaClient) SetUserToken(token string) {
	f.mu.Lock()
	f.token = token
	f.mu.Unlock()
}

func (f *fakeSpaClient) RefreshBindings(ctx context.Context) error {
	f.mu.Lock()
	f.bindingsCalls++
	f.mu.Unlock()
	return nil
}

func (f *fakeSpaClient) FetchData(ctx context.Context) (map[string]bestway.DeviceStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if len(f.fetchErrs) > 0 {
		err := f.fetchErrs[0]
		f.fetchErrs = f.fetchErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	out := make(map[string]bestway.DeviceStatus, len(f.statuses))
	for id, s := range f.statuses {
		out[id] = s
	}
	return out, nil
}

func (f *fakeSpaClient) Devices() map[string]bestway.Device {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]bestway.Device, len(f.devices))
	for id, d := range f.devices {
		out[id] = d
	}
	return out
}

func (f *fakeSpaClient) Device(id string) (bestway.Device, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.devices[id]
	return d, ok
}

func (f *fakeSpaClient) Status(id string) (bestway.DeviceStatus, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.statuses[id]
	return s, ok
}

func (f *fakeSpaClient) Send(ctx context.Context, deviceID string, cmd bestway.Command, value any) error {
	return nil
}

// fakePublisher records publishes and signals on the first state.
type fakePublisher struct {
	mu           sync.Mutex
	states       []bestway.Device
	availability map[string]bool
	firstState   chan struct{}
	once         sync.Once
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{
		availability: make(map[string]bool),
		firstState:   make(chan struct{}),
	}
}

func (p *fakePublisher) PublishState(device bestway.Device, status bestway.DeviceStatus) error {
	p.mu.Lock()
	p.states = append(p.states, device)
	p.mu.Unlock()
	p.once.Do(func() { close(p.firstState) })
	return nil
}

func (p *fakePublisher) PublishAvailability(device bestway.Device, online bool) error {
	p.mu.Lock()
	p.availability[device.ID] = online
	p.mu.Unlock()
	return nil
}

func testTokenManager(t *testing.T) (*TokenManager, *int) {
	t.Helper()
	logins := 0
	tm := NewTokenManager("http://unused", "u", "p", time.Second, time.Hour)
	tm.login = func(ctx context.Context) (bestway.UserToken, error) {
		logins++
		return bestway.UserToken{Token: "tok", Expiry: time.Now().Add(24 * time.Hour).Unix()}, nil
	}
	return tm, &logins
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestPollerPublishesSnapshots(t *testing.T) {
	now := time.Now()
	client := &fakeSpaClient{
		devices: map[string]bestway.Device{
			"spa1":  {ID: "spa1", ProductName: "Airjet", Alias: "Garden"},
			"ghost": {ID: "ghost", ProductName: "Airjet"},
		},
		statuses: map[string]bestway.DeviceStatus{
			"spa1": {Timestamp: now.Unix(), Attrs: bestway.Attrs{"power": float64(1)}},
		},
	}
	tm, _ := testTokenManager(t)
	pub := newFakePublisher()

	p := NewPoller(client, tm, []Publisher{pub}, PollerOptions{
		StatusInterval:   10 * time.Millisecond,
		BindingsInterval: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	waitFor(t, pub.firstState, "first state publish")
	cancel()
	waitFor(t, done, "poller shutdown")

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.states) == 0 || pub.states[0].ID != "spa1" {
		t.Fatalf("unexpected published states: %v", pub.states)
	}
	if online := pub.availability["spa1"]; !online {
		t.Error("spa1 published as offline despite a fresh timestamp")
	}
	if online, ok := pub.availability["ghost"]; !ok || online {
		t.Error("device without status should be published offline")
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if client.token != "tok" {
		t.Errorf("client token = %q, want tok", client.token)
	}
	if client.bindingsCalls != 1 {
		t.Errorf("bindings refreshed %d times in one window, want 1", client.bindingsCalls)
	}
}

func TestPollerAuthErrorTriggersRelogin(t *testing.T) {
	client := &fakeSpaClient{
		devices:   map[string]bestway.Device{},
		statuses:  map[string]bestway.DeviceStatus{},
		fetchErrs: []error{bestway.ErrTokenInvalid, nil},
	}
	tm, logins := testTokenManager(t)

	recovered := make(chan struct{})
	var once sync.Once
	origLogin := tm.login
	tm.login = func(ctx context.Context) (bestway.UserToken, error) {
		tok, err := origLogin(ctx)
		if *logins >= 2 {
			once.Do(func() { close(recovered) })
		}
		return tok, err
	}

	p := NewPoller(client, tm, nil, PollerOptions{
		StatusInterval: 10 * time.Millisecond,
		BackoffInitial: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	waitFor(t, recovered, "re-login after token rejection")
	cancel()
	waitFor(t, done, "poller shutdown")

	if *logins < 2 {
		t.Errorf("login called %d times, want at least 2", *logins)
	}
}

func TestPollerStopsOnCancel(t *testing.T) {
	client := &fakeSpaClient{devices: map[string]bestway.Device{}, statuses: map[string]bestway.DeviceStatus{}}
	tm, _ := testTokenManager(t)

	p := NewPoller(client, tm, nil, PollerOptions{StatusInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	// Give the first cycle a moment, then cancel mid-sleep.
	time.Sleep(50 * time.Millisecond)
	cancel()
	waitFor(t, done, "poller shutdown")
}
