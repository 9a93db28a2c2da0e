package bridge

import (
	"context"
	"time"

	"github.com/calmwater/bestway-bridge/internal/bestway"
)

// Poller drives the cloud client on a fixed cadence and fans reconciled
// snapshots out to the registered publishers.
//
// Two cadences run inside one loop: device status every cycle and the
// bindings list on a much slower interval. Failed cycles back off
// exponentially up to a cap so a cloud outage does not hammer the
// rate-limited API; the first successful cycle resets the backoff.
type Poller struct {
	client SpaClient
	tokens *TokenManager
	pubs   []Publisher

	statusInterval   time.Duration
	bindingsInterval time.Duration
	backoffInitial   time.Duration
	backoffMax       time.Duration

	logger Logger
	now    func() time.Time
}

// PollerOptions configures a Poller.
type PollerOptions struct {
	StatusInterval   time.Duration
	BindingsInterval time.Duration
	BackoffInitial   time.Duration
	BackoffMax       time.Duration
	Logger           Logger
}

// NewPoller creates a poller. Publishers may be nil-free but empty; the
// poller still keeps the client's cache reconciled for API consumers.
func NewPoller(client SpaClient, tokens *TokenManager, pubs []Publisher, opts PollerOptions) *Poller {
	if opts.StatusInterval <= 0 {
		opts.StatusInterval = 30 * time.Second
	}
	if opts.BindingsInterval <= 0 {
		opts.BindingsInterval = 10 * time.Minute
	}
	if opts.BackoffInitial <= 0 {
		opts.BackoffInitial = 5 * time.Second
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = 5 * time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Poller{
		client:           client,
		tokens:           tokens,
		pubs:             pubs,
		statusInterval:   opts.StatusInterval,
		bindingsInterval: opts.BindingsInterval,
		backoffInitial:   opts.BackoffInitial,
		backoffMax:       opts.BackoffMax,
		logger:           logger,
		now:              time.Now,
	}
}

// Run polls until the context is cancelled. It always returns
// ctx.Err()'s cause; a cancelled poller is not an error condition.
func (p *Poller) Run(ctx context.Context) error {
	var lastBindings time.Time
	backoff := p.backoffInitial

	for {
		err := p.cycle(ctx, &lastBindings)
		switch {
		case err == nil:
			backoff = p.backoffInitial
			if !p.sleep(ctx, p.statusInterval) {
				return ctx.Err()
			}
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			p.logger.Error("poll cycle failed", "error", err, "retry_in", backoff.String())
			if bestway.IsAuthError(err) {
				p.tokens.Invalidate()
			}
			if !p.sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff *= 2
			if backoff > p.backoffMax {
				backoff = p.backoffMax
			}
		}
	}
}

// cycle performs one poll: token, bindings when due, status, publish.
func (p *Poller) cycle(ctx context.Context, lastBindings *time.Time) error {
	token, err := p.tokens.EnsureValid(ctx)
	if err != nil {
		return err
	}
	p.client.SetUserToken(token)

	if p.now().Sub(*lastBindings) >= p.bindingsInterval {
		if err := p.client.RefreshBindings(ctx); err != nil {
			return err
		}
		*lastBindings = p.now()
	}

	statuses, err := p.client.FetchData(ctx)
	if err != nil {
		return err
	}

	p.publish(statuses)
	return nil
}

// publish fans the snapshot out to every publisher. Publish failures
// are logged, not propagated: a dead MQTT broker must not stall
// reconciliation for API consumers.
func (p *Poller) publish(statuses map[string]bestway.DeviceStatus) {
	now := p.now()
	for id, device := range p.client.Devices() {
		status, ok := statuses[id]
		if !ok {
			// Bound but never reported; publish availability only.
			for _, pub := range p.pubs {
				if err := pub.PublishAvailability(device, false); err != nil {
					p.logger.Warn("publishing availability failed", "error", err)
				}
			}
			continue
		}

		for _, pub := range p.pubs {
			if err := pub.PublishState(device, status); err != nil {
				p.logger.Warn("publishing state failed", "error", err)
			}
			if err := pub.PublishAvailability(device, status.Online(now)); err != nil {
				p.logger.Warn("publishing availability failed", "error", err)
			}
		}
	}
}

// sleep waits for d or context cancellation, reporting false when
// cancelled.
func (p *Poller) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
