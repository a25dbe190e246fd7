package engine

import (
	"os"
	"sync"
	"time"

	logp "github.com/charmbracelet/log"

	"github.com/caarlos0/smsalarm/smsproto"
)

var log = logp.NewWithOptions(os.Stderr, logp.Options{
	ReportTimestamp: true,
	TimeFormat:      time.Kitchen,
	Prefix:          "engine",
})

// DefaultReplyTimeout is how long the engine waits for the panel to answer
// a command. Panel round-trips over SMS take tens of seconds, so the same
// window serves ordinary commands and configuration steps alike.
const DefaultReplyTimeout = 60 * time.Second

// DefaultMaxRetries is a budget for an outer retry policy. The engine
// itself never retries: a timeout or desync terminates the exchange and
// retrying is the caller's decision.
const DefaultMaxRetries = 3

// ResolveFunc receives the decoded reply that closed an exchange.
type ResolveFunc func(resp smsproto.Response)

// TimeoutFunc fires when an exchange expires with no recognized reply.
type TimeoutFunc func()

// UnsolicitedFunc receives spontaneous panel messages decoded outside any
// exchange, status broadcasts mostly.
type UnsolicitedFunc func(sender string, resp smsproto.Response)

type pendingExchange struct {
	cmd        smsproto.Command
	sentAt     time.Time
	timer      *time.Timer
	onResolved ResolveFunc
	onTimeout  TimeoutFunc
}

// Correlator enforces the single-outstanding-request discipline over the
// SMS transport. The wire format carries no message IDs, so a sent command
// and its reply are matched purely by "one in flight at a time" plus
// response-content classification. All four mutations of the pending slot
// (Send, OnIncoming, Cancel, timer expiry) serialize on one mutex.
type Correlator struct {
	mu        sync.Mutex
	transport Transport
	store     Store
	hint      TransportHint
	pending   *pendingExchange

	onUnsolicited UnsolicitedFunc
}

// Option configures a Correlator.
type Option func(*Correlator)

// WithTransportHint routes every transmit through the given transport
// hint, e.g. a SIM slot preference.
func WithTransportHint(hint TransportHint) Option {
	return func(c *Correlator) { c.hint = hint }
}

// WithUnsolicitedHandler registers the callback slot for spontaneous
// panel messages. There is exactly one; re-registering replaces it.
func WithUnsolicitedHandler(fn UnsolicitedFunc) Option {
	return func(c *Correlator) { c.onUnsolicited = fn }
}

func New(transport Transport, store Store, opts ...Option) *Correlator {
	c := &Correlator{
		transport: transport,
		store:     store,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send encodes cmd, hands it to the transport and arms the reply timer.
// It fails immediately with ErrExchangePending if an exchange is in
// flight, and with a *TransportError (no timer armed) if the transport
// refuses the message. The caller is notified asynchronously through
// exactly one of onResolved and onTimeout.
func (c *Correlator) Send(
	cmd smsproto.Command,
	timeout time.Duration,
	onResolved ResolveFunc,
	onTimeout TimeoutFunc,
) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending != nil {
		return ErrExchangePending
	}

	text := cmd.Encode()
	log.Debug("send", "text", text)
	requestCounter.Inc()

	ticket, err := c.transport.Transmit(text, c.hint)
	if err != nil {
		transportErrorCounter.Inc()
		return &TransportError{Err: err}
	}
	log.Debug("transmitted", "ticket", ticket)

	p := &pendingExchange{
		cmd:        cmd,
		sentAt:     time.Now(),
		onResolved: onResolved,
		onTimeout:  onTimeout,
	}
	p.timer = time.AfterFunc(timeout, func() { c.expire(p) })
	c.pending = p
	pendingGauge.Set(1)
	return nil
}

// OnIncoming is called by the transport adapter for every SMS that
// arrives, from whatever goroutine the platform uses. Recognized replies
// close the pending exchange; unrecognized text while an exchange is
// pending is dropped without resolving it, because some panels send
// free-text log lines before the real reply. With nothing pending, status
// broadcasts are decoded and persisted, everything else is dropped.
func (c *Correlator) OnIncoming(sender, text string) {
	resp := smsproto.Decode(text)

	c.mu.Lock()
	p := c.pending
	if p == nil {
		c.mu.Unlock()
		c.handleUnsolicited(sender, text, resp)
		return
	}
	if resp.Kind == smsproto.KindUnrecognized {
		c.mu.Unlock()
		log.Debug("ignoring unrecognized text while waiting", "sender", sender, "text", text)
		droppedCounter.Inc()
		return
	}
	p.timer.Stop()
	c.pending = nil
	pendingGauge.Set(0)
	c.mu.Unlock()

	log.Debug("resolved", "kind", resp.Kind.String(), "after", time.Since(p.sentAt))
	if p.onResolved != nil {
		p.onResolved(resp)
	}
}

// Cancel clears the pending exchange and its timer without invoking
// either callback. Safe to call with nothing pending.
func (c *Correlator) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return
	}
	c.pending.timer.Stop()
	c.pending = nil
	pendingGauge.Set(0)
	log.Debug("exchange cancelled")
}

// Pending reports whether an exchange is in flight.
func (c *Correlator) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// OnSendOutcome records the OS-level delivery report for a transmit
// ticket. It is telemetry only: only panel content arriving through
// OnIncoming can resolve an exchange.
func (c *Correlator) OnSendOutcome(ticket Ticket, err error) {
	if err != nil {
		sendOutcomeErrorCounter.Inc()
		log.Warn("send failed at the OS layer", "ticket", ticket, "err", err)
		return
	}
	log.Debug("send confirmed", "ticket", ticket)
}

func (c *Correlator) expire(p *pendingExchange) {
	c.mu.Lock()
	if c.pending != p {
		// resolved or cancelled between the timer firing and us getting
		// the lock
		c.mu.Unlock()
		return
	}
	c.pending = nil
	pendingGauge.Set(0)
	c.mu.Unlock()

	timeoutCounter.Inc()
	log.Warn("exchange timed out", "cmd", p.cmd.Encode(), "after", time.Since(p.sentAt))
	if p.onTimeout != nil {
		p.onTimeout()
	}
}

func (c *Correlator) handleUnsolicited(sender, text string, resp smsproto.Response) {
	if resp.Kind != smsproto.KindStatus {
		droppedCounter.Inc()
		log.Debug("dropping message with no exchange pending", "sender", sender, "text", text)
		return
	}
	unsolicitedCounter.Inc()
	log.Info("spontaneous status broadcast",
		"sender", sender,
		"status", resp.Status.String(),
		"scenario", resp.Scenario,
	)
	if c.store != nil {
		if err := c.store.PutStatus(resp.Status, resp.Scenario); err != nil {
			log.Error("could not persist status broadcast", "err", err)
		}
	}
	if c.onUnsolicited != nil {
		c.onUnsolicited(sender, resp)
	}
}
