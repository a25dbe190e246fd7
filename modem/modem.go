// Package modem adapts a GSM modem in AT text mode to the engine's
// Transport seam: outgoing bodies go through AT+CMGS, incoming messages
// are announced by +CMTI, read back with AT+CMGR and handed to the
// registered handler. OS-level send outcomes are reported separately from
// panel content, which is what the engine expects.
package modem

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	logp "github.com/charmbracelet/log"
	"go.uber.org/atomic"

	"github.com/caarlos0/smsalarm/engine"
)

var log = logp.NewWithOptions(os.Stderr, logp.Options{
	ReportTimestamp: true,
	TimeFormat:      time.Kitchen,
	Prefix:          "modem",
})

var (
	ErrNoDialer       = errors.New("no dialer configured")
	ErrNoRecipient    = errors.New("no panel number configured")
	ErrClosed         = errors.New("modem is closed")
	ErrCommandTimeout = errors.New("no final response from modem")
	ErrSIMPinRequired = errors.New("SIM PIN required")
)

// IncomingFunc receives every SMS the modem picks up.
type IncomingFunc func(sender, text string)

// OutcomeFunc receives the OS-level result of a transmit ticket.
type OutcomeFunc func(ticket engine.Ticket, err error)

type Config struct {
	Dialer    Dialer
	Recipient string // panel phone number, international format
	SIMPin    string
	ATTimeout time.Duration

	OnIncoming IncomingFunc
	OnOutcome  OutcomeFunc
}

func (c *Config) setDefaults() {
	if c.ATTimeout == 0 {
		c.ATTimeout = 10 * time.Second
	}
}

type commandRequest struct {
	cmd  string
	raw  bool // write bytes as-is, no CRLF appended
	resp chan commandResponse
}

type commandResponse struct {
	lines []string
	err   error
}

type Modem struct {
	transport io.ReadWriteCloser
	cfg       Config

	lines    chan string
	commands chan *commandRequest
	urcs     chan int

	ticket atomic.Int64
	closed atomic.Bool
	sendMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

// New dials the modem and brings it into text mode with message
// indications enabled. The event loop starts before initialization since
// init itself runs AT commands through it.
func New(cfg Config) (*Modem, error) {
	if cfg.Dialer == nil {
		return nil, ErrNoDialer
	}
	cfg.setDefaults()

	transport, err := cfg.Dialer.Dial()
	if err != nil {
		return nil, fmt.Errorf("could not dial modem: %w", err)
	}

	m := &Modem{
		transport: transport,
		cfg:       cfg,
		lines:     make(chan string, 16),
		commands:  make(chan *commandRequest),
		urcs:      make(chan int, 16),
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())

	go m.read()
	go m.loop()
	go m.fetchLoop()

	if err := m.init(); err != nil {
		_ = m.Close()
		return nil, fmt.Errorf("could not initialize modem: %w", err)
	}
	return m, nil
}

func (m *Modem) init() error {
	if _, err := m.exec("ATE0", false); err != nil {
		return err
	}
	lines, err := m.exec("AT+CPIN?", false)
	if err != nil {
		return err
	}
	for _, line := range lines {
		if strings.Contains(line, "SIM PIN") {
			if m.cfg.SIMPin == "" {
				return ErrSIMPinRequired
			}
			if _, err := m.exec("AT+CPIN="+m.cfg.SIMPin, false); err != nil {
				return err
			}
		}
	}
	if _, err := m.exec("AT+CMGF=1", false); err != nil {
		return err
	}
	if _, err := m.exec("AT+CNMI=2,1,0,0,0", false); err != nil {
		return err
	}
	log.Info("modem ready", "recipient", m.cfg.Recipient)
	return nil
}

// Transmit implements engine.Transport. It queues the message and returns
// a ticket immediately; the network-layer outcome comes back through the
// OnOutcome callback and is never used for reply correlation.
func (m *Modem) Transmit(text string, hint engine.TransportHint) (engine.Ticket, error) {
	if m.closed.Load() {
		return 0, ErrClosed
	}
	if m.cfg.Recipient == "" {
		return 0, ErrNoRecipient
	}
	_ = hint // single modem, single SIM: nothing to pick

	ticket := engine.Ticket(m.ticket.Inc())
	go func() {
		// one CMGS at a time: the prompt and body of a send are two exec
		// calls and concurrent sends must not interleave them
		m.sendMu.Lock()
		err := m.sendSMS(m.cfg.Recipient, text)
		m.sendMu.Unlock()
		if err != nil {
			log.Error("could not send", "ticket", ticket, "err", err)
		}
		if m.cfg.OnOutcome != nil {
			m.cfg.OnOutcome(ticket, err)
		}
	}()
	return ticket, nil
}

func (m *Modem) sendSMS(recipient, text string) error {
	lines, err := m.exec(fmt.Sprintf(`AT+CMGS="%s"`, recipient), false)
	if err != nil {
		return fmt.Errorf("could not start send: %w", err)
	}
	if len(lines) == 0 || lines[len(lines)-1] != prompt {
		return fmt.Errorf("no SMS prompt, got %q", lines)
	}
	if _, err := m.exec(text+ctrlZ, true); err != nil {
		return fmt.Errorf("could not send body: %w", err)
	}
	return nil
}

func (m *Modem) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	m.cancel()
	return m.transport.Close()
}

// read pumps transport bytes into line tokens until the transport closes.
func (m *Modem) read() {
	scanner := bufio.NewScanner(m.transport)
	scanner.Split(scanAT)
	for scanner.Scan() {
		select {
		case m.lines <- scanner.Text():
		case <-m.ctx.Done():
			return
		}
	}
	close(m.lines)
}

// loop owns the transport: every write and every response line passes
// through here, so commands and unsolicited indications cannot race.
func (m *Modem) loop() {
	for {
		select {
		case <-m.ctx.Done():
			return
		case line, ok := <-m.lines:
			if !ok {
				return
			}
			m.handleURC(line)
		case req := <-m.commands:
			m.runCommand(req)
		}
	}
}

func (m *Modem) runCommand(req *commandRequest) {
	payload := req.cmd
	if !req.raw {
		payload += crlf
	}
	if _, err := m.transport.Write([]byte(payload)); err != nil {
		req.resp <- commandResponse{err: err}
		return
	}

	var lines []string
	timer := time.NewTimer(m.cfg.ATTimeout)
	defer timer.Stop()
	for {
		select {
		case <-m.ctx.Done():
			req.resp <- commandResponse{err: ErrClosed}
			return
		case <-timer.C:
			req.resp <- commandResponse{lines: lines, err: ErrCommandTimeout}
			return
		case line, ok := <-m.lines:
			switch {
			case !ok:
				req.resp <- commandResponse{lines: lines, err: io.EOF}
				return
			case line == "":
			case isURC(line):
				// indications interleave freely with command output
				m.handleURC(line)
			case line == respOK:
				req.resp <- commandResponse{lines: lines}
				return
			case isFinal(line):
				req.resp <- commandResponse{lines: lines, err: fmt.Errorf("modem said %q", line)}
				return
			case line == prompt:
				lines = append(lines, line)
				req.resp <- commandResponse{lines: lines}
				return
			default:
				lines = append(lines, line)
			}
		}
	}
}

func (m *Modem) exec(cmd string, raw bool) ([]string, error) {
	req := &commandRequest{cmd: cmd, raw: raw, resp: make(chan commandResponse, 1)}
	select {
	case m.commands <- req:
	case <-m.ctx.Done():
		return nil, ErrClosed
	}
	select {
	case resp := <-req.resp:
		return resp.lines, resp.err
	case <-m.ctx.Done():
		return nil, ErrClosed
	}
}

func (m *Modem) handleURC(line string) {
	if !isURC(line) {
		if line != "" {
			log.Debug("ignoring line outside a command", "line", line)
		}
		return
	}
	idx, ok := parseCMTI(line)
	if !ok {
		log.Warn("malformed message indication", "line", line)
		return
	}
	select {
	case m.urcs <- idx:
	default:
		log.Warn("message indication dropped, queue full", "index", idx)
	}
}

// fetchLoop turns +CMTI indications into delivered messages. It runs off
// the main loop because reading a message is itself an AT command.
func (m *Modem) fetchLoop() {
	for {
		select {
		case <-m.ctx.Done():
			return
		case idx := <-m.urcs:
			m.fetch(idx)
		}
	}
}

func (m *Modem) fetch(idx int) {
	lines, err := m.exec(fmt.Sprintf("AT+CMGR=%d", idx), false)
	if err != nil {
		log.Error("could not read message", "index", idx, "err", err)
		return
	}
	var sender string
	var body []string
	for _, line := range lines {
		if strings.HasPrefix(line, cmgrHeader) {
			sender = parseCMGRSender(line)
			continue
		}
		body = append(body, line)
	}
	text := strings.Join(body, "\n")
	log.Debug("incoming", "sender", sender, "text", text)
	if m.cfg.OnIncoming != nil {
		m.cfg.OnIncoming(sender, text)
	}
	if _, err := m.exec(fmt.Sprintf("AT+CMGD=%d", idx), false); err != nil {
		log.Warn("could not delete message", "index", idx, "err", err)
	}
}
