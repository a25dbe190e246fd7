package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cenkalti/backoff/v4"
	logp "github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/caarlos0/smsalarm/engine"
	"github.com/caarlos0/smsalarm/modem"
	"github.com/caarlos0/smsalarm/smsproto"
	"github.com/caarlos0/smsalarm/store"
)

var log = logp.NewWithOptions(os.Stderr, logp.Options{
	ReportTimestamp: true,
	TimeFormat:      time.Kitchen,
	Prefix:          "smsalarm",
})

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	log.Info("smsalarm", "version", version, "commit", commit, "date", date)

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatal(
			"could not parse env",
			"err",
			strings.TrimPrefix(strings.ReplaceAll(err.Error(), "; ", "\n"), "env: ")+"\n",
		)
	}
	if cfg.PanelNumber == "" {
		log.Warn("no PANEL_NUMBER set, commands will fail until one is configured")
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal("could not open record store", "err", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("could not close record store", "err", err)
		}
	}()

	var correlator *engine.Correlator

	// modems come up slowly and flakily after power-on, so keep trying
	// for a while before giving up
	var mdm *modem.Modem
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = time.Second * 5
	bo.MaxElapsedTime = time.Minute
	if err := backoff.RetryNotify(func() error {
		var err error
		mdm, err = modem.New(modem.Config{
			Dialer:    modem.SerialDialer{Port: cfg.ModemPort, Baud: cfg.BaudRate},
			Recipient: cfg.PanelNumber,
			SIMPin:    cfg.SIMPin,
			// the correlator is built right after the modem; anything
			// arriving in between has nobody waiting for it anyway
			OnIncoming: func(sender, text string) {
				if correlator != nil {
					correlator.OnIncoming(sender, text)
				}
			},
			OnOutcome: func(ticket engine.Ticket, err error) {
				if correlator != nil {
					correlator.OnSendOutcome(ticket, err)
				}
			},
		})
		return err
	}, bo, func(err error, _ time.Duration) {
		log.Error("could not bring the modem up", "err", err)
	}); err != nil {
		log.Fatal("giving up on the modem", "err", err)
	}
	defer func() {
		if err := mdm.Close(); err != nil {
			log.Error("could not close modem", "err", err)
		}
	}()

	correlator = engine.New(mdm, db,
		engine.WithTransportHint(engine.TransportHint(cfg.TransportHint)),
		engine.WithUnsolicitedHandler(func(sender string, resp smsproto.Response) {
			log.Info("panel broadcast", "sender", sender, "status", resp.Status.String())
		}),
	)

	session := engine.NewSession(correlator, db,
		engine.WithStepTimeout(cfg.ReplyTimeout),
		engine.WithProgress(func(step, percent int) {
			log.Info("configuration progress", "step", step, "percent", percent)
		}),
		engine.WithDone(func(err error) {
			if err != nil {
				log.Error("configuration failed", "err", err)
				return
			}
			log.Info("configuration complete")
		}),
	)

	h := &handlers{
		correlator: correlator,
		session:    session,
		store:      db,
		timeout:    cfg.ReplyTimeout,
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	h.register(mux)

	server := &http.Server{Addr: cfg.Listen, Handler: mux}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		log.Info("stopping server")
		signal.Stop(c)
		session.Cancel()
		correlator.Cancel()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error("could not shut down cleanly", "err", err)
		}
	}()

	log.Info("starting server", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server failed", "err", err)
	}
}
