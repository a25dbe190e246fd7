package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/caarlos0/smsalarm/engine"
	"github.com/caarlos0/smsalarm/smsproto"
	"github.com/caarlos0/smsalarm/store"
)

// handlers expose the engine over a small local HTTP surface: commands
// are accepted, handed to the correlator and answered 202; the outcome
// lands in the store and the logs, the same way a panel reply would.
type handlers struct {
	correlator *engine.Correlator
	session    *engine.Session
	store      *store.Store
	timeout    time.Duration
}

func (h *handlers) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /status", h.status)
	mux.HandleFunc("POST /status/refresh", h.refresh)
	mux.HandleFunc("POST /arm", h.arm)
	mux.HandleFunc("POST /disarm", h.disarm)
	mux.HandleFunc("POST /configure", h.configure)
	mux.HandleFunc("POST /configure/cancel", h.cancelConfigure)
	mux.HandleFunc("GET /configure", h.configureProgress)
}

func (h *handlers) status(w http.ResponseWriter, _ *http.Request) {
	info, err := h.store.Panel()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	fmt.Fprintf(w, "status: %s\nscenario: %s\nversion: %s\nconfigured: %v\n",
		info.Status, info.Scenario, info.Version, info.Configured)
}

func (h *handlers) refresh(w http.ResponseWriter, _ *http.Request) {
	h.dispatch(w, smsproto.StatusQuery{})
}

func (h *handlers) arm(w http.ResponseWriter, r *http.Request) {
	if zones := r.URL.Query().Get("zones"); zones != "" {
		mask, err := parseZoneDigits(zones)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.dispatch(w, smsproto.ArmCustom{Zones: mask})
		return
	}
	slot, err := parseScenarioSlot(r.URL.Query().Get("scenario"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.dispatch(w, smsproto.ArmScenario{Slot: slot})
}

func (h *handlers) disarm(w http.ResponseWriter, _ *http.Request) {
	h.dispatch(w, smsproto.Disarm{})
}

func (h *handlers) configure(w http.ResponseWriter, _ *http.Request) {
	if err := h.session.Start(); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, engine.ErrSessionRunning) {
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *handlers) cancelConfigure(w http.ResponseWriter, _ *http.Request) {
	h.session.Cancel()
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) configureProgress(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprintf(w, "state: %s\npercent: %d\n", h.session.State(), h.session.Percent())
	for _, line := range h.session.Journal() {
		fmt.Fprintln(w, line)
	}
}

// dispatch hands one command to the correlator. The panel's reply (or its
// absence) is logged and, when it carries status, persisted; the HTTP
// caller only learns the command was accepted.
func (h *handlers) dispatch(w http.ResponseWriter, cmd smsproto.Command) {
	wire := cmd.Encode()
	err := h.correlator.Send(cmd, h.timeout, func(resp smsproto.Response) {
		h.resolved(wire, resp)
	}, func() {
		log.Warn("panel did not answer", "cmd", wire)
	})
	switch {
	case errors.Is(err, engine.ErrExchangePending):
		http.Error(w, err.Error(), http.StatusConflict)
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		w.WriteHeader(http.StatusAccepted)
	}
}

func (h *handlers) resolved(wire string, resp smsproto.Response) {
	if resp.Kind == smsproto.KindError {
		err := &engine.PanelError{Code: resp.ErrorCode}
		log.Error("panel refused command", "cmd", wire, "err", err)
		return
	}
	log.Info("panel answered",
		"cmd", wire,
		"kind", resp.Kind.String(),
		"status", resp.Status.String(),
	)
	if resp.Kind == smsproto.KindAck || resp.Kind == smsproto.KindStatus {
		if err := h.store.PutStatus(resp.Status, resp.Scenario); err != nil {
			log.Error("could not persist status", "err", err)
		}
	}
}
