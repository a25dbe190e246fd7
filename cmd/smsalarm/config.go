package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/caarlos0/smsalarm/smsproto"
)

type Config struct {
	PanelNumber   string        `env:"PANEL_NUMBER"`
	ModemPort     string        `env:"MODEM_PORT,notEmpty"`
	BaudRate      int           `env:"BAUD_RATE"      envDefault:"115200"`
	SIMPin        string        `env:"SIM_PIN"`
	DBPath        string        `env:"DB_PATH"        envDefault:"smsalarm.db"`
	Listen        string        `env:"LISTEN"         envDefault:":9009"`
	ReplyTimeout  time.Duration `env:"REPLY_TIMEOUT"  envDefault:"60s"`
	TransportHint string        `env:"TRANSPORT_HINT"`
}

func parseScenarioSlot(s string) (int, error) {
	slot, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid scenario %q", s)
	}
	if slot < 1 || slot > smsproto.MaxScenarios {
		return 0, fmt.Errorf("scenario %d out of range 1..%d", slot, smsproto.MaxScenarios)
	}
	return slot, nil
}

func parseZoneDigits(s string) (uint8, error) {
	if s == "" {
		return 0, fmt.Errorf("no zones selected")
	}
	for _, c := range s {
		if c < '1' || c > '8' {
			return 0, fmt.Errorf("invalid zone %q", string(c))
		}
	}
	mask := smsproto.MaskFromDigits(s)
	if smsproto.ZoneDigits(mask) != s {
		return 0, fmt.Errorf("zones %q must be ascending and unique", s)
	}
	return mask, nil
}
