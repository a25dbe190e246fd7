package smsproto

import (
	"regexp"
	"strings"

	"golang.org/x/exp/slices"
)

// Kind classifies an incoming SMS body by its leading characters.
type Kind int

const (
	KindUnrecognized Kind = iota
	KindConf1
	KindConf2
	KindConf3
	KindConf4
	KindConf5
	KindAck
	KindStatus
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindConf1, KindConf2, KindConf3, KindConf4, KindConf5:
		return "CONF" + string(rune('0'+int(k-KindConf1)+1))
	case KindAck:
		return "OK"
	case KindStatus:
		return "STATUS"
	case KindError:
		return "ERR"
	default:
		return "Unrecognized"
	}
}

// ConfKind returns the response kind that answers configuration step 1..5.
func ConfKind(step int) Kind {
	if step < 1 || step > 5 {
		return KindUnrecognized
	}
	return KindConf1 + Kind(step-1)
}

// ConfStep is the inverse of ConfKind, 0 for non-CONF kinds.
func (k Kind) ConfStep() int {
	if k < KindConf1 || k > KindConf5 {
		return 0
	}
	return int(k-KindConf1) + 1
}

// classification is ordered: first prefix match wins.
var prefixes = []struct {
	prefix string
	kind   Kind
}{
	{"CONF1:", KindConf1},
	{"CONF2:", KindConf2},
	{"CONF3:", KindConf3},
	{"CONF4:", KindConf4},
	{"CONF5:", KindConf5},
	{"OK:", KindAck},
	{"STATUS:", KindStatus},
	{"ERR:", KindError},
	// bare multi-line status form
	{"SYS:", KindStatus},
	{"SYS :", KindStatus},
}

// Classify inspects only the leading characters of text. It is safe to
// call on arbitrary input and always runs before Decode so callers can
// route by kind.
func Classify(text string) Kind {
	for _, p := range prefixes {
		if strings.HasPrefix(text, p.prefix) {
			return p.kind
		}
	}
	return KindUnrecognized
}

// Response is the decoded form of an incoming SMS body. Only the fields
// relevant to Kind are populated; decode failures inside a recognized kind
// leave the affected fields zeroed rather than failing the whole message.
type Response struct {
	Kind Kind

	// Continued reports a trailing '&' terminator: the panel intends to
	// send a follow-up part. Continued bodies are still decoded as final;
	// reassembly is not implemented.
	Continued bool

	// CONF1
	Version     string
	MainAccount bool
	Flags       Permissions

	Zones     []ZoneRecord     // CONF1
	Scenarios []ScenarioRecord // CONF2, CONF3
	Users     []UserRecord     // CONF4, CONF5

	// OK / STATUS
	Status   Status
	Scenario string
	ZonesRaw string

	// ERR
	ErrorCode string
}

// OK reports whether the panel answered without an explicit error.
func (r Response) OK() bool {
	return r.Kind != KindError && r.Kind != KindUnrecognized
}

var versionRe = regexp.MustCompile(`^\d+\.\d+$`)

// Decode parses an incoming SMS body into a Response. It never fails:
// unknown kinds yield KindUnrecognized, and malformed fields inside a
// recognized kind are skipped, yielding a partial result.
func Decode(text string) Response {
	r := Response{Kind: Classify(text)}

	// strip a single trailing terminator
	if n := len(text); n > 0 {
		switch text[n-1] {
		case '#':
			text = text[:n-1]
		case '&':
			text = text[:n-1]
			r.Continued = true
		}
	}

	switch r.Kind {
	case KindConf1:
		decodeConf1(&r, strings.TrimPrefix(text, "CONF1:"))
	case KindConf2, KindConf3:
		decodeScenarios(&r, text[len("CONF2:"):])
	case KindConf4, KindConf5:
		decodeUsers(&r, text[len("CONF4:"):])
	case KindAck:
		decodeAck(&r, strings.TrimPrefix(text, "OK:"))
	case KindStatus:
		if strings.HasPrefix(text, "STATUS:") {
			decodeStatus(&r, strings.TrimPrefix(text, "STATUS:"))
		} else {
			decodeBareStatus(&r, text)
		}
	case KindError:
		r.ErrorCode = strings.TrimPrefix(text, "ERR:")
	}
	return r
}

// CONF1 carries '&'-joined fields: the firmware version, a WORD.BBBB
// account/permission field, and Zn=name zone fields. Anything else is
// ignored for forward compatibility.
func decodeConf1(r *Response, body string) {
	for _, field := range strings.Split(body, "&") {
		switch {
		case versionRe.MatchString(field):
			r.Version = field
		case !strings.Contains(field, "=") && strings.Contains(field, "."):
			word, bits, _ := strings.Cut(field, ".")
			if word == "MAIN" {
				r.MainAccount = true
			}
			r.Flags = ParsePermissions(bits)
		case strings.HasPrefix(field, "Z") && strings.Contains(field, "="):
			key, name, _ := strings.Cut(field, "=")
			slot, ok := parseSlot(key[1:])
			if !ok || slot < 1 || slot > MaxZones {
				continue
			}
			r.Zones = append(r.Zones, ZoneRecord{
				Slot:    slot,
				Name:    name,
				Enabled: name != Disabled,
			})
		}
	}
	// field order on the wire is not guaranteed
	slices.SortFunc(r.Zones, func(a, b ZoneRecord) int { return a.Slot - b.Slot })
}

// CONF2/CONF3 carry '&'-joined Snn=name fields, two-digit zero-padded
// slots. Predefined scenarios only; zone masks are not on the wire.
func decodeScenarios(r *Response, body string) {
	for _, field := range strings.Split(body, "&") {
		key, name, found := strings.Cut(field, "=")
		if !found || !strings.HasPrefix(key, "S") {
			continue
		}
		slot, ok := parseSlot(key[1:])
		if !ok || slot < 1 || slot > MaxScenarios {
			continue
		}
		r.Scenarios = append(r.Scenarios, ScenarioRecord{
			Slot:    slot,
			Name:    name,
			Enabled: name != Disabled,
		})
	}
	slices.SortFunc(r.Scenarios, func(a, b ScenarioRecord) int { return a.Slot - b.Slot })
}

// CONF4/CONF5 carry '&'-joined Rnn=name fields plus the RJO=name joker
// user, which maps to slot 0.
func decodeUsers(r *Response, body string) {
	for _, field := range strings.Split(body, "&") {
		key, name, found := strings.Cut(field, "=")
		if !found {
			continue
		}
		if key == "RJO" {
			r.Users = append(r.Users, UserRecord{
				Slot:    JokerSlot,
				Name:    name,
				Enabled: name != Disabled,
				IsJoker: true,
			})
			continue
		}
		if !strings.HasPrefix(key, "R") {
			continue
		}
		slot, ok := parseSlot(key[1:])
		if !ok || slot < 1 || slot > MaxUsers {
			continue
		}
		r.Users = append(r.Users, UserRecord{
			Slot:    slot,
			Name:    name,
			Enabled: name != Disabled,
		})
	}
	// joker first (slot 0), then numbered slots, whatever the wire order
	slices.SortFunc(r.Users, func(a, b UserRecord) int { return a.Slot - b.Slot })
}

// OK bodies are colon-joined: status token, then an optional scenario name.
func decodeAck(r *Response, body string) {
	token, rest, found := strings.Cut(body, ":")
	r.Status = parseStatusToken(token)
	if found {
		r.Scenario = rest
	}
}

// STATUS bodies are '&'-joined KEY=VALUE pairs plus one bare status token.
func decodeStatus(r *Response, body string) {
	for _, field := range strings.Split(body, "&") {
		key, value, found := strings.Cut(field, "=")
		if !found {
			r.Status = parseStatusToken(field)
			continue
		}
		switch key {
		case "SCE":
			r.Scenario = scenarioName(value)
		case "ZONES":
			r.ZonesRaw = value
		}
	}
}

// The bare status form is newline-separated "KEY: value" lines. Lines the
// engine does not know about (power and battery telemetry, mostly) are
// ignored here.
func decodeBareStatus(r *Response, body string) {
	for _, line := range strings.Split(body, "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "SYS":
			r.Status = parseStatusToken(value)
		case "SCE":
			r.Scenario = scenarioName(value)
		case "ZONES":
			r.ZonesRaw = value
		}
	}
}

func scenarioName(s string) string {
	if s == "---" {
		return ""
	}
	return s
}

func parseStatusToken(token string) Status {
	switch {
	case token == "ON" || token == "ARMED":
		return StatusArmed
	case token == "OFF" || token == "DISARMED":
		return StatusDisarmed
	case strings.Contains(token, "ALARM"):
		return StatusAlarm
	case strings.Contains(token, "TAMPER"):
		return StatusTamper
	default:
		return StatusUnknown
	}
}
