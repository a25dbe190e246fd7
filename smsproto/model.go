package smsproto

import "strconv"

// Disabled is the name the panel reports for zones, scenarios and users
// that exist on the panel but are not configured.
const Disabled = "NE"

const (
	MaxZones     = 8
	MaxScenarios = 16
	MaxUsers     = 16

	// CustomScenarioBase is the first slot used for scenarios created on
	// the handset. The panel only ever reports slots 1..16, so anything
	// above this line is local and must survive a configuration download.
	CustomScenarioBase = 100
)

// JokerSlot is the reserved slot of the joker user (wire prefix RJO).
const JokerSlot = 0

type Status int

const (
	StatusUnknown Status = iota
	StatusDisarmed
	StatusArmed
	StatusAlarm
	StatusTamper
)

func (s Status) String() string {
	switch s {
	case StatusDisarmed:
		return "Disarmed"
	case StatusArmed:
		return "Armed"
	case StatusAlarm:
		return "Alarm"
	case StatusTamper:
		return "Tamper"
	default:
		return "Unknown"
	}
}

// Permissions is the 4-bit user permission set carried in the WORD.BBBB
// field of CONF1 and in the SET:U command, leftmost character first.
type Permissions uint8

const (
	PermRX1 Permissions = 1 << iota
	PermRX2
	PermVerify
	PermCmdOnOff
)

// Bits renders the permission set as the 4-character 0/1 string used on
// the wire.
func (p Permissions) Bits() string {
	buf := make([]byte, 4)
	for i := 0; i < 4; i++ {
		if p&(1<<i) != 0 {
			buf[i] = '1'
		} else {
			buf[i] = '0'
		}
	}
	return string(buf)
}

// ParsePermissions reads a 4-character 0/1 string, leftmost character
// mapping to PermRX1. Short or malformed input yields the bits that could
// be read.
func ParsePermissions(s string) Permissions {
	var p Permissions
	for i := 0; i < len(s) && i < 4; i++ {
		if s[i] == '1' {
			p |= 1 << i
		}
	}
	return p
}

type ZoneRecord struct {
	Slot    int
	Name    string
	Enabled bool
}

type ScenarioRecord struct {
	Slot     int
	Name     string
	Enabled  bool
	ZoneMask uint8
	IsCustom bool
}

type UserRecord struct {
	Slot        int
	Name        string
	Enabled     bool
	Permissions Permissions
	IsJoker     bool
}

// ZoneMask packs a set of zone numbers (1..8) into a bitmask, zone 1 being
// the least significant bit. Out-of-range zones are ignored.
func ZoneMask(zones []int) uint8 {
	var mask uint8
	for _, z := range zones {
		if z >= 1 && z <= MaxZones {
			mask |= 1 << (z - 1)
		}
	}
	return mask
}

// ZoneDigits renders a zone mask as the ascending digit string used by the
// CUST: command, e.g. 0b00001101 -> "134".
func ZoneDigits(mask uint8) string {
	var buf []byte
	for z := 1; z <= MaxZones; z++ {
		if mask&(1<<(z-1)) != 0 {
			buf = append(buf, byte('0'+z))
		}
	}
	return string(buf)
}

// MaskFromDigits is the inverse of ZoneDigits. Non-digit and out-of-range
// characters are ignored.
func MaskFromDigits(s string) uint8 {
	var zones []int
	for _, c := range s {
		z := int(c - '0')
		if z >= 1 && z <= MaxZones {
			zones = append(zones, z)
		}
	}
	return ZoneMask(zones)
}

// ZoneList expands a mask into the ascending list of zone numbers.
func ZoneList(mask uint8) []int {
	var zones []int
	for z := 1; z <= MaxZones; z++ {
		if mask&(1<<(z-1)) != 0 {
			zones = append(zones, z)
		}
	}
	return zones
}

func parseSlot(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
