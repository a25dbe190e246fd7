package smsproto

import "fmt"

// Command is a panel command that renders to exactly one SMS body.
// Encoding is total: fields are validated by the caller before
// construction, not here.
type Command interface {
	Encode() string
}

// ConfQuery asks the panel for one block of the five-step configuration
// download. Step must be 1..5.
type ConfQuery struct {
	Step int
}

func (c ConfQuery) Encode() string {
	return fmt.Sprintf("CONF%d?", c.Step)
}

// ArmScenario arms the panel with a predefined scenario, slot 1..16.
type ArmScenario struct {
	Slot int
}

func (c ArmScenario) Encode() string {
	return fmt.Sprintf("SCE:%02d", c.Slot)
}

// ArmCustom arms an ad-hoc subset of zones.
type ArmCustom struct {
	Zones uint8
}

func (c ArmCustom) Encode() string {
	return "CUST:" + ZoneDigits(c.Zones)
}

type Disarm struct{}

func (Disarm) Encode() string {
	return "SYS OFF"
}

type StatusQuery struct{}

func (StatusQuery) Encode() string {
	return "SYS?"
}

// SetUserPermissions updates the permission bits of a user slot. The panel
// accepts the command but the handset never dispatched it historically, so
// treat the round-trip as untested.
type SetUserPermissions struct {
	Slot        int
	Permissions Permissions
}

func (c SetUserPermissions) Encode() string {
	return fmt.Sprintf("SET:U%02d%s", c.Slot, c.Permissions.Bits())
}
