package smsproto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	for text, kind := range map[string]Kind{
		"CONF1:3.2&MAIN.1111#":  KindConf1,
		"CONF2:S01=Casa#":       KindConf2,
		"CONF3:S09=Notte#":      KindConf3,
		"CONF4:RJO=Jolly#":      KindConf4,
		"CONF5:R09=Luca#":       KindConf5,
		"OK:ON:Casa#":           KindAck,
		"STATUS:ON&SCE=Casa#":   KindStatus,
		"ERR:E02":               KindError,
		"SYS: ON\nSCE:Casa":     KindStatus,
		"SYS : OFF":             KindStatus,
		"low battery warning":   KindUnrecognized,
		"":                      KindUnrecognized,
		"conf1:3.2":             KindUnrecognized,
	} {
		t.Run(text, func(t *testing.T) {
			require.Equal(t, kind, Classify(text))
			require.NotPanics(t, func() { Decode(text) })
		})
	}
}

func TestDecodeConf1(t *testing.T) {
	r := Decode("CONF1:3.2&MAIN.1111&Z1=Ingresso&Z2=NE&Z8=Garage#")

	require.Equal(t, KindConf1, r.Kind)
	require.False(t, r.Continued)
	require.Equal(t, "3.2", r.Version)
	require.True(t, r.MainAccount)
	require.Equal(t, PermRX1|PermRX2|PermVerify|PermCmdOnOff, r.Flags)
	require.Equal(t, []ZoneRecord{
		{Slot: 1, Name: "Ingresso", Enabled: true},
		{Slot: 2, Name: "NE", Enabled: false},
		{Slot: 8, Name: "Garage", Enabled: true},
	}, r.Zones)
}

func TestDecodeConf1Partial(t *testing.T) {
	// malformed fields are skipped, the rest decodes
	r := Decode("CONF1:FLAGS.10&Zx=Bad&Z9=High&Z3=Cucina&whatever#")
	require.Equal(t, KindConf1, r.Kind)
	require.False(t, r.MainAccount)
	require.Equal(t, PermRX1, r.Flags)
	require.Equal(t, []ZoneRecord{{Slot: 3, Name: "Cucina", Enabled: true}}, r.Zones)
}

func TestDecodeScenarios(t *testing.T) {
	r := Decode("CONF2:S01=Casa&S02=NE#")
	require.Equal(t, KindConf2, r.Kind)
	require.Equal(t, []ScenarioRecord{
		{Slot: 1, Name: "Casa", Enabled: true},
		{Slot: 2, Name: "NE", Enabled: false},
	}, r.Scenarios)

	// identical later body decodes identically
	require.Equal(t, r.Scenarios, Decode("CONF2:S01=Casa&S02=NE#").Scenarios)
}

func TestDecodeUsers(t *testing.T) {
	r := Decode("CONF4:RJO=Jolly&R01=Anna&R02=NE#")
	require.Equal(t, KindConf4, r.Kind)
	require.Equal(t, []UserRecord{
		{Slot: 0, Name: "Jolly", Enabled: true, IsJoker: true},
		{Slot: 1, Name: "Anna", Enabled: true},
		{Slot: 2, Name: "NE", Enabled: false},
	}, r.Users)
}

func TestDecodeFieldOrder(t *testing.T) {
	// the panel does not guarantee field order; records come back sorted
	// by slot
	r := Decode("CONF1:Z8=Garage&3.2&Z1=Ingresso#")
	require.Equal(t, []ZoneRecord{
		{Slot: 1, Name: "Ingresso", Enabled: true},
		{Slot: 8, Name: "Garage", Enabled: true},
	}, r.Zones)

	r = Decode("CONF2:S03=Notte&S01=Casa#")
	require.Equal(t, 1, r.Scenarios[0].Slot)
	require.Equal(t, 3, r.Scenarios[1].Slot)

	r = Decode("CONF4:R02=Bruno&RJO=Jolly&R01=Anna#")
	require.True(t, r.Users[0].IsJoker)
	require.Equal(t, 1, r.Users[1].Slot)
	require.Equal(t, 2, r.Users[2].Slot)
}

func TestDecodeAck(t *testing.T) {
	r := Decode("OK:ON:Casa#")
	require.Equal(t, KindAck, r.Kind)
	require.Equal(t, StatusArmed, r.Status)
	require.Equal(t, "Casa", r.Scenario)

	r = Decode("OK:OFF#")
	require.Equal(t, StatusDisarmed, r.Status)
	require.Empty(t, r.Scenario)
}

func TestDecodeStatus(t *testing.T) {
	r := Decode("STATUS:ON&SCE=Casa&ZONES=1,2,3#")
	require.Equal(t, KindStatus, r.Kind)
	require.Equal(t, StatusArmed, r.Status)
	require.Equal(t, "Casa", r.Scenario)
	require.Equal(t, "1,2,3", r.ZonesRaw)
}

func TestDecodeBareStatus(t *testing.T) {
	r := Decode("SYS: ON\nSCE:Casa\nZONES:1,2,3\n230V: OK\nBATT: OK")
	require.Equal(t, KindStatus, r.Kind)
	require.Equal(t, StatusArmed, r.Status)
	require.Equal(t, "Casa", r.Scenario)
	require.Equal(t, "1,2,3", r.ZonesRaw)

	r = Decode("SYS: ALARM!\nSCE:---")
	require.Equal(t, StatusAlarm, r.Status)
	require.Empty(t, r.Scenario)
}

func TestDecodeError(t *testing.T) {
	r := Decode("ERR:E02")
	require.Equal(t, KindError, r.Kind)
	require.False(t, r.OK())
	require.Equal(t, "E02", r.ErrorCode)
}

func TestDecodeContinuation(t *testing.T) {
	// a trailing '&' is noted but the body still decodes as final
	r := Decode("CONF2:S01=Casa&")
	require.Equal(t, KindConf2, r.Kind)
	require.True(t, r.Continued)
	require.Equal(t, []ScenarioRecord{{Slot: 1, Name: "Casa", Enabled: true}}, r.Scenarios)
}

func TestConfKind(t *testing.T) {
	for step := 1; step <= 5; step++ {
		require.Equal(t, step, ConfKind(step).ConfStep())
	}
	require.Equal(t, KindUnrecognized, ConfKind(0))
	require.Equal(t, KindUnrecognized, ConfKind(6))
	require.Zero(t, KindAck.ConfStep())
}
