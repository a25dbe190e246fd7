package smsproto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestZoneMaskDigitsInverse(t *testing.T) {
	require.Equal(t, uint8(0b00001101), ZoneMask([]int{1, 3, 4}))
	require.Equal(t, "134", ZoneDigits(13))
	require.Equal(t, uint8(13), MaskFromDigits("134"))

	// order and junk do not matter on the way in
	require.Equal(t, uint8(13), MaskFromDigits("431"))
	require.Equal(t, uint8(13), ZoneMask([]int{4, 3, 1, 0, 9}))

	// every subset round-trips
	for mask := 0; mask <= 0xff; mask++ {
		m := uint8(mask)
		require.Equal(t, m, MaskFromDigits(ZoneDigits(m)))
		require.Equal(t, m, ZoneMask(ZoneList(m)))
	}
}

func TestZoneDigitsEmpty(t *testing.T) {
	require.Empty(t, ZoneDigits(0))
	require.Empty(t, ZoneList(0))
	require.Zero(t, MaskFromDigits(""))
}

func TestPermissions(t *testing.T) {
	require.Equal(t, "0000", Permissions(0).Bits())
	require.Equal(t, "1111", (PermRX1 | PermRX2 | PermVerify | PermCmdOnOff).Bits())
	require.Equal(t, "1010", (PermRX1 | PermVerify).Bits())

	require.Equal(t, PermRX1|PermVerify, ParsePermissions("1010"))
	require.Equal(t, PermRX1, ParsePermissions("1"))
	require.Equal(t, Permissions(0), ParsePermissions("junk"))

	for p := 0; p < 16; p++ {
		require.Equal(t, Permissions(p), ParsePermissions(Permissions(p).Bits()))
	}
}

func TestStatusString(t *testing.T) {
	require.Equal(t, "Armed", StatusArmed.String())
	require.Equal(t, "Disarmed", StatusDisarmed.String())
	require.Equal(t, "Alarm", StatusAlarm.String())
	require.Equal(t, "Tamper", StatusTamper.String())
	require.Equal(t, "Unknown", StatusUnknown.String())
	require.Equal(t, "Unknown", Status(99).String())
}
