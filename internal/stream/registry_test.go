package stream

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterTracksMultipleDevices(t *testing.T) {
	reg := NewRegistry()

	phone := reg.Register("u1")
	laptop := reg.Register("u1")
	other := reg.Register("u2")

	require.NotEqual(t, phone.ID, laptop.ID)
	require.Equal(t, 2, reg.Count("u1"))
	require.Equal(t, 1, reg.Count("u2"))
	require.Equal(t, 3, reg.Total())

	ids := map[string]bool{}
	for _, c := range reg.Connections("u1") {
		ids[c.ID] = true
	}
	require.True(t, ids[phone.ID])
	require.True(t, ids[laptop.ID])
	require.False(t, ids[other.ID])
}

func TestUnregisterIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	conn := reg.Register("u1")

	reg.Unregister(conn)
	require.Zero(t, reg.Count("u1"))

	// Repeat teardown and nil are both harmless.
	reg.Unregister(conn)
	reg.Unregister(nil)
	require.Zero(t, reg.Total())
}

func TestUnregisterLeavesSiblingsIntact(t *testing.T) {
	reg := NewRegistry()
	phone := reg.Register("u1")
	laptop := reg.Register("u1")

	reg.Unregister(phone)

	require.Equal(t, 1, reg.Count("u1"))
	conns := reg.Connections("u1")
	require.Len(t, conns, 1)
	require.Equal(t, laptop.ID, conns[0].ID)
}
