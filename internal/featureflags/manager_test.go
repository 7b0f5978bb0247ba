package featureflags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnabled_BooleanValues(t *testing.T) {
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0")

	for _, name := range []string{"a", "c", "e"} {
		assert.True(t, m.Enabled(name, 1), name)
	}
	for _, name := range []string{"b", "d", "f", "missing"} {
		assert.False(t, m.Enabled(name, 1), name)
	}
}

func TestEnabled_PercentageValues(t *testing.T) {
	m := NewManager("always=100%,never=0%,canary=25%,junk=abc%")

	assert.True(t, m.Enabled("always", 1))
	assert.False(t, m.Enabled("never", 1))
	assert.False(t, m.Enabled("junk", 1))

	first := m.Enabled("canary", 42)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, m.Enabled("canary", 42), "rollout must be deterministic per user")
	}
	assert.False(t, m.Enabled("canary", 0), "percentage rollout requires a user")
}

func TestDefaultsAndOverrides(t *testing.T) {
	m := NewManager("")
	assert.True(t, m.Enabled(Marketplace, 1))
	assert.True(t, m.Enabled(Chat, 1))

	m = NewManager("chat=off, Marketplace = ON ")
	assert.False(t, m.Enabled(Chat, 1))
	assert.True(t, m.Enabled(Marketplace, 1))

	m.Set(Chat, "on")
	assert.True(t, m.Enabled(Chat, 9))
}

func TestParseAndSnapshot(t *testing.T) {
	m := NewManager(" bad ,x=on, y = 20% ,z=off ,=on")

	raw := m.Raw()
	assert.Equal(t, "on", raw["x"])
	assert.Equal(t, "20%", raw["y"])
	assert.Equal(t, "off", raw["z"])
	assert.Len(t, raw, len(defaults)+3)

	snap := m.Snapshot(123)
	assert.Len(t, snap, len(raw))
	assert.False(t, snap["z"])
	assert.Equal(t, m.Names()[0], "chat")
}
