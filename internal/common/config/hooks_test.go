package config

import (
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type colour string

func (c *colour) UnmarshalText(text []byte) error {
	switch s := strings.ToLower(string(text)); s {
	case "red", "blue":
		*c = colour(s)
		return nil
	default:
		return errors.Errorf("unknown colour %q", s)
	}
}

type testConfig struct {
	Timeout time.Duration
	Paths   []string
	Colour  colour
	Name    string
}

func TestCustomHooks(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
timeout: 1m30s
paths: a,b
colour: RED
name: "  dropingester  "
`)))

	var c testConfig
	require.NoError(t, v.Unmarshal(&c, CustomHooks...))
	assert.Equal(t, 90*time.Second, c.Timeout)
	assert.Equal(t, []string{"a", "b"}, c.Paths)
	assert.Equal(t, colour("red"), c.Colour)
	assert.Equal(t, "dropingester", c.Name)
}

func TestCustomHooks_RejectsInvalidText(t *testing.T) {
	v := viper.New()
	v.Set("colour", "green")

	var c testConfig
	assert.Error(t, v.Unmarshal(&c, CustomHooks...))
}
