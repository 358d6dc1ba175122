package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDurationUnmarshalString(t *testing.T) {
	var cfg struct {
		Interval Duration `yaml:"interval"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("interval: 500ms"), &cfg))
	assert.Equal(t, 500*time.Millisecond, cfg.Interval.Std())

	require.NoError(t, yaml.Unmarshal([]byte("interval: 1h30m"), &cfg))
	assert.Equal(t, 90*time.Minute, cfg.Interval.Std())
}

func TestDurationUnmarshalNanoseconds(t *testing.T) {
	var cfg struct {
		Interval Duration `yaml:"interval"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("interval: 1000000000"), &cfg))
	assert.Equal(t, time.Second, cfg.Interval.Std())
}

func TestDurationUnmarshalInvalid(t *testing.T) {
	var cfg struct {
		Interval Duration `yaml:"interval"`
	}
	err := yaml.Unmarshal([]byte("interval: 很久"), &cfg)
	assert.Error(t, err)
}

func TestDurationMarshalRoundTrip(t *testing.T) {
	type wrapper struct {
		Interval Duration `yaml:"interval"`
	}
	out, err := yaml.Marshal(wrapper{Interval: Duration(3 * time.Second)})
	require.NoError(t, err)

	var back wrapper
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, 3*time.Second, back.Interval.Std())
}
