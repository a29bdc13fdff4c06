package configbinder_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/configbinder"
)

type taskletConfig struct {
	Message  string  `yaml:"message"`
	Repeat   int     `yaml:"repeat"`
	FailRate float64 `yaml:"failRate"`
	Verbose  bool    `yaml:"verbose"`
}

func TestBindProperties_ConvertsWeakly(t *testing.T) {
	var cfg taskletConfig
	err := configbinder.BindProperties(map[string]string{
		"message":  "hello",
		"repeat":   "3",
		"failRate": "0.25",
		"verbose":  "true",
	}, &cfg)

	require.NoError(t, err)
	assert.Equal(t, taskletConfig{Message: "hello", Repeat: 3, FailRate: 0.25, Verbose: true}, cfg)
}

func TestBindProperties_EmptyKeepsDefaults(t *testing.T) {
	cfg := taskletConfig{Message: "default"}
	require.NoError(t, configbinder.BindProperties(nil, &cfg))
	assert.Equal(t, "default", cfg.Message)
}

func TestBindProperties_ReportsTargetType(t *testing.T) {
	var cfg taskletConfig
	err := configbinder.BindProperties(map[string]string{"repeat": "many"}, &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "taskletConfig")
}
