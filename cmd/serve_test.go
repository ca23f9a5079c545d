package cmd

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestServeConfigEnvOverrides(t *testing.T) {
	t.Setenv("TRUETH_VAA_ATTEMPTS", "7")
	t.Setenv("TRUETH_VAA_INTERVAL", "3s")
	t.Setenv("TRUETH_PORT", "9999")
	initConfig()

	require.Equal(t, 7, viper.GetInt("vaa_attempts"))
	require.Equal(t, 3*time.Second, viper.GetDuration("vaa_interval"))
	require.Equal(t, "9999", viper.GetString("port"))
}

func TestServeConfigDefaults(t *testing.T) {
	initConfig()

	// Flag defaults flow through the viper bindings when no env override
	// is present.
	require.Equal(t, 60, viper.GetInt("vaa_attempts"))
	require.Equal(t, 10*time.Second, viper.GetDuration("vaa_interval"))
}
