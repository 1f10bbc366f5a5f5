package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/config"
)

// Distinct struct types per test: the loader caches by config type, so
// sharing one type across tests would leak state between them.

func TestLoad(t *testing.T) {
	type testConfig struct {
		Name    string        `env:"CFGTEST_NAME" envDefault:"fallback"`
		Port    int           `env:"CFGTEST_PORT" envDefault:"8080"`
		Timeout time.Duration `env:"CFGTEST_TIMEOUT" envDefault:"30s"`
	}

	t.Setenv("CFGTEST_NAME", "billingd")
	t.Setenv("CFGTEST_PORT", "9090")

	var cfg testConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, "billingd", cfg.Name)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
}

func TestLoad_CachesPerType(t *testing.T) {
	type cachedConfig struct {
		Value string `env:"CFGTEST_CACHED" envDefault:"unset"`
	}

	t.Setenv("CFGTEST_CACHED", "first")
	var cfg cachedConfig
	require.NoError(t, config.Load(&cfg))
	require.Equal(t, "first", cfg.Value)

	// Environment changes after the first parse are not observed.
	t.Setenv("CFGTEST_CACHED", "second")
	var again cachedConfig
	require.NoError(t, config.Load(&again))
	assert.Equal(t, "first", again.Value)
}

func TestLoad_RequiredMissing(t *testing.T) {
	type requiredConfig struct {
		Secret string `env:"CFGTEST_REQUIRED_SECRET,required"`
	}

	var cfg requiredConfig
	err := config.Load(&cfg)
	assert.ErrorIs(t, err, config.ErrParsingConfig)
}

func TestLoad_NilPointer(t *testing.T) {
	t.Parallel()

	err := config.Load[struct{}](nil)
	assert.ErrorIs(t, err, config.ErrNilPointer)
}

func TestMustLoad_PanicsOnFailure(t *testing.T) {
	type mustConfig struct {
		Token string `env:"CFGTEST_MUST_TOKEN,required"`
	}

	assert.Panics(t, func() {
		var cfg mustConfig
		config.MustLoad(&cfg)
	})
}
