package leak

import (
	"os"
	"strconv"
	"strings"

	"github.com/wippyai/nativeguard/errors"
)

// DefaultMax is the index space of a counter configured from the environment.
const DefaultMax = 100

// Config holds counter configuration.
type Config struct {
	// Name identifies the counter in reports and logs. Required.
	Name string
	// Max is the number of allocation sites tracked. <= 0 disables the counter.
	Max int
	// LogStacks keys sites by caller stack. When false every open shares index 0.
	LogStacks bool
	// FailIfStackEmpty makes Open fail when no stack could be captured.
	FailIfStackEmpty bool
}

// EnvPrefix returns the environment variable prefix for pkg,
// e.g. "NATIVEGUARD_MSGCTX_".
func EnvPrefix(pkg string) string {
	pkg = strings.ToUpper(strings.TrimSpace(pkg))
	pkg = strings.NewReplacer(".", "_", "-", "_", "/", "_").Replace(pkg)
	return "NATIVEGUARD_" + pkg + "_"
}

// ConfigFromEnv builds the configuration for pkg from:
//
//	NATIVEGUARD_<PKG>_ENABLE_LEAK_DETECTION  enable counting (default false)
//	NATIVEGUARD_<PKG>_ENABLE_LEAK_LOGS       key sites by stack (default false)
//	NATIVEGUARD_<PKG>_FAIL_EMPTY_STACKS      fail on empty stacks (default false)
//	NATIVEGUARD_<PKG>_LEAK_LOG_MAX           index space (default 100)
//
// When detection is off the returned config is disabled.
func ConfigFromEnv(pkg, name string) (Config, error) {
	if strings.TrimSpace(pkg) == "" {
		return Config{}, errors.InvalidInput(errors.PhaseTrack, "package name cannot be empty")
	}
	prefix := EnvPrefix(pkg)
	cfg := Config{Name: name}

	enabled, err := envBool(prefix + "ENABLE_LEAK_DETECTION")
	if err != nil {
		return cfg, err
	}
	if cfg.LogStacks, err = envBool(prefix + "ENABLE_LEAK_LOGS"); err != nil {
		return cfg, err
	}
	if cfg.FailIfStackEmpty, err = envBool(prefix + "FAIL_EMPTY_STACKS"); err != nil {
		return cfg, err
	}

	cfg.Max = DefaultMax
	if v, ok := os.LookupEnv(prefix + "LEAK_LOG_MAX"); ok {
		cfg.Max, err = strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return cfg, errors.Wrap(errors.PhaseTrack, errors.KindInvalidInput, err, prefix+"LEAK_LOG_MAX")
		}
	}
	if !enabled {
		cfg.Max = 0
	}
	return cfg, nil
}

func envBool(key string) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, errors.Wrap(errors.PhaseTrack, errors.KindInvalidInput, err, key)
	}
	return b, nil
}
