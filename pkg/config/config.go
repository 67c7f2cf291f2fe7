// Package config reads the small set of environment variables that
// control the core's external collaborators (the adapter kill-switch, the
// release directory, and the content-addressed library root). Everything
// else the core needs is passed explicitly by its caller — there is no
// hidden global configuration surface.
package config

import (
	"os"
	"strconv"
)

// Config holds the process's environment-derived settings. An unset or
// malformed WEFTEND_ADAPTER_DISABLE reads as false, and an unset
// WEFTEND_ADAPTER_DISABLE_FILE leaves the adapter enabled; unset
// WEFTEND_RELEASE_DIR and WEFTEND_LIBRARY_ROOT stay empty. No reason code
// is produced for an absent or malformed variable.
type Config struct {
	AdapterDisable     bool
	AdapterDisableFile string
	ReleaseDir         string
	LibraryRoot        string
}

// Load reads Config from the environment. It never fails closed by
// returning an error — an absent or malformed variable simply falls back
// to its zero-risk default, since config itself is not externally
// sourced, untrusted data in the sense pkg/validate guards against.
func Load() Config {
	return Config{
		AdapterDisable:     boolEnv("WEFTEND_ADAPTER_DISABLE", false),
		AdapterDisableFile: os.Getenv("WEFTEND_ADAPTER_DISABLE_FILE"),
		ReleaseDir:         os.Getenv("WEFTEND_RELEASE_DIR"),
		LibraryRoot:        os.Getenv("WEFTEND_LIBRARY_ROOT"),
	}
}

func boolEnv(name string, def bool) bool {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// AdapterDisabled reports whether the adapter layer should refuse to run,
// either because the env var says so directly or because the configured
// kill-switch file exists on disk.
func (c Config) AdapterDisabled() bool {
	if c.AdapterDisable {
		return true
	}
	if c.AdapterDisableFile == "" {
		return false
	}
	_, err := os.Stat(c.AdapterDisableFile)
	return err == nil
}
