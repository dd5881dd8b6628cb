package cmd

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/afero"

	"github.com/radiofrance/imgtag/pkg/config"
	_ "github.com/radiofrance/imgtag/pkg/provider/prelude"
	"github.com/radiofrance/imgtag/pkg/resolver"
	"github.com/radiofrance/imgtag/pkg/strutil"
)

// rootOpts holds the options shared by every command.
type rootOpts struct {
	config.Options `mapstructure:",squash"`

	Mode     string `mapstructure:"mode"`
	LogLevel string `mapstructure:"log_level"`
}

// providerConfigEnvPrefix selects the environment variables merged into provider_config,
// e.g. IMGTAG_PROVIDER_CONFIG_BUCKET=assets sets the "bucket" option.
const providerConfigEnvPrefix = "IMGTAG_PROVIDER_CONFIG_"

// loadRootOpts reads the shared options from viper, then merges the provider options
// found in the environment and in --provider-config flags, in this order, over the
// provider_config map of the config file.
func loadRootOpts() (rootOpts, error) {
	var opts rootOpts
	if err := hydrateOptsFromViper(&opts); err != nil {
		return opts, err
	}

	flagValues, err := rootCmd.PersistentFlags().GetStringSlice(providerConfigFlag)
	if err != nil {
		return opts, err
	}
	overrides := append(providerConfigFromEnv(os.Environ()), flagValues...)

	if len(overrides) > 0 {
		merged := maps.Clone(opts.ProviderConfig)
		if merged == nil {
			merged = make(map[string]any, len(overrides))
		}
		for key, value := range strutil.ConvertKVStringsToMap(overrides) {
			merged[key] = value
		}
		opts.ProviderConfig = merged
	}

	if opts.RootPath == "" {
		opts.RootPath = workingDir
	}

	return opts, nil
}

// providerConfigFromEnv returns the provider options of environ as key=value strings,
// keys lowercased and stripped of providerConfigEnvPrefix.
func providerConfigFromEnv(environ []string) []string {
	var values []string
	for _, kv := range environ {
		if !strings.HasPrefix(kv, providerConfigEnvPrefix) {
			continue
		}
		key, value, _ := strings.Cut(strings.TrimPrefix(kv, providerConfigEnvPrefix), "=")
		if key == "" {
			continue
		}
		values = append(values, strings.ToLower(key)+"="+value)
	}
	slices.Sort(values)

	return values
}

// newResolver builds the resolver and the environment mode described by opts.
func newResolver(opts rootOpts) (*resolver.Resolver, resolver.Mode, error) {
	mode, err := resolver.ParseMode(opts.Mode)
	if err != nil {
		return nil, "", err
	}

	fs := afero.NewOsFs()
	cfg, err := config.New(fs, opts.Options)
	if err != nil {
		return nil, "", fmt.Errorf("invalid configuration: %w", err)
	}

	return resolver.New(cfg, nil, fs), mode, nil
}
