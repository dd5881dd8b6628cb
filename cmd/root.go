package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/radiofrance/imgtag/pkg/config"
	"github.com/radiofrance/imgtag/pkg/logger"
)

const (
	defaultLogLevel = "info"
	defaultMode     = "preview"

	providerConfigFlag = "provider-config"
)

var (
	workingDir string
	cfgFile    string
)

var rootCmd = &cobra.Command{
	Use: "imgtag",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	Short: "Link site images to a CDN",
	Long: `imgtag resolves the images of a static site either to a CDN URL (build mode)
or to a relative path to the staging directory (preview mode).

Run imgtag --help for more information`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cobra.CheckErr(rootCmd.ExecuteContext(ctx))
}

func init() {
	// Set logger level from flags as early as possible, then load config, then finalize from Viper
	cobra.OnInitialize(preInitLogLevelFromFlags, initConfig, initLogLevel)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.config/.imgtag.yaml)")
	rootCmd.PersistentFlags().StringP("provider", "p", "",
		`CDN provider used in build mode ("s3", "azure", "cloudinary", "imgix", "static").`)
	rootCmd.PersistentFlags().StringSlice(providerConfigFlag, nil,
		`Provider option as key=value, merged over the "provider_config" section of the config file.
Can be repeated.`)
	rootCmd.PersistentFlags().String("remote-images-dir", config.DefaultRemoteImagesDir,
		`Staging directory holding the images to publish, relative to the "source" directory of the site.`)
	rootCmd.PersistentFlags().String("root-path", "",
		"Root of the site. Defaults to the working directory.")
	rootCmd.PersistentFlags().Duration("provider-timeout", config.DefaultProviderTimeout,
		"Maximum duration of a provider call. A negative value disables the timeout.")
	rootCmd.PersistentFlags().StringP("mode", "m", defaultMode,
		`Environment mode. "build" links to the CDN, any other mode links to the staging directory.`)
	rootCmd.PersistentFlags().StringP("log-level", "l", defaultLogLevel,
		`Log level. Can be any standard log-level ("info", "debug", etc...)`)

	bindPFlagsSnakeCase(rootCmd.PersistentFlags())

	rootCmd.AddCommand(versionCommand())
	rootCmd.AddCommand(linkCommand())
	rootCmd.AddCommand(publishCommand())
	rootCmd.AddCommand(renderCommand())
	rootCmd.AddCommand(docgenCommand())
}

func initConfig() {
	var err error

	workingDir, err = os.Getwd()
	cobra.CheckErr(err)

	viper.SetConfigType("yaml")

	if cfgFile != "" {
		// Use config file from the flag.
		setConfigFile(cfgFile)
	} else if val := os.Getenv("IMGTAG_CONFIG"); val != "" {
		// Use config file from the env variable.
		setConfigFile(val)
	} else {
		// Add $HOME/.config and current directory as paths for Viper to search for the config file in.
		homeDir, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(path.Join(homeDir, ".config"))
		viper.AddConfigPath(workingDir)

		// Search config file with name ".imgtag.yaml" or ".imgtag.yml".
		viper.SetConfigName(".imgtag")
	}

	// Env vars starting with the IMGTAG_ prefix can override any configuration.
	// e.g. IMGTAG_PROVIDER, IMGTAG_ROOT_PATH, etc... Provider options are read from
	// IMGTAG_PROVIDER_CONFIG_* variables by loadRootOpts.
	viper.SetEnvPrefix("imgtag")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		// Non-blocking, every option can come from flags or env.
		logger.Debugf("%s", err)
	} else {
		logger.Infof("Using config file: %s", viper.ConfigFileUsed())
	}
}

func initLogLevel() {
	logLevel := viper.GetString("log_level")
	logger.SetLevel(&logLevel)
}

// preInitLogLevelFromFlags sets the log level from Cobra flags or env before config/env are loaded by Viper,
// so that early logs respect user-provided preference.
func preInitLogLevelFromFlags() {
	flag := rootCmd.PersistentFlags().Lookup("log-level")
	if flag != nil && flag.Changed {
		val, err := rootCmd.PersistentFlags().GetString("log-level")
		if err == nil {
			logger.SetLevel(&val)
			return
		}
	}

	if val, ok := os.LookupEnv("IMGTAG_LOG_LEVEL"); ok && val != "" {
		logger.SetLevel(&val)
	}
}

func setConfigFile(name string) {
	_, err := os.Stat(name)
	if err != nil {
		cobra.CheckErr(fmt.Errorf("config file %q not found", name))
	}

	viper.SetConfigFile(name)
}

// hydrateOptsFromViper copies all the viper values into our config struct.
// The mapping between viper identifiers and struct field names
// is ensured by `mapstructure` struct tags.
func hydrateOptsFromViper(opts any) error {
	if err := viper.Unmarshal(opts); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}

// bindPFlagsSnakeCase binds the flags with viper values. The identifier of the viper value
// is the name of the flag with dashes replaced by underscores. This is required so we can
// retrieve values from viper with the same behaviour with config coming from files
// (my_config: "value") or from flags (--my-config=value).
// The provider-config flag is merged by hand, as its values are key=value strings
// while the config file holds a map under the same key.
func bindPFlagsSnakeCase(flags *pflag.FlagSet) {
	flags.VisitAll(func(flag *pflag.Flag) {
		if flag.Name == providerConfigFlag {
			return
		}
		_ = viper.BindPFlag(strings.ReplaceAll(flag.Name, "-", "_"), flag)
	})
}
