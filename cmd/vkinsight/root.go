package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/valkey-insight/vkpack/pkg/expand"
	"github.com/valkey-insight/vkpack/pkg/i18n"
	"github.com/valkey-insight/vkpack/pkg/resources"
	"github.com/valkey-insight/vkpack/pkg/settings"
	"github.com/valkey-insight/vkpack/pkg/valkey"
)

const Version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "vkinsight",
	Short: "Inspect a Valkey server from the command line",
	Long: fmt.Sprintf(`vkinsight (v%s)

Connects to a Valkey server over RESP3 and provides the key browser,
server insights and command documentation of Valkey Insight without
the desktop UI.`, Version),
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of vkinsight",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("vkinsight v%s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("url", "u", "valkey://127.0.0.1:6379", "server URL (valkey://[user[:pass]@]host[:port][/db])")
	rootCmd.PersistentFlags().StringP("server", "s", "", "saved server alias instead of a URL")
	rootCmd.PersistentFlags().Int("timeout", 10, "read/write timeout in seconds")
	rootCmd.PersistentFlags().String("lang", "", "message language (e.g. en, de)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose logging")

	rootCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(docCmd)
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("vkinsight")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindPFlags(rootCmd.PersistentFlags())
}

// Execute runs the CLI; any failure exits with status 1.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		color.Red("%v", err)
		os.Exit(1)
	}
}

func newLogger() *zap.SugaredLogger {
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	if !viper.GetBool("verbose") {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return logger.Sugar()
}

// translator builds the message translator. The lang flag wins and is
// persisted as the new preference; otherwise the stored preference
// applies, falling back to the system locale match.
func translator() (*i18n.Translator, error) {
	resources.MustOpen()
	t, err := i18n.New()
	if err != nil {
		return nil, err
	}
	if lang := viper.GetString("lang"); lang != "" {
		if err := t.SetLanguage(lang); err != nil {
			return nil, err
		}
		if store, err := openStore(); err == nil {
			store.SetLanguage(t.Get("_language_display"))
			if err := store.Save(); err != nil {
				return nil, err
			}
		}
		return t, nil
	}
	if store, err := openStore(); err == nil {
		if stored := store.Get("language", ""); stored != "" {
			// A stored language that no catalog covers anymore is
			// ignored rather than fatal.
			_ = t.SetLanguage(stored)
		}
	}
	return t, nil
}

// openStore opens the saved-server settings in the user config dir.
func openStore() (*settings.Store, error) {
	dir, err := settings.DefaultDir()
	if err != nil {
		return nil, err
	}
	return settings.Open(afero.NewOsFs(), dir)
}

// resolveURL picks the connection target: a saved alias when --server
// is given, the --url flag otherwise.
func resolveURL() (*valkey.URL, error) {
	if alias := viper.GetString("server"); alias != "" {
		store, err := openStore()
		if err != nil {
			return nil, err
		}
		raw, ok := store.Server(alias)
		if !ok {
			return nil, errors.Errorf("unknown server alias %q", alias)
		}
		return valkey.ParseURL(alias, raw)
	}
	return valkey.ParseURL("", viper.GetString("url"))
}

// connect dials the resolved server and prints the localized
// connection line.
func connect(ctx context.Context) (*valkey.Client, *i18n.Translator, error) {
	t, err := translator()
	if err != nil {
		return nil, nil, err
	}
	u, err := resolveURL()
	if err != nil {
		return nil, t, err
	}
	fmt.Fprintln(os.Stderr, t.Get("connecting"))
	timeout := time.Duration(viper.GetInt("timeout")) * time.Second
	c, err := valkey.Dial(ctx, u, valkey.Options{
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		Log:          newLogger(),
	})
	if err != nil {
		return nil, t, errors.Wrap(err, connectMessage(t, err))
	}
	fmt.Fprintln(os.Stderr, t.Format("connected", expand.StringMap{
		"server":        c.ServerType(),
		"serverVersion": c.ServerVersion(),
	}))
	if c.ServerType() != "valkey" {
		fmt.Fprintln(os.Stderr, t.Get("warn_partial_support"))
	}
	return c, t, nil
}

// connectMessage picks the localized line for a dial failure.
func connectMessage(t *i18n.Translator, err error) string {
	switch {
	case errors.Is(err, valkey.ErrAuthFailed):
		return t.Get("err_auth_failed")
	case errors.Is(err, valkey.ErrSelectFailed):
		return t.Get("err_select_db")
	case errors.Is(err, valkey.ErrUnsupported):
		return t.Format("err_unsupported_server", expand.StringMap{"minVersion": "8.0"})
	default:
		return t.Get("err_connect")
	}
}
