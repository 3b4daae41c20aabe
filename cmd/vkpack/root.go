package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/go-units"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/valkey-insight/vkpack/pkg/config"
	"github.com/valkey-insight/vkpack/pkg/dist"
	"github.com/valkey-insight/vkpack/pkg/expand"
	"github.com/valkey-insight/vkpack/pkg/i18n"
	"github.com/valkey-insight/vkpack/pkg/manifest"
	"github.com/valkey-insight/vkpack/pkg/resources"
	"github.com/valkey-insight/vkpack/pkg/stage"
)

const Version = "1.0.0"

// minScratchSpace is the free disk space required in the scratch
// location before any packaging starts.
var minScratchSpace = int64(2 * units.GiB)

var rootCmd = &cobra.Command{
	Use:   "vkpack",
	Short: "Build distribution packages for Valkey Insight",
	Long: fmt.Sprintf(`vkpack (v%s)

Builds deb, rpm, flatpak and Windows installer artifacts for the
Valkey Insight application from the project's vkpack.yml.`, Version),
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of vkpack",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("vkpack v%s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("project-dir", "C", ".", "project directory holding the manifest and sources")
	rootCmd.PersistentFlags().String("config", config.DefaultFilename, "project config file, relative to the project directory")
	rootCmd.PersistentFlags().String("lang", "", "message language (e.g. en, de)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose logging")

	rootCmd.AddCommand(debCmd)
	rootCmd.AddCommand(rpmCmd)
	rootCmd.AddCommand(linuxCmd)
	rootCmd.AddCommand(flatpakCmd)
	rootCmd.AddCommand(windowsCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("vkpack")
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

// build bundles what every packaging subcommand needs.
type buildEnv struct {
	build *dist.Build
	t     *i18n.Translator
	log   *zap.SugaredLogger
}

// setup loads the project config, extracts the manifest version and
// runs the scratch-space preflight. Everything here fails before any
// external tool runs.
func setup() (*buildEnv, error) {
	resources.MustOpen()

	log, err := newLogger(viper.GetBool("verbose"))
	if err != nil {
		return nil, err
	}

	t, err := i18n.New()
	if err != nil {
		return nil, errors.Wrap(err, "load message catalogs")
	}
	if lang := viper.GetString("lang"); lang != "" {
		if err := t.SetLanguage(lang); err != nil {
			return nil, err
		}
	}

	projectDir, err := filepath.Abs(viper.GetString("project-dir"))
	if err != nil {
		return nil, err
	}
	project, err := config.Load(filepath.Join(projectDir, viper.GetString("config")))
	if err != nil {
		return nil, err
	}
	version, err := manifest.Version(filepath.Join(projectDir, project.Manifest))
	if err != nil {
		if errors.Is(err, manifest.ErrNoVersion) || errors.Is(err, manifest.ErrBadVersion) {
			return nil, errors.Wrap(err, t.Get("err_no_version"))
		}
		return nil, err
	}

	b := dist.New(project, version, projectDir, log)
	if err := stage.Preflight(b.ScratchDir, minScratchSpace); err != nil {
		return nil, err
	}
	return &buildEnv{build: b, t: t, log: log}, nil
}

func newLogger(verbose bool) (*zap.SugaredLogger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	// Keep a build log next to the staging trees for post-mortems.
	logDir := filepath.Join(os.TempDir(), "vkpack")
	if err := os.MkdirAll(logDir, 0755); err == nil {
		cfg.OutputPaths = append(cfg.OutputPaths, filepath.Join(logDir, "build.log"))
	}
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "init logger")
	}
	return logger.Sugar(), nil
}

// announce prints the localized "building" line for one format.
func (e *buildEnv) announce(format string) {
	fmt.Println(e.t.Format("building", expand.StringMap{
		"format":  format,
		"product": e.build.Project.Product,
		"version": e.build.Version,
	}))
}

// done prints the localized success line with the artifact size.
func (e *buildEnv) done(artifact string) {
	size := "?"
	if info, err := os.Stat(artifact); err == nil {
		size = units.HumanSize(float64(info.Size()))
	}
	color.Green(e.t.Format("build_done", expand.StringMap{
		"artifact": artifact,
		"size":     size,
	}))
}
