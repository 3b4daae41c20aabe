package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/valkey-insight/vkpack/pkg/dist"
	"github.com/valkey-insight/vkpack/pkg/dist/deb"
	"github.com/valkey-insight/vkpack/pkg/dist/flatpak"
	"github.com/valkey-insight/vkpack/pkg/dist/nsis"
	"github.com/valkey-insight/vkpack/pkg/dist/rpm"
	"github.com/valkey-insight/vkpack/pkg/stage"
	"github.com/valkey-insight/vkpack/pkg/toolchain"
)

var debCmd = &cobra.Command{
	Use:   "deb",
	Short: "Build the Debian package",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLinuxFormats(cmd.Context(), "deb")
	},
}

var rpmCmd = &cobra.Command{
	Use:   "rpm",
	Short: "Build the RPM package",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLinuxFormats(cmd.Context(), "rpm")
	},
}

var linuxCmd = &cobra.Command{
	Use:   "linux",
	Short: "Build both Linux packages (deb and rpm)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLinuxFormats(cmd.Context(), "deb", "rpm")
	},
}

var flatpakCmd = &cobra.Command{
	Use:   "flatpak",
	Short: "Build the Flatpak bundle",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup()
		if err != nil {
			return err
		}
		defer env.log.Sync()
		env.announce("flatpak")
		fmt.Println(env.t.Get("vendoring"))
		artifact, err := flatpak.Build(cmd.Context(), env.build)
		if err != nil {
			return env.fail(err)
		}
		env.done(artifact)
		return nil
	},
}

var windowsCmd = &cobra.Command{
	Use:   "windows",
	Short: "Build the Windows installer",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup()
		if err != nil {
			return err
		}
		defer env.log.Sync()
		env.announce("windows installer")
		artifact, err := nsis.Build(cmd.Context(), env.build)
		if err != nil {
			return env.fail(err)
		}
		env.done(artifact)
		return nil
	},
}

// runLinuxFormats compiles the release binary once, then builds each
// requested package format against it.
func runLinuxFormats(ctx context.Context, formats ...string) error {
	env, err := setup()
	if err != nil {
		return err
	}
	defer env.log.Sync()

	fmt.Println(env.t.Get("compiling"))
	if err := env.build.Compile(ctx, env.build.Project.LinuxBuild); err != nil {
		return env.fail(err)
	}

	builders := map[string]func(context.Context, *dist.Build) (string, error){
		"deb": deb.Build,
		"rpm": rpm.Build,
	}
	for _, format := range formats {
		env.announce(format)
		artifact, err := builders[format](ctx, env.build)
		if err != nil {
			return env.fail(err)
		}
		env.done(artifact)
	}
	return nil
}

func (e *buildEnv) fail(err error) error {
	e.log.Errorw(e.t.Get("build_failed"), "error", err)
	switch {
	case errors.Is(err, dist.ErrArtifactExists):
		return errors.Wrap(err, e.t.Get("err_artifact_exists"))
	case errors.Is(err, toolchain.ErrToolNotFound):
		return errors.Wrap(err, e.t.Get("err_tool_missing"))
	case errors.Is(err, stage.ErrMissingInput):
		return errors.Wrap(err, e.t.Get("err_missing_input"))
	}
	return err
}
