package main

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/valkey-insight/vkpack/pkg/valkey"
)

var docCmd = &cobra.Command{
	Use:   "doc [prefix]",
	Short: "Look up command documentation",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fs := afero.NewOsFs()
		dir, _ := cmd.Flags().GetString("dir")
		if dir == "" {
			dir = valkey.CommandsDir(fs)
		}
		registry, err := valkey.LoadRegistry(fs, dir)
		if err != nil {
			return err
		}

		if len(args) == 0 {
			for _, c := range registry.All() {
				fmt.Println(c.FullName)
			}
			return nil
		}

		if c, ok := registry.Lookup(args[0]); ok {
			printCommand(c)
			return nil
		}
		suggestions := registry.Suggest(args[0])
		if len(suggestions) == 0 {
			return fmt.Errorf("no command matches %q", args[0])
		}
		for _, c := range suggestions {
			printCommand(c)
		}
		return nil
	},
}

func init() {
	docCmd.Flags().String("dir", "", "command documentation directory (default: installed location)")
}

func printCommand(c valkey.Command) {
	name := c.FullName
	if c.Arguments != "" {
		name += " " + c.Arguments
	}
	fmt.Println(name)
	if c.Summary != "" {
		fmt.Printf("  %s\n", strings.TrimSpace(c.Summary))
	}
}
