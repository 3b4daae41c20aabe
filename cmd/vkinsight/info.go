package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valkey-insight/vkpack/pkg/insight"
)

var infoCmd = &cobra.Command{
	Use:   "info [field ...]",
	Short: "Print server statistics (INFO, DBSIZE, CLIENT LIST)",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		stats, err := insight.FetchStats(cmd.Context(), c)
		if err != nil {
			return err
		}

		if len(args) > 0 {
			for _, field := range args {
				fmt.Printf("%s: %s\n", field, stats[field])
			}
			return nil
		}
		keys := make([]string, 0, len(stats))
		for key := range stats {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Printf("%s: %s\n", key, stats[key])
		}
		return nil
	},
	Example: strings.TrimSpace(`
  vkinsight info
  vkinsight info redis_version used_memory dbsize`),
}
