package main

import (
	"fmt"
	"strconv"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/valkey-insight/vkpack/pkg/browser"
	"github.com/valkey-insight/vkpack/pkg/valkey"
)

var keysCmd = &cobra.Command{
	Use:   "keys [pattern]",
	Short: "List keys with type, TTL and size",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pattern := ""
		if len(args) == 1 {
			pattern = args[0]
		}
		keyType := valkey.KeyType(cmd.Flag("type").Value.String())
		if keyType != "" {
			if _, ok := valkey.ParseKeyType(string(keyType)); !ok {
				return fmt.Errorf("unknown key type %q", keyType)
			}
		}
		limit, _ := cmd.Flags().GetInt("limit")

		c, _, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()
		ctx := cmd.Context()

		total, err := browser.Count(ctx, c)
		if err != nil {
			return err
		}
		fmt.Printf("%d keys in database\n", total)

		cursor := uint64(0)
		listed := 0
		for {
			page, err := browser.Scan(ctx, c, cursor, pattern, keyType)
			if err != nil {
				return err
			}
			meta, err := browser.FetchMetadata(ctx, c, page.Keys)
			if err != nil {
				return err
			}
			for _, key := range page.Keys {
				if listed >= limit {
					return nil
				}
				printKey(key, meta[key])
				listed++
			}
			if page.Cursor == 0 {
				return nil
			}
			cursor = page.Cursor
		}
	},
}

var keysDelCmd = &cobra.Command{
	Use:   "del <key>",
	Short: "Delete a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()
		return browser.Delete(cmd.Context(), c, args[0])
	},
}

var keysRenameCmd = &cobra.Command{
	Use:   "rename <key> <newkey>",
	Short: "Rename a key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()
		return browser.Rename(cmd.Context(), c, args[0], args[1])
	},
}

var keysExpireCmd = &cobra.Command{
	Use:   "expire <key> <seconds>",
	Short: "Set a TTL on a key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		seconds, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("bad TTL %q", args[1])
		}
		c, _, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()
		return browser.Expire(cmd.Context(), c, args[0], seconds)
	},
}

func init() {
	keysCmd.Flags().StringP("type", "t", "", "only keys of this type (hash, list, set, zset, string, bloomfltr)")
	keysCmd.Flags().IntP("limit", "n", 100, "stop after this many keys")
	keysCmd.AddCommand(keysDelCmd)
	keysCmd.AddCommand(keysRenameCmd)
	keysCmd.AddCommand(keysExpireCmd)
}

func printKey(key string, m browser.Metadata) {
	typeName := m.Type.Display()
	if !m.Known {
		typeName = "?"
	}
	ttl := "-"
	if m.TTL >= 0 {
		ttl = fmt.Sprintf("%ds", m.TTL)
	}
	size := "-"
	if m.Size >= 0 {
		size = units.HumanSize(float64(m.Size))
	}
	fmt.Printf("%-12s %8s %10s  %s\n", typeName, ttl, size, key)
}
