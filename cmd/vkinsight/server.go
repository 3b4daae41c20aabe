package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/valkey-insight/vkpack/pkg/valkey"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Manage saved server aliases",
}

var serverListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		servers := store.Servers()
		aliases := make([]string, 0, len(servers))
		for alias := range servers {
			aliases = append(aliases, alias)
		}
		sort.Strings(aliases)
		for _, alias := range aliases {
			u, err := valkey.ParseURL(alias, servers[alias])
			if err != nil {
				fmt.Printf("%-20s %s (unparseable)\n", alias, servers[alias])
				continue
			}
			line := fmt.Sprintf("%-20s %s", alias, u.ConnectionString())
			if u.LastSeen != "" {
				line += fmt.Sprintf("  last used %s", u.LastSeen)
			}
			fmt.Println(line)
		}
		return nil
	},
}

var serverAddCmd = &cobra.Command{
	Use:   "add <alias> <url>",
	Short: "Save a server; an existing alias is never overwritten",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := valkey.ParseURL(args[0], args[1]); err != nil {
			return err
		}
		store, err := openStore()
		if err != nil {
			return err
		}
		if err := store.AddServer(args[0], args[1]); err != nil {
			return err
		}
		return store.Save()
	},
}

var serverUpdateCmd = &cobra.Command{
	Use:   "update <alias> <url>",
	Short: "Change a saved server",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := valkey.ParseURL(args[0], args[1]); err != nil {
			return err
		}
		store, err := openStore()
		if err != nil {
			return err
		}
		return store.UpdateServer(args[0], args[1])
	},
}

var serverDeleteCmd = &cobra.Command{
	Use:   "delete <alias>",
	Short: "Remove a saved server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		return store.DeleteServer(args[0])
	},
}

func init() {
	serverCmd.AddCommand(serverListCmd)
	serverCmd.AddCommand(serverAddCmd)
	serverCmd.AddCommand(serverUpdateCmd)
	serverCmd.AddCommand(serverDeleteCmd)
}
