package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check the connection and print the server identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		res, err := c.Do(cmd.Context(), "PING")
		if err != nil {
			return err
		}
		color.Green("%s", res.String())
		fmt.Printf("server: %s %s (%s)\n", c.ServerType(), c.ServerVersion(), c.Mode())
		return nil
	},
}
