package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var execCmd = &cobra.Command{
	Use:   "exec <command ...>",
	Short: "Run a raw command, quotes and escapes respected",
	Long: `Run a raw server command. The arguments are joined and split the
same way the workbench input splits them, so quoted values with spaces
work:

  vkinsight exec SET greeting "hello world"

With --stdin, one command per input line is read and the batch is
executed pipelined.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fromStdin, _ := cmd.Flags().GetBool("stdin")
		if !fromStdin && len(args) == 0 {
			return fmt.Errorf("no command given")
		}

		c, _, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer c.Close()

		if fromStdin {
			var lines []string
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				if line := strings.TrimSpace(scanner.Text()); line != "" {
					lines = append(lines, line)
				}
			}
			if err := scanner.Err(); err != nil {
				return err
			}
			replies, err := c.ExecPipeline(cmd.Context(), lines)
			if err != nil {
				return err
			}
			for _, reply := range replies {
				fmt.Println(reply)
			}
			return nil
		}

		out, err := c.Exec(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		for _, line := range out {
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	execCmd.Flags().Bool("stdin", false, "read commands from stdin, one per line, pipelined")
}
