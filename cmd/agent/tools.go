package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools offered to the model",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		for _, d := range a.tools.Declarations() {
			fmt.Fprintf(out, "%s\n  %s\n", d.Name, d.Description)
			for _, p := range d.Parameters {
				req := ""
				if p.Required {
					req = " (required)"
				}
				fmt.Fprintf(out, "    %s%s: %s\n", p.Name, req, strings.TrimSpace(p.Description))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}
