package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/petasbytes/toolchat/memory"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the conversation log",
	Long: `Prints the repaired conversation as the model would see it.
With --raw, prints every stored entry as JSON, including entries a load would drop.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		if raw, _ := cmd.Flags().GetBool("raw"); raw {
			entries, err := a.log.Entries(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(out)
			for _, e := range entries {
				if err := enc.Encode(e); err != nil {
					return err
				}
			}
			return nil
		}

		msgs, err := a.log.Load(cmd.Context())
		if err != nil {
			return err
		}
		printHistory(out, msgs)
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the conversation log",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.log.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "History cleared.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd, clearCmd)
	historyCmd.Flags().Bool("raw", false, "Print stored entries without repair")
}

func printHistory(w io.Writer, msgs []memory.Message) {
	if len(msgs) == 0 {
		fmt.Fprintln(w, "(empty)")
		return
	}
	for _, m := range msgs {
		switch {
		case m.IsCall():
			for _, c := range m.Calls() {
				args, _ := json.Marshal(c.Args)
				fmt.Fprintf(w, "%-8s call %s %s\n", m.Role, c.Name, args)
			}
		case m.Response() != nil:
			r := m.Response()
			status := "result"
			if r.IsError() {
				status = "error"
			}
			fmt.Fprintf(w, "%-8s %s %s: %s\n", m.Role, status, r.Name, oneLine(r.Content()))
		default:
			fmt.Fprintf(w, "%-8s %s\n", m.Role, oneLine(m.Text()))
		}
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
