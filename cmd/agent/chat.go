package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"github.com/petasbytes/toolchat/internal/runner"
	"github.com/petasbytes/toolchat/internal/telemetry"
	"github.com/spf13/cobra"
)

// chatUI owns terminal styling for the REPL.
type chatUI struct {
	out     io.Writer
	profile termenv.Profile
	render  func(string) (string, error)
}

func newChatUI(out io.Writer) *chatUI {
	ui := &chatUI{out: out, profile: termenv.ColorProfile()}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
		glamour.WithWordWrap(100),
	)
	if err == nil {
		ui.render = r.Render
	}
	return ui
}

func (ui *chatUI) prompt() {
	fmt.Fprint(ui.out, termenv.String("You").Foreground(ui.profile.Color("12")).Bold().String()+": ")
}

func (ui *chatUI) reply(text string) {
	label := termenv.String("Agent").Foreground(ui.profile.Color("11")).Bold().String()
	if ui.render != nil {
		if out, err := ui.render(text); err == nil {
			fmt.Fprintf(ui.out, "%s:\n%s", label, out)
			return
		}
	}
	fmt.Fprintf(ui.out, "%s: %s\n", label, text)
}

func (ui *chatUI) note(format string, args ...any) {
	fmt.Fprintln(ui.out, termenv.String(fmt.Sprintf(format, args...)).Faint().String())
}

func (ui *chatUI) failure(err error) {
	fmt.Fprintln(ui.out, termenv.String("error: "+err.Error()).Foreground(ui.profile.Color("9")).String())
}

func (ui *chatUI) hooks() runner.Hooks {
	return runner.Hooks{
		OnToolCall: func(_ context.Context, name string, _ map[string]any) {
			ui.note("  -> %s", name)
		},
		OnToolReturn: func(_ context.Context, name string, _ string, err error) {
			if err != nil {
				ui.note("  <- %s failed", name)
			}
		},
	}
}

func runChat(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ui := newChatUI(cmd.OutOrStdout())
	r, err := a.newRunner(cmd.Context(), ui.hooks())
	if err != nil {
		return err
	}

	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
	if metricsAddr == "" {
		metricsAddr = a.cfg.MetricsAddr
	}
	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: telemetry.MetricsHandler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Warn("metrics server stopped", "addr", metricsAddr, "error", err)
			}
		}()
		defer srv.Close()
	}

	// Set up graceful shutdown on Ctrl-C (SIGINT) / SIGTERM
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigch)
	go func() {
		<-sigch
		fmt.Fprintln(ui.out, "\nExiting...")
		cancel()
	}()

	scanner := bufio.NewScanner(cmd.InOrStdin())
	ui.note("Chatting via %s. Type /clear to reset history, exit to quit.", a.cfg.Provider)

	// stdin reader goroutine -> lines into channel
	inputCh := make(chan string)
	go func() {
		for scanner.Scan() {
			inputCh <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			a.logger.Warn("stdin read error", "error", err)
		}
		close(inputCh)
	}()

outer:
	for {
		ui.prompt()
		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			break outer
		case line, ok = <-inputCh:
			if !ok {
				break outer
			}
		}

		switch strings.TrimSpace(line) {
		case "":
			continue
		case "exit", "quit":
			break outer
		case "/clear":
			if err := a.log.Clear(ctx); err != nil {
				ui.failure(err)
			} else {
				ui.note("History cleared.")
			}
			continue
		}

		res, err := r.RunTurn(ctx, line)
		if err != nil {
			if ctx.Err() != nil {
				break outer
			}
			ui.failure(err)
			continue
		}
		ui.reply(res.Text)
	}
	return nil
}
