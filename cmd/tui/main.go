// Command tui is the terminal front end: it connects to a running server,
// subscribes to the live event stream, and drives printing from the
// keyboard.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/printerpal/printerpal/internal/client"
	"github.com/printerpal/printerpal/internal/logging"
	"github.com/printerpal/printerpal/internal/prefs"
	"github.com/printerpal/printerpal/internal/session"
	"github.com/printerpal/printerpal/internal/tui"
)

func main() {
	os.Exit(run())
}

func run() int {
	serverURL := flag.String("server", "", "server base URL (defaults to prefs, then http://localhost:8080)")
	token := flag.String("token", "", "access token for privileged actions (optional)")
	prefsPath := flag.String("prefs", "", "override prefs path (optional)")
	flag.Parse()

	// Warnings only: stderr output would fight the alternate screen.
	_ = logging.Init(logging.Config{Level: "warn", Format: "json"})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	userPrefs, _ := prefs.Load(*prefsPath)
	base := *serverURL
	if base == "" {
		base = userPrefs.ServerURL
	}
	if base == "" {
		base = "http://localhost:8080"
	}

	api := client.New(client.Config{BaseURL: base, Token: *token})
	ctrl := session.NewController(api, *prefsPath)

	model := tui.New(tui.Options{
		Context: ctx,
		Client:  api,
		Session: ctrl,
	})

	program := tea.NewProgram(model, tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "printerpal-tui: %v\n", err)
		return 1
	}
	return 0
}
