// Command scanner runs an operator check-in session against the API. It
// decodes badges from still images, or reads typed tokens from stdin when no
// images are given, and writes the session ledger as CSV when done.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/linesmerrill/donation-checkin-api/config"
	"github.com/linesmerrill/donation-checkin-api/ledger"
	"github.com/linesmerrill/donation-checkin-api/scan"
)

func main() {
	conf := config.New()

	defaultAPI := conf.BaseURL
	if defaultAPI == "" {
		defaultAPI = "http://localhost:" + conf.Port
	}
	apiURL := flag.String("api", defaultAPI, "base url of the check-in api")
	email := flag.String("email", os.Getenv("OPERATOR_EMAIL"), "operator email")
	password := flag.String("password", os.Getenv("OPERATOR_PASSWORD"), "operator password")
	images := flag.String("images", "", "comma separated badge images to scan, stdin is read when empty")
	out := flag.String("out", "", "write the session ledger as csv to this file, stdout when empty")
	flag.Parse()

	if err := run(*apiURL, *email, *password, *images, *out); err != nil {
		zap.S().Errorw("scanner session failed", "error", err)
		os.Exit(1)
	}
}

func run(apiURL, email, password, images, out string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := scan.NewClient(apiURL)
	if err := client.Login(ctx, email, password); err != nil {
		return fmt.Errorf("failed to log in as %s: %w", email, err)
	}
	defer func() {
		if err := client.Logout(context.Background()); err != nil {
			zap.S().Warnw("failed to revoke operator token", "error", err)
		}
	}()

	session := scan.NewSession(client, email)
	session.OnEntry = func(e ledger.Entry) {
		zap.S().Infow("scan",
			"token", e.Token,
			"status", e.Status,
			"name", e.Name,
			"timeSlot", e.TimeSlot,
			"error", e.ErrorMessage)
	}

	var paths []string
	for _, p := range strings.Split(images, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}

	err := session.Run(ctx, &scan.FrameSource{Camera: scan.NewFileCamera(paths...)})
	if scan.IsCameraUnavailable(err) {
		zap.S().Infow("camera unavailable, switching to manual entry", "reason", err)
		fmt.Fprintln(os.Stderr, "enter tokens, one per line, ctrl-d to finish")
		err = session.Run(ctx, scan.NewLineSource(os.Stdin))
	}
	if err != nil && ctx.Err() == nil {
		return err
	}

	zap.S().Infow("session finished", "scans", session.Ledger.Len(), "summary", session.Ledger.Summary())
	return writeLedger(session.Ledger, out)
}

func writeLedger(l *ledger.Ledger, out string) error {
	if out == "" {
		return l.WriteCSV(os.Stdout)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	if err := l.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
