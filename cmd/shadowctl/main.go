// Command shadowctl is a small diagnostic client for the shadow package: it
// connects to a broker as a named device and issues a single update, get, or
// delete, or watches deltas until interrupted.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iotshadow/mq/shadow"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "shadowctl:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return usageError()
	}
	cmd, rest := args[0], args[1:]

	fs := flag.NewFlagSet("shadowctl "+cmd, flag.ContinueOnError)
	broker := fs.String("broker", "tcp://localhost:1883", "broker URL")
	device := fs.String("device", "", "device name (required)")
	prefix := fs.String("prefix", shadow.DefaultTopicPrefix, "topic prefix")
	username := fs.String("username", "", "MQTT username")
	password := fs.String("password", "", "MQTT password")
	timeout := fs.Duration("timeout", shadow.DefaultRequestTimeout, "request timeout")
	body := fs.String("body", "{}", "reported state JSON (update only)")
	verbose := fs.Bool("v", false, "verbose logging")
	if err := fs.Parse(rest); err != nil {
		return err
	}
	if *device == "" {
		return fmt.Errorf("-device is required")
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	opts := []shadow.Option{
		shadow.WithTopicPrefix(*prefix),
		shadow.WithLogger(logger),
	}
	if *username != "" {
		opts = append(opts, shadow.WithCredentials(*username, *password))
	}

	c, err := shadow.New(*broker, *device, opts...)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := c.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	switch cmd {
	case "update":
		return doUpdate(ctx, c, *body, *timeout)
	case "get":
		return doTerminal(ctx, c.Get, *timeout)
	case "delete":
		return doTerminal(ctx, c.Delete, *timeout)
	case "watch":
		return doWatch(ctx, c)
	default:
		return usageError()
	}
}

func doUpdate(ctx context.Context, c *shadow.Client, body string, timeout time.Duration) error {
	done := make(chan struct{})
	var callErr error
	err := c.Update(ctx, json.RawMessage(body), func(action shadow.Action, status shadow.StatusCode, ack *shadow.Ack, _ any) {
		callErr = printAck(action, status, ack)
		close(done)
	}, nil, timeout)
	if err != nil {
		return err
	}
	<-done
	return callErr
}

func doTerminal(ctx context.Context, call func(context.Context, shadow.ShadowCallback, any, time.Duration) error, timeout time.Duration) error {
	done := make(chan struct{})
	var callErr error
	err := call(ctx, func(action shadow.Action, status shadow.StatusCode, ack *shadow.Ack, _ any) {
		callErr = printAck(action, status, ack)
		close(done)
	}, nil, timeout)
	if err != nil {
		return err
	}
	<-done
	return callErr
}

func doWatch(ctx context.Context, c *shadow.Client) error {
	err := c.RegisterDelta(shadow.RootKey, func(key string, propertyJSON json.RawMessage) *shadow.UserError {
		fmt.Printf("delta %s: %s\n", key, string(propertyJSON))
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Println("watching for deltas, press Ctrl+C to stop")
	<-ctx.Done()
	return nil
}

func printAck(action shadow.Action, status shadow.StatusCode, ack *shadow.Ack) error {
	switch status {
	case shadow.Accepted:
		fmt.Printf("%s accepted: %s\n", action, string(ack.Document))
		return nil
	case shadow.Rejected:
		fmt.Printf("%s rejected: %s: %s\n", action, ack.Code, ack.Message)
		return fmt.Errorf("%s rejected: %s", action, ack.Message)
	case shadow.Timeout:
		fmt.Printf("%s timed out\n", action)
		return fmt.Errorf("%s timed out", action)
	default:
		return fmt.Errorf("%s: unexpected status %s", action, status)
	}
}

func usageError() error {
	fmt.Fprintln(os.Stderr, "usage: shadowctl <update|get|delete|watch> -device NAME [flags]")
	return fmt.Errorf("missing or unknown subcommand")
}
