package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	verrors "github.com/Aman-CERP/mcpvector/internal/errors"
	"github.com/Aman-CERP/mcpvector/internal/httpapi"
)

// clientOptions are shared by the commands that talk to a running server.
type clientOptions struct {
	server  string
	timeout time.Duration
}

func (o *clientOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.server, "server", "", "Server URL (default from config host and port)")
	cmd.Flags().DurationVar(&o.timeout, "timeout", httpapi.DefaultClientTimeout, "Request timeout")
}

// newClient returns a client for --server or the configured address.
func (o *clientOptions) newClient() (*httpapi.Client, error) {
	if o.server != "" {
		return httpapi.NewClient(o.server, o.timeout), nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return httpapi.NewClient(serverURL(cfg.Server.Host, cfg.Server.Port), o.timeout), nil
}

// serverURL builds the base URL for a listen address. A wildcard host is
// reached over loopback.
func serverURL(host string, port int) string {
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	u := url.URL{Scheme: "http", Host: net.JoinHostPort(host, strconv.Itoa(port))}
	return u.String()
}

// clientError turns transport failures into actionable errors.
func clientError(c *httpapi.Client, err error) error {
	var se *httpapi.StatusError
	if errors.As(err, &se) {
		return se
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return verrors.New(verrors.ErrCodeServerUnavailable, fmt.Sprintf("cannot reach server at %s", c.BaseURL()), err).
			WithSuggestion("Start it with 'mcpvector serve' or pass --server")
	}
	return err
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}

// formatError renders err for the terminal.
func formatError(err error) string {
	var se *httpapi.StatusError
	switch {
	case errors.As(err, &se):
		return fmt.Sprintf("Error: %s\n  Status: %d\n", se.Detail, se.StatusCode)
	case isCancellation(err):
		return "Interrupted\n"
	}
	if _, ok := verrors.As(err); ok {
		return verrors.FormatForCLI(err)
	}
	return fmt.Sprintf("Error: %v\n", err)
}
