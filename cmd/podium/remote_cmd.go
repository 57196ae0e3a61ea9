package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/podium/internal/client"
)

const remoteCheckTimeout = 5 * time.Second

var remoteCmd = &cobra.Command{
	Use:     "remote",
	Short:   "Manage named podium servers",
	GroupID: "system",
	// The client is built per subcommand from the stored remote.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
}

var remoteAddCmd = &cobra.Command{
	Use:   "add <name> <url>",
	Short: "Add or update a remote after checking that it answers /v1/health",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		baseURL, err := normalizeRemoteURL(args[1])
		if err != nil {
			return err
		}
		grpcAddr, _ := cmd.Flags().GetString("grpc")
		token, _ := cmd.Flags().GetString("token")
		natsURL, _ := cmd.Flags().GetString("nats")
		noVerify, _ := cmd.Flags().GetBool("no-verify")
		r := Remote{URL: baseURL, GRPCAddr: grpcAddr, Token: token, NATSURL: natsURL}

		if !noVerify {
			ctx, cancel := context.WithTimeout(context.Background(), remoteCheckTimeout)
			defer cancel()
			h := checkTransport(ctx, "http", client.NewHTTPClient(r.URL, r.Token))
			if !h.healthy() {
				return fmt.Errorf("remote %q failed its health check (%s); use --no-verify to save it anyway", name, h)
			}
		}

		cfg, err := loadRemotesConfig()
		if err != nil {
			return err
		}
		cfg.Remotes[name] = r
		if err := saveRemotesConfig(cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "remote %q saved (%s)\n", name, r.URL)
		return nil
	},
}

var remoteRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a remote",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, name, _, err := lookupRemote(args)
		if err != nil {
			return err
		}
		delete(cfg.Remotes, name)
		if cfg.Active == name {
			cfg.Active = ""
		}
		if err := saveRemotesConfig(cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "remote %q removed\n", name)
		return nil
	},
}

var remoteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List remotes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRemotesConfig()
		if err != nil {
			return err
		}
		if len(cfg.Remotes) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no remotes configured")
			return nil
		}
		names := make([]string, 0, len(cfg.Remotes))
		for name := range cfg.Remotes {
			names = append(names, name)
		}
		sort.Strings(names)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  NAME\tURL\tGRPC\tNATS\tTOKEN")
		for _, name := range names {
			r := cfg.Remotes[name]
			marker := "  "
			if name == cfg.Active {
				marker = "* "
			}
			fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\t%s\n", marker, name, r.URL, dash(r.GRPCAddr), dash(r.NATSURL), dash(maskToken(r.Token)))
		}
		return w.Flush()
	},
}

var remoteUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Make a remote the default for every command",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, name, _, err := lookupRemote(args)
		if err != nil {
			return err
		}
		cfg.Active = name
		if err := saveRemotesConfig(cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "active remote set to %q\n", name)
		return nil
	},
}

var remoteShowCmd = &cobra.Command{
	Use:   "show [<name>]",
	Short: "Show a remote (defaults to the active one)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, name, r, err := lookupRemote(args)
		if err != nil {
			return err
		}
		active := ""
		if name == cfg.Active {
			active = " (active)"
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "name:\t%s%s\n", name, active)
		fmt.Fprintf(w, "url:\t%s\n", r.URL)
		fmt.Fprintf(w, "signing links:\t%s/v1/sign/<token>\n", r.URL)
		if r.GRPCAddr != "" {
			fmt.Fprintf(w, "grpc_addr:\t%s\n", r.GRPCAddr)
		}
		if r.Token != "" {
			fmt.Fprintf(w, "token:\t%s\n", maskToken(r.Token))
		}
		if r.NATSURL != "" {
			fmt.Fprintf(w, "nats_url:\t%s\n", r.NATSURL)
		}
		return w.Flush()
	},
}

var remoteCheckCmd = &cobra.Command{
	Use:   "check [<name>]",
	Short: "Run the health check against every transport of a remote",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, name, r, err := lookupRemote(args)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), remoteCheckTimeout)
		defer cancel()

		var failed []string
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		for _, h := range remoteHealth(ctx, r) {
			fmt.Fprintf(w, "%s\t%s\n", h.Transport, h)
			if !h.healthy() {
				failed = append(failed, h.Transport)
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if len(failed) > 0 {
			return fmt.Errorf("remote %q unhealthy over %s", name, strings.Join(failed, ", "))
		}
		return nil
	},
}

// lookupRemote loads the remotes file and resolves args[0], or the active
// remote when no name is given.
func lookupRemote(args []string) (RemotesConfig, string, Remote, error) {
	cfg, err := loadRemotesConfig()
	if err != nil {
		return cfg, "", Remote{}, err
	}
	name := cfg.Active
	if len(args) == 1 {
		name = args[0]
	}
	if name == "" {
		return cfg, "", Remote{}, errors.New("no active remote; pass a name or run 'podium remote use <name>'")
	}
	r, ok := cfg.Remotes[name]
	if !ok {
		return cfg, name, Remote{}, fmt.Errorf("remote %q not found", name)
	}
	return cfg, name, r, nil
}

// normalizeRemoteURL accepts an http or https base URL and strips any
// trailing slash so signing links join cleanly.
func normalizeRemoteURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("invalid remote URL %q: want http(s)://host[:port]", raw)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return "", fmt.Errorf("invalid remote URL %q: query and fragment are not allowed", raw)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

type transportHealth struct {
	Transport string
	Status    string
	Err       error
}

func (h transportHealth) healthy() bool { return h.Err == nil && isHealthy(h.Status) }

func (h transportHealth) String() string {
	if h.Err != nil {
		return "error: " + h.Err.Error()
	}
	return h.Status
}

func checkTransport(ctx context.Context, transport string, c client.SigningClient) transportHealth {
	defer c.Close()
	status, err := c.Health(ctx)
	return transportHealth{Transport: transport, Status: status, Err: err}
}

// remoteHealth checks HTTP and, when configured, gRPC.
func remoteHealth(ctx context.Context, r Remote) []transportHealth {
	out := []transportHealth{checkTransport(ctx, "http", client.NewHTTPClient(r.URL, r.Token))}
	if r.GRPCAddr == "" {
		return out
	}
	gc, err := client.NewGRPCClient(r.GRPCAddr, r.Token)
	if err != nil {
		return append(out, transportHealth{Transport: "grpc", Err: err})
	}
	return append(out, checkTransport(ctx, "grpc", gc))
}

// maskToken keeps the first eight characters of a bearer token.
func maskToken(tok string) string {
	if len(tok) <= 8 {
		return tok
	}
	return tok[:8] + strings.Repeat("*", len(tok)-8)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	remoteAddCmd.Flags().String("grpc", "", "gRPC address for signing commands")
	remoteAddCmd.Flags().String("token", "", "admin bearer token (PODIUM_AUTH_TOKEN on the server)")
	remoteAddCmd.Flags().String("nats", "", "NATS URL for podium watch")
	remoteAddCmd.Flags().Bool("no-verify", false, "save without checking /v1/health")

	remoteCmd.AddCommand(remoteAddCmd, remoteRemoveCmd, remoteListCmd, remoteUseCmd, remoteShowCmd, remoteCheckCmd)
}
