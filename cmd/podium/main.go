package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/podium/internal/client"
	"github.com/alfredjeanlab/podium/internal/ui"
)

var (
	httpURL    string
	serverAddr string
	transport  string
	authToken  string
	jsonOutput bool
	actor      string

	// podiumClient serves every admin command. signClient is the transport
	// selected with --transport for the commands gRPC also serves.
	podiumClient *client.HTTPClient
	signClient   client.SigningClient
)

func defaultActor() string {
	if s := os.Getenv("PODIUM_ACTOR"); s != "" {
		return s
	}
	out, err := exec.Command("git", "config", "user.name").Output()
	if err == nil {
		name := strings.TrimSpace(string(out))
		if name != "" {
			return name
		}
	}
	return "admin"
}

func defaultHTTPURL() string {
	if s := os.Getenv("PODIUM_URL"); s != "" {
		return s
	}
	if u := activeRemoteURL(); u != "" {
		return u
	}
	return "http://localhost:8080"
}

func defaultServer() string {
	if s := os.Getenv("PODIUM_SERVER"); s != "" {
		return s
	}
	if a := activeRemoteGRPCAddr(); a != "" {
		return a
	}
	return "localhost:9090"
}

func defaultToken() string {
	if s := os.Getenv("PODIUM_AUTH_TOKEN"); s != "" {
		return s
	}
	return activeRemoteToken()
}

var rootCmd = &cobra.Command{
	Use:          "podium <command>",
	Short:        "Speaker bureau contracts and e-signature",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}
		podiumClient = client.NewHTTPClient(httpURL, authToken)
		podiumClient.SetActor(actor)
		switch transport {
		case "http":
			signClient = podiumClient
		case "grpc":
			c, err := client.NewGRPCClient(serverAddr, authToken)
			if err != nil {
				return fmt.Errorf("failed to connect to server: %w", err)
			}
			signClient = c
		default:
			return fmt.Errorf("unknown transport %q (must be http or grpc)", transport)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if signClient != nil {
			signClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "url", defaultHTTPURL(), "HTTP server URL")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", defaultServer(), "gRPC server address")
	rootCmd.PersistentFlags().StringVar(&transport, "transport", "http", "transport for signing and contract commands (http or grpc)")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", defaultToken(), "admin bearer token")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", defaultActor(), "admin name recorded on audit events")

	rootCmd.AddGroup(
		&cobra.Group{ID: "contracts", Title: "Contracts:"},
		&cobra.Group{ID: "signing", Title: "Signing:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Contracts
	rootCmd.AddCommand(templateCmd)
	rootCmd.AddCommand(contractCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(watchCmd)

	// Signing
	rootCmd.AddCommand(signCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(remoteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
