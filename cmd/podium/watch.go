package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/podium/internal/client"
	"github.com/alfredjeanlab/podium/internal/events"
	"github.com/alfredjeanlab/podium/internal/model"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Follow contract lifecycle changes as they happen",
	GroupID: "contracts",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")
		natsURL, _ := cmd.Flags().GetString("nats")
		if natsURL == "" {
			natsURL = os.Getenv("PODIUM_NATS_URL")
		}
		if natsURL == "" {
			natsURL = activeRemoteNATSURL()
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if natsURL != "" {
			return watchNATS(ctx, natsURL, os.Stdout)
		}
		return watchPoll(ctx, interval, listRequestFromFlags(cmd), os.Stdout)
	},
}

// watchNATS prints every podium event published on the bus.
func watchNATS(ctx context.Context, natsURL string, w io.Writer) error {
	sub, err := events.NewNATSSubscriber(natsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats: disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats: reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe(events.TopicAll)
	if err != nil {
		return fmt.Errorf("subscribing to events: %w", err)
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			printMessage(w, msg)
		}
	}
}

func printMessage(w io.Writer, msg events.Message) {
	if jsonOutput {
		fmt.Fprintf(w, "{\"topic\":%q,\"event\":%s}\n", msg.Topic, msg.Data)
		return
	}
	var head struct {
		ContractID string `json:"contract_id"`
		Number     string `json:"contract_number"`
	}
	_ = json.Unmarshal(msg.Data, &head)
	subject := head.Number
	if subject == "" {
		subject = head.ContractID
	}
	fmt.Fprintf(w, "%s  %-36s %s\n", time.Now().Format(timeLayout), msg.Topic, subject)
}

// watchPoll lists contracts at the given interval and prints those that
// changed since the previous poll.
func watchPoll(ctx context.Context, interval time.Duration, req *client.ListContractsRequest, w io.Writer) error {
	seen := make(map[string]time.Time)
	for {
		resp, err := podiumClient.ListContracts(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if changed := diffContracts(resp.Contracts, seen); len(changed) > 0 {
			printContractList(w, changed, resp.Total)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

// diffContracts returns contracts that are new or have a different
// updated_at than last seen. It updates seen in place.
func diffContracts(contracts []*model.Contract, seen map[string]time.Time) []*model.Contract {
	var changed []*model.Contract
	for _, c := range contracts {
		prev, ok := seen[c.ID]
		if !ok || !c.UpdatedAt.Equal(prev) {
			changed = append(changed, c)
		}
		seen[c.ID] = c.UpdatedAt
	}
	return changed
}

func init() {
	addListFlags(watchCmd)
	watchCmd.Flags().Duration("interval", 5*time.Second, "polling interval when NATS is not configured")
	watchCmd.Flags().String("nats", "", "NATS URL (default PODIUM_NATS_URL or the active remote's)")
}
