package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/podium/internal/client"
	"github.com/alfredjeanlab/podium/internal/model"
	"github.com/alfredjeanlab/podium/internal/workflow"
)

var contractCmd = &cobra.Command{
	Use:     "contract",
	Short:   "Create contracts and drive them through their lifecycle",
	Long: "Create contracts from templates and drive them through their lifecycle.\n\n" +
		"Statuses: " + statusList(),
	GroupID: "contracts",
}

func statusList() string {
	names := make([]string, len(model.Statuses))
	for i, st := range model.Statuses {
		names[i] = st.String()
	}
	return strings.Join(names, ", ")
}

// addCreateRequestFlags registers the flags shared by contract create and
// template preview.
func addCreateRequestFlags(cmd *cobra.Command) {
	cmd.Flags().Int("template-version", 0, "template version (default latest)")
	cmd.Flags().String("deal", "", "CRM deal id")
	cmd.Flags().String("deal-file", "", "JSON file holding the deal record")
	cmd.Flags().StringToString("set", nil, "override a variable (key=value, repeatable)")
	cmd.Flags().StringArray("edit", nil, "replace an editable section body (section=file, repeatable)")
}

func createRequestFromFlags(cmd *cobra.Command) (*workflow.CreateRequest, error) {
	version, _ := cmd.Flags().GetInt("template-version")
	dealID, _ := cmd.Flags().GetString("deal")
	dealFile, _ := cmd.Flags().GetString("deal-file")
	values, _ := cmd.Flags().GetStringToString("set")
	edits, _ := cmd.Flags().GetStringArray("edit")

	req := &workflow.CreateRequest{
		TemplateVersion: version,
		DealID:          dealID,
		Values:          values,
	}
	if dealFile != "" {
		data, err := os.ReadFile(dealFile)
		if err != nil {
			return nil, fmt.Errorf("reading deal file: %w", err)
		}
		var deal model.Deal
		if err := json.Unmarshal(data, &deal); err != nil {
			return nil, fmt.Errorf("parsing deal file: %w", err)
		}
		req.Deal = &deal
	}
	if len(edits) > 0 {
		sectionEdits, err := parseSectionEdits(edits)
		if err != nil {
			return nil, err
		}
		req.SectionEdits = sectionEdits
	}
	return req, nil
}

// parseSectionEdits reads section=file pairs into a section id to body map.
func parseSectionEdits(edits []string) (map[string]string, error) {
	out := make(map[string]string, len(edits))
	for _, e := range edits {
		section, path, ok := strings.Cut(e, "=")
		if !ok || section == "" || path == "" {
			return nil, fmt.Errorf("invalid --edit %q (want section=file)", e)
		}
		body, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading edit for %s: %w", section, err)
		}
		out[section] = string(body)
	}
	return out, nil
}

var contractCreateCmd = &cobra.Command{
	Use:   "create <template-id>",
	Short: "Generate a draft contract from a template and a deal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := createRequestFromFlags(cmd)
		if err != nil {
			return err
		}
		req.TemplateID = args[0]
		req.Title, _ = cmd.Flags().GetString("title")
		req.Type, _ = cmd.Flags().GetString("type")
		req.RequiresCountersign, _ = cmd.Flags().GetBool("countersign")

		c, err := podiumClient.CreateContract(context.Background(), req)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(c)
			return nil
		}
		fmt.Printf("Created %s (%s) in %s\n", c.Number, c.ID, c.Status)
		return nil
	},
}

var contractListCmd = &cobra.Command{
	Use:   "list",
	Short: "List contracts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := podiumClient.ListContracts(context.Background(), listRequestFromFlags(cmd))
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(resp)
			return nil
		}
		printContractList(os.Stdout, resp.Contracts, resp.Total)
		return nil
	},
}

func addListFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("status", nil, "filter by status (repeatable or comma-separated)")
	cmd.Flags().String("deal", "", "filter by deal id")
	cmd.Flags().String("search", "", "match title, client or number")
	cmd.Flags().Int("limit", 50, "maximum number of contracts")
	cmd.Flags().Int("offset", 0, "number of contracts to skip")
}

func listRequestFromFlags(cmd *cobra.Command) *client.ListContractsRequest {
	status, _ := cmd.Flags().GetStringSlice("status")
	deal, _ := cmd.Flags().GetString("deal")
	search, _ := cmd.Flags().GetString("search")
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")
	return &client.ListContractsRequest{Status: status, DealID: deal, Search: search, Limit: limit, Offset: offset}
}

var contractShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a contract with its signatures and signing links",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := signClient.GetContract(context.Background(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(d)
			return nil
		}
		printContractDetail(os.Stdout, d)
		return nil
	},
}

func printSendResult(res *workflow.SendResult) {
	if jsonOutput {
		printJSON(res)
		return
	}
	fmt.Printf("%s is %s\n", res.Contract.Number, res.Contract.Status)
	printLinks(os.Stdout, res.Links)
}

var contractSendCmd = &cobra.Command{
	Use:   "send <id>",
	Short: "Issue signing links for a draft contract",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := signClient.SendContract(context.Background(), args[0])
		if err != nil {
			return err
		}
		printSendResult(res)
		return nil
	},
}

var contractApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Approve a contract under review and issue signing links",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := podiumClient.ApproveContract(context.Background(), args[0])
		if err != nil {
			return err
		}
		printSendResult(res)
		return nil
	},
}

var contractCancelCmd = &cobra.Command{
	Use:   "cancel <id>",
	Short: "Cancel a contract that is not yet executed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason, _ := cmd.Flags().GetString("reason")
		c, err := signClient.CancelContract(context.Background(), args[0], reason)
		if err != nil {
			return err
		}
		printStatus(c)
		return nil
	},
}

// transitionCmd builds a subcommand for a transition that takes only an id.
func transitionCmd(use, short string, call func(ctx context.Context, id string) (*model.Contract, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := call(context.Background(), args[0])
			if err != nil {
				return err
			}
			printStatus(c)
			return nil
		},
	}
}

func printStatus(c *model.Contract) {
	if jsonOutput {
		printJSON(c)
		return
	}
	fmt.Printf("%s is %s\n", c.Number, c.Status)
}

var contractEventsCmd = &cobra.Command{
	Use:   "events <id>",
	Short: "Show a contract's audit trail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		evts, err := podiumClient.GetEvents(context.Background(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(evts)
			return nil
		}
		printEvents(os.Stdout, evts)
		return nil
	},
}

var contractDocumentCmd = &cobra.Command{
	Use:   "document <id>",
	Short: "Print the contract document snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		doc, err := podiumClient.GetDocument(context.Background(), args[0], format)
		if err != nil {
			return err
		}
		fmt.Println(doc)
		return nil
	},
}

func init() {
	addCreateRequestFlags(contractCreateCmd)
	contractCreateCmd.Flags().String("title", "", "contract title (default \"<template> - <client>\")")
	contractCreateCmd.Flags().String("type", "", "contract type (default the template's type)")
	contractCreateCmd.Flags().Bool("countersign", false, "require an admin countersignature")

	addListFlags(contractListCmd)
	contractCancelCmd.Flags().String("reason", "", "cancellation reason")
	contractDocumentCmd.Flags().String("format", "text", "text or html")

	contractCmd.AddCommand(contractCreateCmd)
	contractCmd.AddCommand(contractListCmd)
	contractCmd.AddCommand(contractShowCmd)
	contractCmd.AddCommand(contractSendCmd)
	contractCmd.AddCommand(transitionCmd("review", "Submit a draft for internal review", func(ctx context.Context, id string) (*model.Contract, error) {
		return podiumClient.RequestReview(ctx, id)
	}))
	contractCmd.AddCommand(contractApproveCmd)
	contractCmd.AddCommand(contractCancelCmd)
	contractCmd.AddCommand(transitionCmd("activate", "Mark an executed contract active", func(ctx context.Context, id string) (*model.Contract, error) {
		return podiumClient.ActivateContract(ctx, id)
	}))
	contractCmd.AddCommand(transitionCmd("complete", "Mark an active contract completed", func(ctx context.Context, id string) (*model.Contract, error) {
		return podiumClient.CompleteContract(ctx, id)
	}))
	contractCmd.AddCommand(contractEventsCmd)
	contractCmd.AddCommand(contractDocumentCmd)
}
