package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alfredjeanlab/podium/internal/binder"
	"github.com/alfredjeanlab/podium/internal/events"
	"github.com/alfredjeanlab/podium/internal/model"
	"github.com/alfredjeanlab/podium/internal/ui"
	"github.com/alfredjeanlab/podium/internal/workflow"
)

const timeLayout = "2006-01-02 15:04:05"

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Format(timeLayout)
}

func formatAmount(amount float64, currency string) string {
	return fmt.Sprintf("%.2f %s", amount, currency)
}

func printContract(w io.Writer, c *model.Contract) {
	fmt.Fprintf(w, "ID:           %s\n", c.ID)
	fmt.Fprintf(w, "Number:       %s\n", c.Number)
	fmt.Fprintf(w, "Title:        %s\n", c.Title)
	fmt.Fprintf(w, "Status:       %s\n", ui.RenderStatus(string(c.Status)))
	fmt.Fprintf(w, "Template:     %s v%d\n", c.TemplateID, c.TemplateVersion)
	if c.DealID != "" {
		fmt.Fprintf(w, "Deal:         %s\n", c.DealID)
	}
	client := c.ClientName
	if c.ClientCompany != "" {
		client += " (" + c.ClientCompany + ")"
	}
	fmt.Fprintf(w, "Client:       %s\n", client)
	if c.SpeakerName != "" {
		fmt.Fprintf(w, "Speaker:      %s\n", c.SpeakerName)
	}
	if c.EventTitle != "" {
		fmt.Fprintf(w, "Event:        %s\n", c.EventTitle)
	}
	if c.EventDate != nil {
		fmt.Fprintf(w, "Event Date:   %s\n", c.EventDate.Format(binder.DateLayout))
	}
	fmt.Fprintf(w, "Amount:       %s\n", formatAmount(c.TotalAmount, c.Currency))
	fmt.Fprintf(w, "Countersign:  %t\n", c.RequiresCountersign)
	fmt.Fprintf(w, "Created:      %s by %s\n", c.CreatedAt.Format(timeLayout), c.CreatedBy)
	fmt.Fprintf(w, "Sent:         %s\n", formatTime(c.SentAt))
	fmt.Fprintf(w, "Executed:     %s\n", formatTime(c.ExecutionAt))
	if c.CancelledAt != nil {
		fmt.Fprintf(w, "Cancelled:    %s (%s)\n", formatTime(c.CancelledAt), c.CancelReason)
	}
}

func printContractDetail(w io.Writer, d *workflow.ContractDetail) {
	printContract(w, d.Contract)
	if len(d.Signatures) > 0 {
		fmt.Fprintln(w, "\nSignatures:")
		for _, s := range d.Signatures {
			fmt.Fprintf(w, "  %-8s %s <%s> at %s\n", s.SignerType, s.SignerName, s.SignerEmail, s.SignedAt.Format(timeLayout))
		}
	}
	printLinks(w, d.Links)
}

func printLinks(w io.Writer, links []events.SignerLink) {
	if len(links) == 0 {
		return
	}
	fmt.Fprintln(w, "\nSigning links:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, l := range links {
		who := l.Name
		if l.Email != "" {
			who += " <" + l.Email + ">"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", l.Role, strings.TrimSpace(who), l.URL)
	}
	tw.Flush()
}

func printContractList(w io.Writer, contracts []*model.Contract, total int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NUMBER\tSTATUS\tCLIENT\tAMOUNT\tTITLE")
	for _, c := range contracts {
		title := c.Title
		if len(title) > 50 {
			title = title[:47] + "..."
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			c.Number,
			c.Status,
			c.ClientName,
			formatAmount(c.TotalAmount, c.Currency),
			title,
		)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d contracts (%d total)\n", len(contracts), total)
}

func printTemplateList(w io.Writer, tpls []*model.ContractTemplate) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tVERSION\tTYPE\tNAME")
	for _, t := range tpls {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", t.ID, t.Version, t.Type, t.Name)
	}
	tw.Flush()
}

func printTemplate(w io.Writer, t *model.ContractTemplate) {
	fmt.Fprintf(w, "ID:       %s\n", t.ID)
	fmt.Fprintf(w, "Name:     %s\n", t.Name)
	fmt.Fprintf(w, "Version:  %d\n", t.Version)
	if t.Type != "" {
		fmt.Fprintf(w, "Type:     %s\n", t.Type)
	}
	if t.Description != "" {
		fmt.Fprintf(w, "About:    %s\n", t.Description)
	}
	fmt.Fprintln(w, "\nSections:")
	for _, s := range t.Sections {
		flags := ""
		if s.Required {
			flags += " required"
		}
		if s.Editable {
			flags += " editable"
		}
		fmt.Fprintf(w, "  %d. %s [%s]%s\n", s.Order, s.Title, s.ID, flags)
	}
	if len(t.Variables) > 0 {
		fmt.Fprintln(w, "\nVariables:")
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, v := range t.Variables {
			req := ""
			if v.Required {
				req = "required"
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", v.Key, v.Type, v.DisplayLabel(), req)
		}
		tw.Flush()
	}
}

func printEvents(w io.Writer, evts []*model.Event) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTOPIC\tACTOR")
	for _, e := range evts {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.CreatedAt.Format(timeLayout), e.Topic, e.Actor)
	}
	tw.Flush()
}

func printSigningView(w io.Writer, v *workflow.SigningView) {
	p := v.Contract
	fmt.Fprintf(w, "Contract:  %s  %s\n", p.Number, p.Title)
	fmt.Fprintf(w, "Status:    %s\n", ui.RenderStatus(string(p.Status)))
	fmt.Fprintf(w, "Signer:    %s\n", v.SignerType)
	if v.CanSign {
		fmt.Fprintln(w, "Can sign:  yes")
	} else {
		fmt.Fprintf(w, "Can sign:  no (%s)\n", v.Reason)
	}
	fmt.Fprintf(w, "Amount:    %s\n", formatAmount(p.TotalAmount, p.Currency))
	for _, s := range p.Signers {
		state := "pending"
		if s.Signed {
			state = "signed by " + s.SignerName + " at " + formatTime(s.SignedAt)
		}
		fmt.Fprintf(w, "  %-8s %s\n", s.Role, state)
	}
	fmt.Fprintf(w, "\n%s\n", p.DocumentBody)
}
