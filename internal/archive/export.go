package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/alfredjeanlab/podium/internal/model"
	"github.com/alfredjeanlab/podium/internal/store"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version       string    `json:"version"`
	Type          string    `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	ContractCount int       `json:"contract_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// SignatureMeta is a signature without its image.
type SignatureMeta struct {
	SignerType  model.SignerRole `json:"signer_type"`
	SignerName  string           `json:"signer_name"`
	SignerEmail string           `json:"signer_email"`
	SignerTitle string           `json:"signer_title,omitempty"`
	SignedAt    time.Time        `json:"signed_at"`
	IPAddress   string           `json:"ip_address,omitempty"`
	UserAgent   string           `json:"user_agent,omitempty"`
}

// ContractRecord is one archived contract.
type ContractRecord struct {
	*model.Contract
	Signatures []SignatureMeta `json:"signatures"`
}

// ExportJSONL writes every contract with its signature metadata as JSONL to
// w, sorted by ID, and returns the number of contracts written. Signature
// images and signer tokens are never exported.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer, at time.Time) (int, error) {
	contracts, _, err := s.ListContracts(ctx, model.ContractFilter{})
	if err != nil {
		return 0, fmt.Errorf("list contracts: %w", err)
	}
	sort.Slice(contracts, func(i, j int) bool {
		return contracts[i].ID < contracts[j].ID
	})

	records := make([]ContractRecord, 0, len(contracts))
	for _, c := range contracts {
		sigs, err := s.ListSignatures(ctx, c.ID)
		if err != nil {
			return 0, fmt.Errorf("list signatures for %s: %w", c.ID, err)
		}
		rec := ContractRecord{Contract: c, Signatures: make([]SignatureMeta, 0, len(sigs))}
		for _, sig := range sigs {
			rec.Signatures = append(rec.Signatures, SignatureMeta{
				SignerType:  sig.SignerType,
				SignerName:  sig.SignerName,
				SignerEmail: sig.SignerEmail,
				SignerTitle: sig.SignerTitle,
				SignedAt:    sig.SignedAt,
				IPAddress:   sig.IPAddress,
				UserAgent:   sig.UserAgent,
			})
		}
		records = append(records, rec)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:       "1",
		Type:          "header",
		Timestamp:     at,
		ContractCount: len(records),
	}); err != nil {
		return 0, fmt.Errorf("encode header: %w", err)
	}

	for _, rec := range records {
		if err := enc.Encode(record{Type: "contract", Data: rec}); err != nil {
			return 0, fmt.Errorf("encode contract %s: %w", rec.ID, err)
		}
	}
	return len(records), nil
}
