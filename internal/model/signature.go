package model

import "time"

// SignerRole identifies which party a token or signature belongs to.
type SignerRole string

const (
	RoleClient  SignerRole = "client"
	RoleSpeaker SignerRole = "speaker"
	RoleAdmin   SignerRole = "admin"
)

// String returns the string representation of the role.
func (r SignerRole) String() string {
	return string(r)
}

// IsValid checks whether the role is a known value.
func (r SignerRole) IsValid() bool {
	switch r {
	case RoleClient, RoleSpeaker, RoleAdmin:
		return true
	}
	return false
}

// SignerToken is the opaque capability granting one signer access to one contract.
type SignerToken struct {
	Token      string     `json:"token"`
	ContractID string     `json:"contract_id"`
	SignerType SignerRole `json:"signer_type"`
	Used       bool       `json:"used"`
	CreatedAt  time.Time  `json:"created_at"`
	ViewedAt   *time.Time `json:"viewed_at,omitempty"`
	UsedAt     *time.Time `json:"used_at,omitempty"`
}

// Signature is a captured ink signature for one signer role.
type Signature struct {
	ID          string     `json:"id"`
	ContractID  string     `json:"contract_id"`
	SignerType  SignerRole `json:"signer_type"`
	SignerName  string     `json:"signer_name"`
	SignerEmail string     `json:"signer_email"`
	SignerTitle string     `json:"signer_title,omitempty"`
	ImageData   string     `json:"signature_image,omitempty"`
	SignedAt    time.Time  `json:"signed_at"`
	IPAddress   string     `json:"ip_address,omitempty"`
	UserAgent   string     `json:"user_agent,omitempty"`
}

// SignedRoles returns the roles present in sigs, in input order.
func SignedRoles(sigs []*Signature) []SignerRole {
	roles := make([]SignerRole, 0, len(sigs))
	for _, s := range sigs {
		roles = append(roles, s.SignerType)
	}
	return roles
}
