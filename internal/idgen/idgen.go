// Package idgen generates identifiers for contracts, templates, signing
// tokens and signatures.
package idgen

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	nanoid "github.com/matoous/go-nanoid/v2"
)

// Alphabet defines the character set used for the random portion of IDs and tokens.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters in a record ID (excluding the prefix).
var Length = 12

// TokenLength is the number of characters in a signing token. 32 symbols
// over a 62-character alphabet gives roughly 190 bits of entropy.
var TokenLength = 32

// NumberLength is the length of the random suffix of a contract number.
var NumberLength = 6

const (
	ContractPrefix = "ct-"
	TemplatePrefix = "tpl-"
)

// numberAlphabet avoids characters that are easy to misread over the phone.
const numberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateWithPrefix returns a new unique ID with the given prefix.
func GenerateWithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}

// ContractID returns a new contract identifier.
func ContractID() (string, error) { return GenerateWithPrefix(ContractPrefix) }

// TemplateID returns a new template identifier.
func TemplateID() (string, error) { return GenerateWithPrefix(TemplatePrefix) }

// Token returns a new unguessable signing token.
func Token() (string, error) {
	tok, err := nanoid.Generate(Alphabet, TokenLength)
	if err != nil {
		return "", fmt.Errorf("idgen: token: %w", err)
	}
	return tok, nil
}

// ContractNumber returns a human-readable contract number such as
// CN-202603-K7QX2M. Uniqueness is enforced by the store.
func ContractNumber(now time.Time) (string, error) {
	suffix, err := nanoid.Generate(numberAlphabet, NumberLength)
	if err != nil {
		return "", fmt.Errorf("idgen: contract number: %w", err)
	}
	return "CN-" + now.UTC().Format("200601") + "-" + strings.ToUpper(suffix), nil
}

// SignatureID returns a new signature identifier.
func SignatureID() string {
	return uuid.NewString()
}
