package model

import "time"

// Deal is the CRM record a contract is generated from. It is owned by the
// CRM; this service only reads it.
type Deal struct {
	ID         string     `json:"id"`
	Client     Client     `json:"client"`
	Speaker    *Speaker   `json:"speaker,omitempty"`
	Event      Engagement `json:"event"`
	Financials Financials `json:"financials"`
}

// Client is the booking party.
type Client struct {
	Name    string `json:"name"`
	Company string `json:"company,omitempty"`
	Email   string `json:"email,omitempty"`
	Title   string `json:"title,omitempty"`
}

// Speaker is the requested speaker, when one has been attached to the deal.
type Speaker struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Engagement describes the booked event.
type Engagement struct {
	Title    string     `json:"title,omitempty"`
	Date     *time.Time `json:"date,omitempty"`
	Location string     `json:"location,omitempty"`
}

// Financials holds the deal's monetary terms. Nil pointers mean "not set".
type Financials struct {
	Amount         *float64 `json:"amount,omitempty"`
	Currency       string   `json:"currency,omitempty"`
	DepositPercent *float64 `json:"deposit_percent,omitempty"`
}

// SpeakerName returns the attached speaker's name, or "" when none is attached.
func (d *Deal) SpeakerName() string {
	if d.Speaker == nil {
		return ""
	}
	return d.Speaker.Name
}
