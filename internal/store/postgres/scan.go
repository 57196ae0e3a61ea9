package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alfredjeanlab/podium/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanTemplate scans a row in templateColumns order.
func scanTemplate(row scannable) (*model.ContractTemplate, error) {
	var t model.ContractTemplate
	var (
		sections  []byte
		variables []byte
		createdBy sql.NullString
	)
	err := row.Scan(
		&t.ID,
		&t.Version,
		&t.Name,
		&t.Description,
		&t.Type,
		&sections,
		&variables,
		&t.CreatedAt,
		&createdBy,
	)
	if err != nil {
		return nil, err
	}
	t.CreatedBy = createdBy.String
	if len(sections) > 0 {
		if err := json.Unmarshal(sections, &t.Sections); err != nil {
			return nil, fmt.Errorf("decode sections: %w", err)
		}
	}
	if len(variables) > 0 {
		if err := json.Unmarshal(variables, &t.Variables); err != nil {
			return nil, fmt.Errorf("decode variables: %w", err)
		}
	}
	return &t, nil
}

func scanTemplates(rows *sql.Rows) ([]*model.ContractTemplate, error) {
	var out []*model.ContractTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// contractDest returns scan destinations for contractColumns and a finish
// func that copies nullable values into c.
func contractDest(c *model.Contract) ([]any, func()) {
	var (
		typ, dealID, company, clientEmail sql.NullString
		speaker, speakerEmail, eventTitle sql.NullString
		location, createdBy, cancelReason sql.NullString
		eventDate, sentAt, viewedAt       sql.NullTime
		executionAt, cancelledAt          sql.NullTime
	)
	dest := []any{
		&c.ID,
		&c.Number,
		&c.Title,
		&typ,
		&dealID,
		&c.TemplateID,
		&c.TemplateVersion,
		&c.ClientName,
		&company,
		&clientEmail,
		&speaker,
		&speakerEmail,
		&eventTitle,
		&eventDate,
		&location,
		&c.TotalAmount,
		&c.Currency,
		&c.DocumentBody,
		&c.RequiresCountersign,
		&c.Status,
		&c.CreatedAt,
		&createdBy,
		&c.UpdatedAt,
		&sentAt,
		&viewedAt,
		&executionAt,
		&cancelledAt,
		&cancelReason,
	}
	finish := func() {
		c.Type = typ.String
		c.DealID = dealID.String
		c.ClientCompany = company.String
		c.ClientEmail = clientEmail.String
		c.SpeakerName = speaker.String
		c.SpeakerEmail = speakerEmail.String
		c.EventTitle = eventTitle.String
		c.EventLocation = location.String
		c.CreatedBy = createdBy.String
		c.CancelReason = cancelReason.String
		c.EventDate = timePtr(eventDate)
		c.SentAt = timePtr(sentAt)
		c.ViewedAt = timePtr(viewedAt)
		c.ExecutionAt = timePtr(executionAt)
		c.CancelledAt = timePtr(cancelledAt)
	}
	return dest, finish
}

// scanContract scans a single row into a model.Contract.
// The row must contain columns in the order defined by contractColumns.
func scanContract(row scannable) (*model.Contract, error) {
	var c model.Contract
	dest, finish := contractDest(&c)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	finish()
	return &c, nil
}

// scanContractWithTotal scans a row that has a leading total_count column
// followed by the standard contract columns.
func scanContractWithTotal(row scannable) (*model.Contract, int, error) {
	var c model.Contract
	var total int
	dest, finish := contractDest(&c)
	if err := row.Scan(append([]any{&total}, dest...)...); err != nil {
		return nil, 0, err
	}
	finish()
	return &c, total, nil
}

func scanToken(row scannable) (*model.SignerToken, error) {
	var t model.SignerToken
	var viewedAt, usedAt sql.NullTime
	err := row.Scan(&t.Token, &t.ContractID, &t.SignerType, &t.Used, &t.CreatedAt, &viewedAt, &usedAt)
	if err != nil {
		return nil, err
	}
	t.ViewedAt = timePtr(viewedAt)
	t.UsedAt = timePtr(usedAt)
	return &t, nil
}

func scanTokens(rows *sql.Rows) ([]*model.SignerToken, error) {
	var out []*model.SignerToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanSignature(row scannable) (*model.Signature, error) {
	var s model.Signature
	var title, ip, ua sql.NullString
	err := row.Scan(
		&s.ID,
		&s.ContractID,
		&s.SignerType,
		&s.SignerName,
		&s.SignerEmail,
		&title,
		&s.ImageData,
		&s.SignedAt,
		&ip,
		&ua,
	)
	if err != nil {
		return nil, err
	}
	s.SignerTitle = title.String
	s.IPAddress = ip.String
	s.UserAgent = ua.String
	return &s, nil
}

func scanSignatures(rows *sql.Rows) ([]*model.Signature, error) {
	var out []*model.Signature
	for rows.Next() {
		s, err := scanSignature(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// scanEvents scans multiple rows into a slice of model.Event pointers.
func scanEvents(rows *sql.Rows) ([]*model.Event, error) {
	var events []*model.Event
	for rows.Next() {
		var e model.Event
		var actor sql.NullString
		var payload []byte
		if err := rows.Scan(&e.ID, &e.Topic, &e.ContractID, &actor, &payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Actor = actor.String
		if len(payload) > 0 {
			e.Payload = json.RawMessage(payload)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func scanDeal(row scannable) (*model.Deal, error) {
	var d model.Deal
	var (
		company, email, title          sql.NullString
		speaker, speakerEmail          sql.NullString
		eventTitle, location, currency sql.NullString
		eventDate                      sql.NullTime
		amount, deposit                sql.NullFloat64
	)
	err := row.Scan(
		&d.ID,
		&d.Client.Name,
		&company,
		&email,
		&title,
		&speaker,
		&speakerEmail,
		&eventTitle,
		&eventDate,
		&location,
		&amount,
		&currency,
		&deposit,
	)
	if err != nil {
		return nil, err
	}
	d.Client.Company = company.String
	d.Client.Email = email.String
	d.Client.Title = title.String
	if speaker.Valid && speaker.String != "" {
		d.Speaker = &model.Speaker{Name: speaker.String, Email: speakerEmail.String}
	}
	d.Event.Title = eventTitle.String
	d.Event.Date = timePtr(eventDate)
	d.Event.Location = location.String
	d.Financials.Currency = currency.String
	if amount.Valid {
		v := amount.Float64
		d.Financials.Amount = &v
	}
	if deposit.Valid {
		v := deposit.Float64
		d.Financials.DepositPercent = &v
	}
	return &d, nil
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// nullTimePtr converts a *time.Time to a sql.NullTime.
func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// nullString converts a string to sql.NullString; empty string is null.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// jsonbBytes converts json.RawMessage to a []byte suitable for JSONB columns.
func jsonbBytes(m json.RawMessage) []byte {
	if len(m) == 0 {
		return nil
	}
	return []byte(m)
}
