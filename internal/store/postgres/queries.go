package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/podium/internal/model"
	"github.com/alfredjeanlab/podium/internal/store"
)

const (
	uniqueViolation   = pq.ErrorCode("23505")
	contractNumberKey = "contracts_contract_number_key"
)

const templateColumns = `id, version, name, description, type, sections, variables, created_at, created_by`

// contractColumns is the column list used for SELECT statements on the contracts table.
const contractColumns = `id, contract_number, title, type, deal_id, template_id, template_version,
	client_name, client_company, client_email, speaker_name, speaker_email,
	event_title, event_date, event_location, total_amount, currency, document_body,
	requires_countersign, status, created_at, created_by, updated_at,
	sent_at, viewed_at, execution_at, cancelled_at, cancel_reason`

const tokenColumns = `token, contract_id, signer_type, used, created_at, viewed_at, used_at`

const signatureColumns = `id, contract_id, signer_type, signer_name, signer_email, signer_title,
	image_data, signed_at, ip_address, user_agent`

const dealColumns = `id, client_name, client_company, client_email, client_title,
	speaker_name, speaker_email, event_title, event_date, event_location,
	amount, currency, deposit_percent`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// notFound translates sql.ErrNoRows into model.ErrNotFound.
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, model.ErrNotFound)
	}
	return err
}

func queryCreateTemplate(ctx context.Context, db executor, t *model.ContractTemplate) error {
	sections, err := json.Marshal(t.Sections)
	if err != nil {
		return fmt.Errorf("encode sections: %w", err)
	}
	variables, err := json.Marshal(t.Variables)
	if err != nil {
		return fmt.Errorf("encode variables: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO contract_templates (`+templateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.Version, t.Name, t.Description, t.Type,
		sections, variables, t.CreatedAt, nullString(t.CreatedBy),
	)
	return err
}

func queryGetTemplate(ctx context.Context, db executor, id string) (*model.ContractTemplate, error) {
	row := db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM contract_templates
		WHERE id = $1 ORDER BY version DESC LIMIT 1`, id)
	t, err := scanTemplate(row)
	if err != nil {
		return nil, notFound(err, "template "+id)
	}
	return t, nil
}

func queryGetTemplateVersion(ctx context.Context, db executor, id string, version int) (*model.ContractTemplate, error) {
	row := db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM contract_templates
		WHERE id = $1 AND version = $2`, id, version)
	t, err := scanTemplate(row)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("template %s v%d", id, version))
	}
	return t, nil
}

func queryListTemplates(ctx context.Context, db executor) ([]*model.ContractTemplate, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT DISTINCT ON (id) `+templateColumns+`
		FROM contract_templates
		ORDER BY id, version DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTemplates(rows)
}

func queryCreateContract(ctx context.Context, db executor, c *model.Contract) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO contracts (`+contractColumns+`) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23,
			$24, $25, $26, $27, $28
		)`,
		c.ID,
		c.Number,
		c.Title,
		nullString(c.Type),
		nullString(c.DealID),
		c.TemplateID,
		c.TemplateVersion,
		c.ClientName,
		nullString(c.ClientCompany),
		nullString(c.ClientEmail),
		nullString(c.SpeakerName),
		nullString(c.SpeakerEmail),
		nullString(c.EventTitle),
		nullTimePtr(c.EventDate),
		nullString(c.EventLocation),
		c.TotalAmount,
		c.Currency,
		c.DocumentBody,
		c.RequiresCountersign,
		string(c.Status),
		c.CreatedAt,
		nullString(c.CreatedBy),
		c.UpdatedAt,
		nullTimePtr(c.SentAt),
		nullTimePtr(c.ViewedAt),
		nullTimePtr(c.ExecutionAt),
		nullTimePtr(c.CancelledAt),
		nullString(c.CancelReason),
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && pqErr.Constraint == contractNumberKey {
		return fmt.Errorf("contract %s: %s: %w", c.ID, c.Number, store.ErrDuplicateNumber)
	}
	return err
}

func queryGetContract(ctx context.Context, db executor, id string, lock bool) (*model.Contract, error) {
	q := `SELECT ` + contractColumns + ` FROM contracts WHERE id = $1`
	if lock {
		q += ` FOR UPDATE`
	}
	c, err := scanContract(db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, notFound(err, "contract "+id)
	}
	return c, nil
}

func queryListContracts(ctx context.Context, db executor, filter model.ContractFilter) ([]*model.Contract, int, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			placeholders[i] = nextArg()
			args = append(args, string(s))
		}
		whereClauses = append(whereClauses, "status IN ("+strings.Join(placeholders, ", ")+")")
	}

	if filter.DealID != "" {
		whereClauses = append(whereClauses, "deal_id = "+nextArg())
		args = append(args, filter.DealID)
	}

	if filter.Search != "" {
		p := nextArg()
		whereClauses = append(whereClauses,
			"(title ILIKE "+p+" OR client_name ILIKE "+p+" OR contract_number ILIKE "+p+")")
		args = append(args, "%"+filter.Search+"%")
	}

	q := `SELECT COUNT(*) OVER() AS total_count, ` + contractColumns + ` FROM contracts`
	if len(whereClauses) > 0 {
		q += " WHERE " + strings.Join(whereClauses, " AND ")
	}
	q += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		q += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		q += " OFFSET " + nextArg()
		args = append(args, filter.Offset)
	}

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list contracts: %w", err)
	}
	defer rows.Close()

	var (
		contracts []*model.Contract
		total     int
	)
	for rows.Next() {
		c, t, err := scanContractWithTotal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan contract: %w", err)
		}
		total = t
		contracts = append(contracts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list contracts: %w", err)
	}
	return contracts, total, nil
}

func queryUpdateContractStatus(ctx context.Context, db executor, u store.StatusUpdate) error {
	res, err := db.ExecContext(ctx, `
		UPDATE contracts SET
			status = $1,
			updated_at = $2,
			sent_at = COALESCE($3, sent_at),
			execution_at = COALESCE($4, execution_at),
			cancelled_at = COALESCE($5, cancelled_at),
			cancel_reason = COALESCE($6, cancel_reason)
		WHERE id = $7 AND status = $8`,
		string(u.To),
		u.At,
		nullTimePtr(u.SentAt),
		nullTimePtr(u.ExecutionAt),
		nullTimePtr(u.CancelledAt),
		nullString(u.CancelReason),
		u.ID,
		string(u.From),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrStaleStatus
	}
	return nil
}

func queryMarkContractViewed(ctx context.Context, db executor, id string, at time.Time) error {
	_, err := db.ExecContext(ctx,
		`UPDATE contracts SET viewed_at = $1 WHERE id = $2 AND viewed_at IS NULL`, at, id)
	return err
}

func queryCreateToken(ctx context.Context, db executor, t *model.SignerToken) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO signer_tokens (`+tokenColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.Token, t.ContractID, string(t.SignerType), t.Used, t.CreatedAt,
		nullTimePtr(t.ViewedAt), nullTimePtr(t.UsedAt),
	)
	return err
}

func queryGetToken(ctx context.Context, db executor, token string) (*model.SignerToken, error) {
	row := db.QueryRowContext(ctx, `SELECT `+tokenColumns+` FROM signer_tokens WHERE token = $1`, token)
	t, err := scanToken(row)
	if err != nil {
		return nil, notFound(err, "token")
	}
	return t, nil
}

func queryListTokens(ctx context.Context, db executor, contractID string) ([]*model.SignerToken, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+tokenColumns+` FROM signer_tokens
		WHERE contract_id = $1 ORDER BY created_at, signer_type`, contractID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTokens(rows)
}

func queryMarkTokenUsed(ctx context.Context, db executor, token string, at time.Time) error {
	res, err := db.ExecContext(ctx,
		`UPDATE signer_tokens SET used = true, used_at = $1 WHERE token = $2`, at, token)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("token: %w", model.ErrNotFound)
	}
	return nil
}

func queryMarkTokenViewed(ctx context.Context, db executor, token string, at time.Time) (bool, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE signer_tokens SET viewed_at = $1 WHERE token = $2 AND viewed_at IS NULL`, at, token)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func queryInsertSignature(ctx context.Context, db executor, s *model.Signature) (bool, error) {
	res, err := db.ExecContext(ctx, `
		INSERT INTO signatures (`+signatureColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (contract_id, signer_type) DO NOTHING`,
		s.ID, s.ContractID, string(s.SignerType), s.SignerName, s.SignerEmail,
		nullString(s.SignerTitle), s.ImageData, s.SignedAt,
		nullString(s.IPAddress), nullString(s.UserAgent),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func queryListSignatures(ctx context.Context, db executor, contractID string) ([]*model.Signature, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+signatureColumns+` FROM signatures
		WHERE contract_id = $1 ORDER BY signed_at, signer_type`, contractID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSignatures(rows)
}

func queryRecordEvent(ctx context.Context, db executor, e *model.Event) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO contract_events (topic, contract_id, actor, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		e.Topic, e.ContractID, nullString(e.Actor), jsonbBytes(e.Payload), e.CreatedAt,
	).Scan(&e.ID)
}

func queryGetEvents(ctx context.Context, db executor, contractID string) ([]*model.Event, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, topic, contract_id, actor, payload, created_at
		FROM contract_events
		WHERE contract_id = $1
		ORDER BY created_at, id`, contractID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func queryGetDeal(ctx context.Context, db executor, id string) (*model.Deal, error) {
	row := db.QueryRowContext(ctx, `SELECT `+dealColumns+` FROM deals WHERE id = $1`, id)
	d, err := scanDeal(row)
	if err != nil {
		return nil, notFound(err, "deal "+id)
	}
	return d, nil
}
