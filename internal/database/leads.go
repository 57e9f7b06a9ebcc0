package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"admissionsbot/internal/domain"
	"admissionsbot/internal/models"
)

// leadDocument is the JSON part of a lead row; new answer fields go here
// together with a schema_version bump.
type leadDocument struct {
	Qualification models.Qualification `json:"qualification"`
	Draft         models.BookingDraft  `json:"draft"`
}

const leadColumns = `user_id, chat_id, username, state, locale, phone, parent_name,
    crm_contact_id, crm_lead_id, document, schema_version, qualified_at, created_at, updated_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (db *DB) GetLead(ctx context.Context, userID int64) (*models.Lead, error) {
	row := db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE user_id = ?`, userID)
	lead, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lead %d: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return lead, nil
}

// GetLeadByCRMLead finds the lead linked to a CRM lead id.
func (db *DB) GetLeadByCRMLead(ctx context.Context, crmLeadID int64) (*models.Lead, error) {
	if crmLeadID == 0 {
		return nil, fmt.Errorf("crm lead 0: %w", domain.ErrNotFound)
	}
	row := db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE crm_lead_id = ? LIMIT 1`, crmLeadID)
	lead, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("crm lead %d: %w", crmLeadID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lead by crm id: %w", err)
	}
	return lead, nil
}

func (db *DB) UpsertLead(ctx context.Context, lead *models.Lead) error {
	return upsertLead(ctx, db, lead)
}

func upsertLead(ctx context.Context, ex execer, lead *models.Lead) error {
	doc, err := json.Marshal(leadDocument{Qualification: lead.Qualification, Draft: lead.Draft})
	if err != nil {
		return fmt.Errorf("failed to encode lead document: %w", err)
	}

	now := time.Now().UTC()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	if lead.SchemaVersion == 0 {
		lead.SchemaVersion = models.CurrentLeadSchema
	}
	lead.UpdatedAt = now

	query := `INSERT INTO leads (` + leadColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(user_id) DO UPDATE SET
            chat_id = excluded.chat_id,
            username = excluded.username,
            state = excluded.state,
            locale = excluded.locale,
            phone = excluded.phone,
            parent_name = excluded.parent_name,
            crm_contact_id = excluded.crm_contact_id,
            crm_lead_id = excluded.crm_lead_id,
            document = excluded.document,
            schema_version = excluded.schema_version,
            qualified_at = excluded.qualified_at,
            updated_at = excluded.updated_at`

	_, err = ex.ExecContext(ctx, query,
		lead.UserID,
		lead.ChatID,
		lead.Username,
		lead.State,
		lead.Locale,
		lead.Phone,
		lead.ParentName,
		lead.CRMContactID,
		lead.CRMLeadID,
		string(doc),
		lead.SchemaVersion,
		nullTime(lead.QualifiedAt),
		lead.CreatedAt.UTC(),
		lead.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert lead: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLead(row rowScanner) (*models.Lead, error) {
	var (
		l   models.Lead
		doc string
	)
	err := row.Scan(
		&l.UserID, &l.ChatID, &l.Username, &l.State, &l.Locale, &l.Phone, &l.ParentName,
		&l.CRMContactID, &l.CRMLeadID, &doc, &l.SchemaVersion, &l.QualifiedAt, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	var d leadDocument
	if doc != "" {
		if err := json.Unmarshal([]byte(doc), &d); err != nil {
			return nil, fmt.Errorf("%w: lead %d document: %v", domain.ErrStoreCorrupted, l.UserID, err)
		}
	}
	l.Qualification = d.Qualification
	l.Draft = d.Draft
	return &l, nil
}

// CountLeads returns the number of leads and how many of them qualified.
func (db *DB) CountLeads(ctx context.Context) (total, qualified int, err error) {
	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(qualified_at) FROM leads`,
	).Scan(&total, &qualified)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count leads: %w", err)
	}
	return total, qualified, nil
}

// ListLeadChatIDs returns the chat of every lead, used for broadcasts.
func (db *DB) ListLeadChatIDs(ctx context.Context) ([]int64, error) {
	rows, err := db.QueryContext(ctx, `SELECT chat_id FROM leads ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list lead chats: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan chat id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
