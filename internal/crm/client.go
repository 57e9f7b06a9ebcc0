package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"admissionsbot/internal/config"
	"admissionsbot/internal/domain"
	"admissionsbot/internal/metrics"
	"admissionsbot/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const apiPrefix = "/api/v4"

// Client talks to the amoCRM v4 REST API. Every method returns errors
// wrapping domain.ErrTransient or domain.ErrPermanent.
type Client struct {
	baseURL string
	http    *http.Client
	cfg     config.CRMConfig
	tokens  *TokenSource
	loc     *time.Location
	logger  *zerolog.Logger
}

// NewHTTPClient returns an http.Client that authorizes requests with tokens.
func NewHTTPClient(tokens oauth2.TokenSource) *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{Source: tokens, Base: http.DefaultTransport},
	}
}

func NewClient(baseURL string, cfg config.CRMConfig, tokens *TokenSource, loc *time.Location, logger *zerolog.Logger) *Client {
	if loc == nil {
		loc = time.UTC
	}
	var httpClient *http.Client
	if tokens != nil {
		httpClient = NewHTTPClient(tokens)
	} else {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		cfg:     cfg,
		tokens:  tokens,
		loc:     loc,
		logger:  logger,
	}
}

type embeddedEntity struct {
	ID int64 `json:"id"`
}

type embeddedList struct {
	Embedded struct {
		Contacts []embeddedEntity `json:"contacts"`
		Leads    []embeddedEntity `json:"leads"`
	} `json:"_embedded"`
}

type contactBody struct {
	Name               string        `json:"name,omitempty"`
	CustomFieldsValues []customField `json:"custom_fields_values,omitempty"`
}

type leadBody struct {
	Name               string        `json:"name,omitempty"`
	PipelineID         int64         `json:"pipeline_id,omitempty"`
	StatusID           int64         `json:"status_id,omitempty"`
	ResponsibleUserID  int64         `json:"responsible_user_id,omitempty"`
	CustomFieldsValues []customField `json:"custom_fields_values,omitempty"`
	Embedded           *leadEmbedded `json:"_embedded,omitempty"`
}

type leadEmbedded struct {
	Contacts []embeddedEntity `json:"contacts"`
}

type noteBody struct {
	NoteType string `json:"note_type"`
	Params   struct {
		Text string `json:"text"`
	} `json:"params"`
}

type taskBody struct {
	Text              string `json:"text"`
	CompleteTill      int64  `json:"complete_till"`
	EntityID          int64  `json:"entity_id"`
	EntityType        string `json:"entity_type"`
	ResponsibleUserID int64  `json:"responsible_user_id,omitempty"`
}

// FindContactByPhone returns the id of the first contact matching phone, or 0.
func (c *Client) FindContactByPhone(ctx context.Context, phone string) (int64, error) {
	var out embeddedList
	found, err := c.do(ctx, "find_contact", http.MethodGet, "/contacts", url.Values{"query": {phone}}, nil, &out)
	if err != nil {
		return 0, err
	}
	if !found || len(out.Embedded.Contacts) == 0 {
		return 0, nil
	}
	return out.Embedded.Contacts[0].ID, nil
}

// UpsertContact updates contactID, or the contact found by phone, or creates
// a new one. It returns the contact id.
func (c *Client) UpsertContact(ctx context.Context, contactID int64, fields models.ContactFields) (int64, error) {
	if contactID == 0 && fields.Phone != "" {
		id, err := c.FindContactByPhone(ctx, fields.Phone)
		if err != nil {
			return 0, err
		}
		contactID = id
	}

	body := contactBody{
		Name:               fields.Name,
		CustomFieldsValues: contactCustomFields(c.cfg.Fields, fields),
	}

	if contactID != 0 {
		if _, err := c.do(ctx, "update_contact", http.MethodPatch, fmt.Sprintf("/contacts/%d", contactID), nil, body, nil); err != nil {
			return 0, err
		}
		return contactID, nil
	}

	var out embeddedList
	if _, err := c.do(ctx, "create_contact", http.MethodPost, "/contacts", nil, []contactBody{body}, &out); err != nil {
		return 0, err
	}
	if len(out.Embedded.Contacts) == 0 {
		return 0, fmt.Errorf("%w: create contact: empty response", domain.ErrTransient)
	}
	return out.Embedded.Contacts[0].ID, nil
}

// UpsertLead patches leadID when it is known and creates a lead linked to
// contactID otherwise. It returns the lead id.
func (c *Client) UpsertLead(ctx context.Context, leadID, contactID int64, fields models.LeadFields) (int64, error) {
	body := leadBody{
		Name:               fields.Name,
		CustomFieldsValues: leadCustomFields(c.cfg.Fields, fields, c.loc),
	}

	if leadID != 0 {
		if _, err := c.do(ctx, "update_lead", http.MethodPatch, fmt.Sprintf("/leads/%d", leadID), nil, body, nil); err != nil {
			return 0, err
		}
		return leadID, nil
	}

	body.PipelineID = c.cfg.PipelineID
	body.StatusID = c.cfg.StatusID
	body.ResponsibleUserID = c.cfg.ResponsibleID
	if contactID != 0 {
		body.Embedded = &leadEmbedded{Contacts: []embeddedEntity{{ID: contactID}}}
	}

	var out embeddedList
	if _, err := c.do(ctx, "create_lead", http.MethodPost, "/leads", nil, []leadBody{body}, &out); err != nil {
		return 0, err
	}
	if len(out.Embedded.Leads) == 0 {
		return 0, fmt.Errorf("%w: create lead: empty response", domain.ErrTransient)
	}
	return out.Embedded.Leads[0].ID, nil
}

func (c *Client) AddNote(ctx context.Context, leadID int64, text string) error {
	if leadID == 0 {
		return fmt.Errorf("%w: add note: lead id is required", domain.ErrPermanent)
	}
	note := noteBody{NoteType: "common"}
	note.Params.Text = text

	_, err := c.do(ctx, "add_note", http.MethodPost, fmt.Sprintf("/leads/%d/notes", leadID), nil, []noteBody{note}, nil)
	return err
}

func (c *Client) CreateTask(ctx context.Context, leadID int64, text string, due time.Time) error {
	if leadID == 0 {
		return fmt.Errorf("%w: create task: lead id is required", domain.ErrPermanent)
	}
	task := taskBody{
		Text:              text,
		CompleteTill:      due.Unix(),
		EntityID:          leadID,
		EntityType:        "leads",
		ResponsibleUserID: c.cfg.ResponsibleID,
	}

	_, err := c.do(ctx, "create_task", http.MethodPost, "/tasks", nil, []taskBody{task}, nil)
	return err
}

// do performs one API call under the configured per-attempt timeout. A 401
// forces one token refresh and a single replay. found is false on 204.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, in, out interface{}) (found bool, err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveCRMCall(op, resultLabel(err), time.Since(start))
		if err != nil {
			ev := c.logger.Warn()
			if errors.Is(err, domain.ErrPermanent) {
				ev = c.logger.Error()
			}
			ev.Err(err).Str("op", op).Msg("CRM call failed")
		}
	}()

	var payload []byte
	if in != nil {
		payload, err = json.Marshal(in)
		if err != nil {
			return false, fmt.Errorf("%w: encode %s: %v", domain.ErrPermanent, op, err)
		}
	}

	status, body, err := c.send(ctx, method, path, query, payload)
	if err == nil && status == http.StatusUnauthorized && c.tokens != nil {
		if rerr := c.tokens.Refresh(ctx); rerr != nil {
			return false, rerr
		}
		status, body, err = c.send(ctx, method, path, query, payload)
	}
	if err != nil {
		return false, err
	}

	if err := classifyStatus(op, status, body); err != nil {
		return false, err
	}
	if status == http.StatusNoContent {
		return false, nil
	}
	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return false, fmt.Errorf("%w: decode %s: %v", domain.ErrTransient, op, err)
		}
	}
	return true, nil
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, payload []byte) (int, []byte, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	u := c.baseURL + apiPrefix + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: build request: %v", domain.ErrPermanent, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// token refresh failures come back wrapped in url.Error
		if errors.Is(err, domain.ErrPermanent) {
			return 0, nil, err
		}
		return 0, nil, fmt.Errorf("%w: %s %s: %v", domain.ErrTransient, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: read response: %v", domain.ErrTransient, err)
	}
	return resp.StatusCode, data, nil
}

func classifyStatus(op string, status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("%w: %s: status %d: %s", domain.ErrTransient, op, status, snippet(body))
	default:
		return fmt.Errorf("%w: %s: status %d: %s", domain.ErrPermanent, op, status, snippet(body))
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrPermanent):
		return "permanent"
	default:
		return "transient"
	}
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
