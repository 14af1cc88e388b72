package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"time"

	xstrings "github.com/charmbracelet/x/exp/strings"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
)

var (
	errNoMatches   = errors.New("no conversations found")
	errManyMatches = errors.New("multiple conversations matched the input")
)

// Conversation ids are 40 hex characters. Short ids are used for display,
// and lookups need at least convIDMinLen characters to match an id prefix.
const (
	convIDShort  = 7
	convIDMinLen = 4
)

var convIDReg = regexp.MustCompile(`\b[0-9a-f]{40}\b`)

func newConversationID() string {
	b := make([]byte, 20) //nolint:mnd
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func handleSqliteErr(err error) error {
	sqerr := &sqlite.Error{}
	if errors.As(err, &sqerr) {
		return fmt.Errorf("%w: %s", sqerr, sqlite.ErrorCodeString[sqerr.Code()])
	}
	return err
}

func openDB(ds string) (*convoDB, error) {
	db, err := sqlx.Open("sqlite", ds)
	if err != nil {
		return nil, fmt.Errorf("could not create db: %w", handleSqliteErr(err))
	}
	// a single connection keeps in-memory databases alive between calls.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("could not ping db: %w", handleSqliteErr(err))
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS conversations (
		  id TEXT NOT NULL PRIMARY KEY,
		  title TEXT NOT NULL,
		  api TEXT NOT NULL DEFAULT '',
		  model TEXT NOT NULL DEFAULT '',
		  created_at INTEGER NOT NULL,
		  updated_at INTEGER NOT NULL,
		  CHECK (id <> ''),
		  CHECK (title <> '')
		)
	`); err != nil {
		return nil, fmt.Errorf("could not migrate db: %w", handleSqliteErr(err))
	}
	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_conv_title ON conversations(title)
	`); err != nil {
		return nil, fmt.Errorf("could not migrate db: %w", handleSqliteErr(err))
	}
	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_conv_updated ON conversations(updated_at)
	`); err != nil {
		return nil, fmt.Errorf("could not migrate db: %w", handleSqliteErr(err))
	}
	return &convoDB{db: db, now: time.Now}, nil
}

type convoDB struct {
	db  *sqlx.DB
	now func() time.Time
}

// Conversation in the database.
type Conversation struct {
	ID      string `db:"id"`
	Title   string `db:"title"`
	API     string `db:"api"`
	Model   string `db:"model"`
	Created int64  `db:"created_at"`
	Updated int64  `db:"updated_at"`
}

// CreatedAt is when the conversation was first saved.
func (c Conversation) CreatedAt() time.Time { return time.Unix(0, c.Created) }

// UpdatedAt is when the conversation was last saved.
func (c Conversation) UpdatedAt() time.Time { return time.Unix(0, c.Updated) }

func (c *convoDB) Close() error {
	return c.db.Close() //nolint: wrapcheck
}

// Save creates the conversation or updates its title, api, model and
// modification time.
func (c *convoDB) Save(id, title, api, model string) error {
	now := c.now().UnixNano()
	return c.put(Conversation{
		ID:      id,
		Title:   title,
		API:     api,
		Model:   model,
		Created: now,
		Updated: now,
	})
}

func (c *convoDB) put(convo Conversation) error {
	if _, err := c.db.NamedExec(`
		INSERT INTO conversations (id, title, api, model, created_at, updated_at)
		VALUES (:id, :title, :api, :model, :created_at, :updated_at)
		ON CONFLICT(id) DO UPDATE SET
		  title = excluded.title,
		  api = excluded.api,
		  model = excluded.model,
		  updated_at = excluded.updated_at
	`, convo); err != nil {
		return fmt.Errorf("Save: %w", handleSqliteErr(err))
	}
	return nil
}

func (c *convoDB) Delete(id string) error {
	if _, err := c.db.Exec(c.db.Rebind(`
		DELETE FROM conversations
		WHERE id = ?
	`), id); err != nil {
		return fmt.Errorf("Delete: %w", handleSqliteErr(err))
	}
	return nil
}

func (c *convoDB) ListOlderThan(t time.Duration) ([]Conversation, error) {
	var convos []Conversation
	if err := c.db.Select(&convos, c.db.Rebind(`
		SELECT * FROM conversations
		WHERE updated_at < ?
		ORDER BY updated_at DESC
	`), c.now().Add(-t).UnixNano()); err != nil {
		return nil, fmt.Errorf("ListOlderThan: %w", handleSqliteErr(err))
	}
	return convos, nil
}

func (c *convoDB) FindHEAD() (*Conversation, error) {
	var convo Conversation
	if err := c.db.Get(&convo, `
		SELECT * FROM conversations
		ORDER BY updated_at DESC
		LIMIT 1
	`); err != nil {
		return nil, fmt.Errorf("FindHead: %w", handleSqliteErr(err))
	}
	return &convo, nil
}

func (c *convoDB) findByExactTitle(result *[]Conversation, in string) error {
	if err := c.db.Select(result, c.db.Rebind(`
		SELECT * FROM conversations
		WHERE title = ?
	`), in); err != nil {
		return fmt.Errorf("findByExactTitle: %w", handleSqliteErr(err))
	}
	return nil
}

func (c *convoDB) findByIDOrTitle(result *[]Conversation, in string) error {
	if err := c.db.Select(result, c.db.Rebind(`
		SELECT * FROM conversations
		WHERE id GLOB ?
		OR title = ?
	`), in+"*", in); err != nil {
		return fmt.Errorf("findByIDOrTitle: %w", handleSqliteErr(err))
	}
	return nil
}

// Completions returns "<short id>\t<title>" entries for shell completion.
func (c *convoDB) Completions(in string) ([]string, error) {
	var convos []Conversation
	if err := c.db.Select(&convos, c.db.Rebind(`
		SELECT * FROM conversations
		WHERE id GLOB ?
		OR title GLOB ?
		ORDER BY updated_at DESC
	`), in+"*", in+"*"); err != nil {
		return nil, fmt.Errorf("Completions: %w", handleSqliteErr(err))
	}
	result := make([]string, 0, len(convos))
	for _, convo := range convos {
		id := convo.ID
		if len(in) < convIDShort && len(id) > convIDShort {
			id = id[:convIDShort]
		}
		result = append(result, id+"\t"+convo.Title)
	}
	return result, nil
}

// Find looks a conversation up by id prefix or exact title. Inputs shorter
// than an id prefix only match titles.
func (c *convoDB) Find(in string) (*Conversation, error) {
	var conversations []Conversation
	var err error

	if len(in) < convIDMinLen {
		err = c.findByExactTitle(&conversations, in)
	} else {
		err = c.findByIDOrTitle(&conversations, in)
	}
	if err != nil {
		return nil, fmt.Errorf("Find %q: %w", in, err)
	}

	if len(conversations) > 1 {
		ids := make([]string, 0, len(conversations))
		for _, convo := range conversations {
			ids = append(ids, convo.ID[:min(len(convo.ID), convIDShort)])
		}
		return nil, fmt.Errorf("%w: %s (%s)", errManyMatches, in, xstrings.EnglishJoin(ids, true))
	}
	if len(conversations) == 1 {
		return &conversations[0], nil
	}
	return nil, fmt.Errorf("%w: %s", errNoMatches, in)
}

func (c *convoDB) List() ([]Conversation, error) {
	var convos []Conversation
	if err := c.db.Select(&convos, `
		SELECT * FROM conversations
		ORDER BY updated_at DESC
	`); err != nil {
		return convos, fmt.Errorf("List: %w", handleSqliteErr(err))
	}
	return convos, nil
}
