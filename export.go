package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/parley/internal/cache"
	"github.com/charmbracelet/parley/internal/proto"
)

const exportVersion = "1.0"

var errNoSessions = errors.New("no sessions in the import file")

type exportData struct {
	Version    string          `json:"version"`
	ExportDate string          `json:"exportDate"`
	Sessions   []exportSession `json:"sessions"`
}

type exportSession struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Messages     []proto.Message `json:"messages"`
	ModelID      string          `json:"modelId"`
	API          string          `json:"api,omitempty"`
	SystemPrompt string          `json:"systemPrompt,omitempty"`
	CreatedAt    int64           `json:"createdAt"`
	UpdatedAt    int64           `json:"updatedAt"`
}

// exportConversations writes every saved conversation as JSON. Timestamps
// are unix milliseconds.
func exportConversations(w io.Writer, db *convoDB, transcripts *cache.Transcripts) (int, error) {
	convos, err := db.List()
	if err != nil {
		return 0, err
	}

	data := exportData{
		Version:    exportVersion,
		ExportDate: db.now().UTC().Format(time.RFC3339),
		Sessions:   make([]exportSession, 0, len(convos)),
	}
	for _, convo := range convos {
		if !transcripts.Exists(convo.ID) {
			log.Warn("skipping conversation without transcript", "id", convo.ID)
			continue
		}
		var messages []proto.Message
		if err := transcripts.Read(convo.ID, &messages); err != nil {
			return 0, fmt.Errorf("read transcript %s: %w", convo.ID, err)
		}
		session := exportSession{
			ID:        convo.ID,
			Title:     convo.Title,
			Messages:  messages,
			ModelID:   convo.Model,
			API:       convo.API,
			CreatedAt: convo.CreatedAt().UnixMilli(),
			UpdatedAt: convo.UpdatedAt().UnixMilli(),
		}
		if len(messages) > 0 && messages[0].Role == proto.RoleSystem {
			session.SystemPrompt = messages[0].Content
		}
		data.Sessions = append(data.Sessions, session)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return 0, fmt.Errorf("encode export: %w", err)
	}
	return len(data.Sessions), nil
}

// importConversations stores the sessions of an export. Sessions without
// messages are skipped, ids that are not conversation ids are replaced.
func importConversations(r io.Reader, db *convoDB, transcripts *cache.Transcripts) (int, error) {
	sessions, err := decodeSessions(r)
	if err != nil {
		return 0, err
	}

	var n int
	for _, session := range sessions {
		if session.ID == "" || len(session.Messages) == 0 {
			log.Warn("skipping empty session", "id", session.ID, "title", session.Title)
			continue
		}
		id := session.ID
		if !convIDReg.MatchString(id) {
			id = newConversationID()
		}
		title := session.Title
		if title == "" {
			title = sessionTitle(proto.Conversation(session.Messages).LastPrompt())
		}
		if title == "" {
			title = id[:convIDShort]
		}

		messages := session.Messages
		if session.SystemPrompt != "" && messages[0].Role != proto.RoleSystem {
			messages = append([]proto.Message{{
				Role:    proto.RoleSystem,
				Content: session.SystemPrompt,
			}}, messages...)
		}

		if err := transcripts.Write(id, &messages); err != nil {
			return n, err //nolint:wrapcheck
		}
		now := db.now().UnixNano()
		convo := Conversation{
			ID:      id,
			Title:   title,
			API:     session.API,
			Model:   session.ModelID,
			Created: millisOr(session.CreatedAt, now),
			Updated: millisOr(session.UpdatedAt, now),
		}
		if err := db.put(convo); err != nil {
			_ = transcripts.Delete(id)
			return n, err
		}
		n++
	}
	return n, nil
}

// decodeSessions reads either a full export document or a bare array of
// sessions.
func decodeSessions(r io.Reader) ([]exportSession, error) {
	bts, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read import: %w", err)
	}
	bts = bytes.TrimSpace(bts)
	if bytes.HasPrefix(bts, []byte("[")) {
		var sessions []exportSession
		if err := json.Unmarshal(bts, &sessions); err != nil {
			return nil, fmt.Errorf("decode import: %w", err)
		}
		return sessions, nil
	}

	var data exportData
	if err := json.Unmarshal(bts, &data); err != nil {
		return nil, fmt.Errorf("decode import: %w", err)
	}
	if data.Sessions == nil {
		return nil, errNoSessions
	}
	return data.Sessions, nil
}

func millisOr(ms, fallback int64) int64 {
	if ms <= 0 {
		return fallback
	}
	return time.UnixMilli(ms).UnixNano()
}

func openExport(path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create export file: %w", err)
	}
	return f, nil
}

func openImport(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open import file: %w", err)
	}
	return f, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
