package cache

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/parley/internal/proto"
)

// Transcripts keeps the full message list of each saved conversation.
type Transcripts struct {
	store *store
}

// NewTranscripts creates a new transcript cache under dir.
func NewTranscripts(dir string) (*Transcripts, error) {
	s, err := newStore(dir, TranscriptCache, ".gob")
	if err != nil {
		return nil, err
	}
	return &Transcripts{store: s}, nil
}

// Read loads the transcript of the conversation id into messages.
func (c *Transcripts) Read(id string, messages *[]proto.Message) error {
	return c.store.read(id, func(r io.Reader) error {
		if err := gob.NewDecoder(r).Decode(messages); err != nil {
			return fmt.Errorf("decode: %w", err)
		}
		return nil
	})
}

// Write stores the transcript of the conversation id.
func (c *Transcripts) Write(id string, messages *[]proto.Message) error {
	return c.store.write(id, func(w io.Writer) error {
		if err := gob.NewEncoder(w).Encode(messages); err != nil {
			return fmt.Errorf("encode: %w", err)
		}
		return nil
	})
}

// Exists reports whether a transcript is stored for id.
func (c *Transcripts) Exists(id string) bool {
	if id == "" {
		return false
	}
	_, err := os.Stat(c.store.path(id))
	return err == nil
}

// Delete a transcript. Deleting a missing transcript is not an error.
func (c *Transcripts) Delete(id string) error {
	if err := c.store.delete(id); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
