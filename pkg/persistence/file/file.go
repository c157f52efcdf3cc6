// Package file provides file-based persistence for local development and
// tests. Each entity is one JSON document; writes go through a temp file and
// rename so a crash never leaves a torn document.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chatback/chatback/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface on the file system.
type Persistence struct {
	root string
	mu   sync.RWMutex

	sessionRepo     *SessionRepository
	messageRepo     *MessageRepository
	interviewRepo   *InterviewStateRepository
	phaseResultRepo *PhaseResultRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	p := &Persistence{root: cleanRoot}
	p.sessionRepo = &SessionRepository{p: p}
	p.messageRepo = &MessageRepository{p: p}
	p.interviewRepo = &InterviewStateRepository{p: p}
	p.phaseResultRepo = &PhaseResultRepository{p: p}

	return p
}

// Sessions returns the session repository.
func (p *Persistence) Sessions() persistence.SessionRepository {
	return p.sessionRepo
}

// Messages returns the message repository.
func (p *Persistence) Messages() persistence.MessageRepository {
	return p.messageRepo
}

// InterviewStates returns the interview state repository.
func (p *Persistence) InterviewStates() persistence.InterviewStateRepository {
	return p.interviewRepo
}

// PhaseResults returns the phase result repository.
func (p *Persistence) PhaseResults() persistence.PhaseResultRepository {
	return p.phaseResultRepo
}

// HealthCheck verifies the root directory is usable, creating it if needed.
func (p *Persistence) HealthCheck(_ context.Context) error {
	return os.MkdirAll(p.root, 0o755)
}

// Close performs any necessary cleanup. For file persistence there is nothing to clean up.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

func (p *Persistence) collectionDir(collection string) string {
	return filepath.Join(p.root, collection)
}

func (p *Persistence) documentPath(collection, id string) string {
	return filepath.Join(p.root, collection, id+".json")
}

// writeDocument marshals v and atomically replaces the document. Callers
// hold p.mu.
func (p *Persistence) writeDocument(collection, id string, v any) error {
	dir := p.collectionDir(collection)

	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return fmt.Errorf("failed to create collection directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s document: %w", collection, err)
	}

	tmp, err := os.CreateTemp(dir, id+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	_, err = tmp.Write(data)
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to write %s document: %w", collection, err)
	}

	err = tmp.Close()
	if err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to close temp file: %w", err)
	}

	return os.Rename(tmp.Name(), p.documentPath(collection, id))
}

// readDocument unmarshals the document into v. Callers hold p.mu (read side).
func (p *Persistence) readDocument(collection, id string, v any) error {
	data, err := os.ReadFile(p.documentPath(collection, id))
	if err != nil {
		return err
	}

	return json.Unmarshal(data, v)
}

func (p *Persistence) listDocuments(collection string) ([]string, error) {
	entries, err := os.ReadDir(p.collectionDir(collection))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list %s documents: %w", collection, err)
	}

	ids := make([]string, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}

	return ids, nil
}

func (p *Persistence) removeDocument(collection, id string) error {
	err := os.Remove(p.documentPath(collection, id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s document %s: %w", collection, id, err)
	}

	return nil
}

// PurgeDeletedSessions removes soft-deleted sessions past the retention window.
func (p *Persistence) PurgeDeletedSessions(_ context.Context, olderThan time.Time) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids, err := p.listDocuments(sessionCollection)
	if err != nil {
		return 0, err
	}

	purged := 0

	for _, id := range ids {
		session, err := p.sessionRepo.load(id)
		if err != nil {
			continue
		}

		if session.DeletedAt != nil && session.DeletedAt.Before(olderThan) {
			_ = p.removeDocument(sessionCollection, id)
			_ = p.removeDocument(messageCollection, id)
			_ = p.removeDocument(interviewCollection, id)
			_ = p.removeDocument(phaseCollection, id)
			purged++
		}
	}

	return purged, nil
}
