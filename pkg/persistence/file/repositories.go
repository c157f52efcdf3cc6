package file

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/chatback/chatback/pkg/models"
	"github.com/chatback/chatback/pkg/persistence"
)

const (
	sessionCollection   = "sessions"
	messageCollection   = "messages"
	interviewCollection = "interview_states"
	phaseCollection     = "phase_results"
)

// SessionRepository implements persistence.SessionRepository on files.
type SessionRepository struct {
	p *Persistence
}

func (r *SessionRepository) load(id string) (*models.Session, error) {
	var session models.Session

	err := r.p.readDocument(sessionCollection, id, &session)
	if err != nil {
		return nil, err
	}

	return &session, nil
}

func (r *SessionRepository) Save(_ context.Context, session *models.Session) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	now := time.Now().UTC()

	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}

	session.UpdatedAt = now

	if session.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}

		session.ID = id.String()
	}

	return r.p.writeDocument(sessionCollection, session.ID, session)
}

func (r *SessionRepository) GetByID(_ context.Context, id string) (*models.Session, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	session, err := r.load(id)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewSessionError("GetByID", id, persistence.ErrSessionNotFound)
		}

		return nil, persistence.NewSessionError("GetByID", id, err)
	}

	if session.DeletedAt != nil {
		return nil, persistence.NewSessionError("GetByID", id, persistence.ErrSessionNotFound)
	}

	return session, nil
}

func (r *SessionRepository) ListByUser(_ context.Context, userID string) ([]*models.Session, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	ids, err := r.p.listDocuments(sessionCollection)
	if err != nil {
		return nil, err
	}

	sessions := make([]*models.Session, 0)

	for _, id := range ids {
		session, err := r.load(id)
		if err != nil {
			continue
		}

		if session.UserID == userID && session.DeletedAt == nil {
			sessions = append(sessions, session)
		}
	}

	return sessions, nil
}

func (r *SessionRepository) Delete(_ context.Context, id string) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	session, err := r.load(id)
	if err != nil || session.DeletedAt != nil {
		return persistence.NewSessionError("Delete", id, persistence.ErrSessionNotFound)
	}

	now := time.Now().UTC()
	session.DeletedAt = &now
	session.UpdatedAt = now

	return r.p.writeDocument(sessionCollection, id, session)
}

// MessageRepository stores each session's transcript as one ordered document.
type MessageRepository struct {
	p *Persistence
}

func (r *MessageRepository) Append(_ context.Context, message *models.Message) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	if message.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}

		message.ID = id.String()
	}

	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	var transcript []*models.Message

	err := r.p.readDocument(messageCollection, message.SessionID, &transcript)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	transcript = append(transcript, message)

	return r.p.writeDocument(messageCollection, message.SessionID, transcript)
}

func (r *MessageRepository) ListBySession(_ context.Context, sessionID string) ([]*models.Message, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	var transcript []*models.Message

	err := r.p.readDocument(messageCollection, sessionID, &transcript)
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.Message{}, nil
		}

		return nil, err
	}

	return transcript, nil
}

func (r *MessageRepository) DeleteBySession(_ context.Context, sessionID string) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	return r.p.removeDocument(messageCollection, sessionID)
}

// InterviewStateRepository implements the conditional update in-process: the
// persistence mutex makes read-check-write atomic within one backend.
type InterviewStateRepository struct {
	p *Persistence
}

func (r *InterviewStateRepository) Create(_ context.Context, state *models.InterviewState) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	state.Version = 1
	state.UpdatedAt = time.Now().UTC()

	return r.p.writeDocument(interviewCollection, state.SessionID, state)
}

func (r *InterviewStateRepository) GetBySession(_ context.Context, sessionID string) (*models.InterviewState, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	var state models.InterviewState

	err := r.p.readDocument(interviewCollection, sessionID, &state)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewSessionError("GetInterviewState", sessionID, persistence.ErrInterviewStateNotFound)
		}

		return nil, persistence.NewSessionError("GetInterviewState", sessionID, err)
	}

	return &state, nil
}

func (r *InterviewStateRepository) CompareAndSave(_ context.Context, state *models.InterviewState, expectedVersion int64) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	var stored models.InterviewState

	err := r.p.readDocument(interviewCollection, state.SessionID, &stored)
	if err != nil {
		if os.IsNotExist(err) {
			return persistence.NewSessionError("CompareAndSave", state.SessionID, persistence.ErrInterviewStateNotFound)
		}

		return persistence.NewSessionError("CompareAndSave", state.SessionID, err)
	}

	if stored.Version != expectedVersion {
		return persistence.NewSessionError("CompareAndSave", state.SessionID, persistence.ErrStateConflict)
	}

	state.Version = expectedVersion + 1
	state.UpdatedAt = time.Now().UTC()

	return r.p.writeDocument(interviewCollection, state.SessionID, state)
}

// PhaseResultRepository stores all of a session's phase results in one document.
type PhaseResultRepository struct {
	p *Persistence
}

func (r *PhaseResultRepository) Save(_ context.Context, result *models.PhaseResult) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	results := make(map[models.Phase]*models.PhaseResult)

	err := r.p.readDocument(phaseCollection, result.SessionID, &results)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	results[result.Phase] = result

	return r.p.writeDocument(phaseCollection, result.SessionID, results)
}

func (r *PhaseResultRepository) GetBySession(_ context.Context, sessionID string) ([]*models.PhaseResult, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	results := make(map[models.Phase]*models.PhaseResult)

	err := r.p.readDocument(phaseCollection, sessionID, &results)
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.PhaseResult{}, nil
		}

		return nil, err
	}

	ordered := make([]*models.PhaseResult, 0, len(results))
	for _, phase := range []models.Phase{
		models.PhaseDiagram, models.PhaseRequirements, models.PhaseDocument, models.PhaseReviewer,
	} {
		if result, ok := results[phase]; ok {
			ordered = append(ordered, result)
		}
	}

	return ordered, nil
}

func (r *PhaseResultRepository) Get(_ context.Context, sessionID string, phase models.Phase) (*models.PhaseResult, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	results := make(map[models.Phase]*models.PhaseResult)

	err := r.p.readDocument(phaseCollection, sessionID, &results)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	result, ok := results[phase]
	if !ok {
		return nil, &persistence.PhaseError{
			Op: "Get", SessionID: sessionID, Phase: string(phase),
			Err: persistence.ErrPhaseResultNotFound,
		}
	}

	return result, nil
}
