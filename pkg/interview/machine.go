package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/chatback/chatback/pkg/memory"
	"github.com/chatback/chatback/pkg/models"
	"github.com/chatback/chatback/pkg/persistence"
)

// ErrInterviewCompleted is returned when a message arrives for an interview
// that already reached its terminal state. Routing completed sessions is the
// caller's job.
var ErrInterviewCompleted = errors.New("interview already completed")

// InterviewerName is the persona conducting the interview.
const InterviewerName = "Agent Smith"

// Machine walks a session through the interview script. Every user turn is
// an answer to the current question: it advances the position tuple and
// persists it with a conditional update before the reply is returned.
type Machine struct {
	script *Script
	states persistence.InterviewStateRepository
	memory *memory.Memory
	logger *slog.Logger
}

// NewMachine builds an interview machine over the given script.
func NewMachine(script *Script, states persistence.InterviewStateRepository, mem *memory.Memory, logger *slog.Logger) *Machine {
	return &Machine{
		script: script,
		states: states,
		memory: mem,
		logger: logger.With("module", "interview"),
	}
}

// Begin creates the initial interview state for a fresh session.
func (m *Machine) Begin(ctx context.Context, sessionID string) (*models.InterviewState, error) {
	state := &models.InterviewState{
		SessionID:     sessionID,
		Section:       1,
		QuestionIndex: 0,
		Phase:         models.InterviewPhaseInterview,
	}

	err := m.states.Create(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("failed to create interview state: %w", err)
	}

	return state, nil
}

// Introduction returns the personalized opening message with the first
// question. Used exactly once, before the first user message arrives.
func (m *Machine) Introduction(username string) string {
	firstQuestion := m.script.Sections[0].Questions[0]

	namePart := ","
	if username != "" {
		first, size := utf8.DecodeRuneInString(username)
		namePart = fmt.Sprintf(" %c%s,", unicode.ToUpper(first), username[size:])
	}

	return fmt.Sprintf(`%s%s my name is %s. I am a senior business analyst specializing in stakeholder interviews and requirements gathering. I'll be conducting a structured interview to help understand your project needs and requirements thoroughly. We'll go through several sections covering different aspects of your project.

### Let's begin with our first question!

**%s**`, timeGreeting(time.Now().UTC()), namePart, InterviewerName, firstQuestion)
}

// ProcessMessage records the user's answer to the current question, advances
// the position, and returns the next question or the closing message. The
// new position is persisted atomically against state.Version; a concurrent
// writer surfaces as a state conflict, never a silent double advance. The
// position commit comes before any transcript write, so a losing duplicate
// delivery leaves no trace in the transcript either.
func (m *Machine) ProcessMessage(ctx context.Context, state *models.InterviewState, userText string) (string, error) {
	if state.Phase != models.InterviewPhaseInterview {
		return "", ErrInterviewCompleted
	}

	expectedVersion := state.Version

	// Whitespace-only answers still advance: answer quality is not the
	// state machine's concern.
	state.Answered++
	state.Progress = clamp(float64(state.Answered) / float64(m.script.TotalQuestions()))

	reply := m.advance(state)

	err := m.states.CompareAndSave(ctx, state, expectedVersion)
	if err != nil {
		return "", fmt.Errorf("failed to persist interview position: %w", err)
	}

	err = m.memory.Append(ctx, &models.Message{
		SessionID: state.SessionID,
		Role:      models.RoleUser,
		Content:   userText,
	})
	if err != nil {
		m.logger.WarnContext(ctx, "Failed to record answer", "session_id", state.SessionID, "error", err)
	}

	err = m.memory.Append(ctx, &models.Message{
		SessionID: state.SessionID,
		Role:      models.RoleAssistant,
		Content:   reply,
		Metadata:  map[string]any{models.ProgressSnapshotKey: state.Progress},
	})
	if err != nil {
		m.logger.WarnContext(ctx, "Failed to record interview reply", "session_id", state.SessionID, "error", err)
	}

	return reply, nil
}

// advance moves the position tuple to the next question in document order
// and returns the reply text. Past the final question it drives the state
// through DOCUMENT to COMPLETED and returns the closing message.
func (m *Machine) advance(state *models.InterviewState) string {
	section := m.script.Sections[state.Section-1]

	if state.QuestionIndex < len(section.Questions)-1 {
		state.QuestionIndex++
		question, _ := m.script.Question(state.Section, state.QuestionIndex)

		return fmt.Sprintf("**%s**", question)
	}

	if state.Section < m.script.SectionCount() {
		state.Section++
		state.QuestionIndex = 0
		question, _ := m.script.Question(state.Section, 0)

		return fmt.Sprintf("### Moving on to section: %s\n\n**%s**", m.script.SectionName(state.Section), question)
	}

	state.MarkCompleted()

	return completionMessage
}

// Progress reports the stored fraction without side effects.
func (m *Machine) Progress(state *models.InterviewState) float64 {
	return state.Progress
}

// IsComplete reports whether the interview reached its terminal state.
func (m *Machine) IsComplete(state *models.InterviewState) bool {
	return state.Phase == models.InterviewPhaseCompleted
}

func timeGreeting(now time.Time) string {
	switch hour := now.Hour(); {
	case hour < 12:
		return "Good morning"
	case hour < 17:
		return "Good afternoon"
	default:
		return "Good evening"
	}
}

func clamp(fraction float64) float64 {
	if fraction < 0 {
		return 0
	}

	if fraction > 1 {
		return 1
	}

	return fraction
}

const completionMessage = `Thank you for completing this comprehensive interview!

I've gathered all the information needed to proceed with the next steps in our process. Here's what will happen next:

1. **Modeling Phase**:
   - Agent Jackson will analyze our conversation and generate UML diagrams to visualize the system architecture
   - The UML diagrams will be saved and accessible on the Diagrams page

2. **Requirements Gathering Phase**:
   - Agent Thompson will extract and categorize all functional and non-functional requirements
   - The requirements will be saved and accessible on the Requirements page

3. **Documentation Phase**:
   - Agent Jones will analyze our conversation and generate a Software Requirements Specification document
   - Agent Brown will review the SRS document and suggest improvements where necessary
   - The requirements and the diagrams will be included in the document

All this information will be accessible to you and your team members. It will serve as a solid foundation for your software development project.

**Please wait while our specialized agents process this information. This may take a few moments...**`
