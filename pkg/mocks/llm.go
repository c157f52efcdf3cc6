// Package mocks provides test doubles shared across package tests.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/chatback/chatback/pkg/llm"
)

// ScriptedLLM is an llm.Client returning canned responses in order. When the
// script runs out it keeps returning the last response. Responder, when set,
// overrides the script and computes the response per request. Delay, when
// set, simulates a slow model and honors context cancellation.
type ScriptedLLM struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	Delay     time.Duration
	Responder func(req llm.Request) (string, error)

	calls []llm.Request
}

func (m *ScriptedLLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	index := len(m.calls) - 1
	delay := m.Delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Responder != nil {
		return m.Responder(req)
	}

	if m.Err != nil {
		return "", m.Err
	}

	if len(m.Responses) == 0 {
		return "", llm.ErrEmptyCompletion
	}

	if index >= len(m.Responses) {
		index = len(m.Responses) - 1
	}

	return m.Responses[index], nil
}

func (m *ScriptedLLM) ModelName() string {
	return "scripted"
}

// Calls returns a copy of every request seen so far.
func (m *ScriptedLLM) Calls() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]llm.Request, len(m.calls))
	copy(calls, m.calls)

	return calls
}

// CallCount returns the number of completions requested.
func (m *ScriptedLLM) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.calls)
}
