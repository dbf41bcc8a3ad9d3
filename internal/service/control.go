package service

import (
	"encoding/json"
	"sync"

	"github.com/coder/quartz"

	"vinzhub-stats-api/internal/model"
	"vinzhub-stats-api/pkg/uid"
)

// MaxQueuedCommands is how many commands a mailbox keeps; older ones are dropped.
const MaxQueuedCommands = 100

type mailbox struct {
	state    *model.ControlState
	commands []model.Command
}

// ControlService is the per-user-key command and state mailbox. It lives in
// process memory only.
type ControlService struct {
	clock quartz.Clock

	mu    sync.Mutex
	boxes map[string]*mailbox
}

// NewControlService creates an empty mailbox set.
func NewControlService(clock quartz.Clock) *ControlService {
	return &ControlService{
		clock: clock,
		boxes: make(map[string]*mailbox),
	}
}

// box returns the user's mailbox. Caller holds s.mu.
func (s *ControlService) box(userKey string) *mailbox {
	b, ok := s.boxes[userKey]
	if !ok {
		b = &mailbox{}
		s.boxes[userKey] = b
	}
	return b
}

// SetState replaces the latest state.
func (s *ControlService) SetState(userKey string, state json.RawMessage) model.ControlState {
	st := model.ControlState{
		State:     append(json.RawMessage(nil), state...),
		UpdatedAt: s.clock.Now().Unix(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.box(userKey).state = &st
	return st
}

// State returns the latest state, if any was set.
func (s *ControlService) State(userKey string) (model.ControlState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.boxes[userKey]
	if !ok || b.state == nil {
		return model.ControlState{}, false
	}
	return *b.state, true
}

// PushCommand queues a command, keeping only the newest MaxQueuedCommands.
func (s *ControlService) PushCommand(userKey string, payload json.RawMessage) model.Command {
	cmd := model.Command{
		ID:        uid.New(),
		Payload:   append(json.RawMessage(nil), payload...),
		CreatedAt: s.clock.Now().Unix(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.box(userKey)
	b.commands = append(b.commands, cmd)
	if over := len(b.commands) - MaxQueuedCommands; over > 0 {
		b.commands = append([]model.Command(nil), b.commands[over:]...)
	}
	return cmd
}

// DrainCommands returns the queued commands, oldest first, and empties the queue.
func (s *ControlService) DrainCommands(userKey string) []model.Command {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.boxes[userKey]
	if !ok || len(b.commands) == 0 {
		return []model.Command{}
	}
	out := b.commands
	b.commands = nil
	return out
}

// Mailboxes returns the number of user keys with a mailbox.
func (s *ControlService) Mailboxes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.boxes)
}
