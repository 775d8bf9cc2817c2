// Package oracle produces indirect hints for the quest a player is looking at.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/wfunc/gardien/gemini"
	"github.com/wfunc/gardien/models"
)

// Fallback is shown when the oracle has nothing to say.
const Fallback = "..."

var (
	ErrEmptyMessage = errors.New("oracle: empty message")
	// ErrStale means the transcript was cleared while the hint was being
	// written, so the reply belongs to a conversation that no longer exists.
	ErrStale = errors.New("oracle: quest changed before the reply")
)

type HintRequest struct {
	QuestTitle string
	History    []models.ChatMessage
	Message    string
}

type Assistant interface {
	Hint(ctx context.Context, req HintRequest) (string, error)
}

// Framing is the system instruction sent with every hint request.
func Framing(questTitle string) string {
	return fmt.Sprintf("Tu es l'Oracle mystique de Paris. Aide discrètement le Gardien sur: %s. Pas de réponse directe.", questTitle)
}

type generator interface {
	Generate(ctx context.Context, req gemini.Request) (string, error)
}

type Gemini struct {
	client generator
}

func NewGemini(client *gemini.Client) *Gemini {
	return &Gemini{client: client}
}

func (g *Gemini) Hint(ctx context.Context, req HintRequest) (string, error) {
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return "", ErrEmptyMessage
	}

	contents := make([]gemini.Content, 0, len(req.History)+1)
	for _, m := range req.History {
		role := "user"
		if m.Sender == models.SenderOracle {
			role = "model"
		}
		contents = append(contents, gemini.Content{Role: role, Parts: []gemini.Part{gemini.TextPart(m.Text)}})
	}
	contents = append(contents, gemini.Content{Role: "user", Parts: []gemini.Part{gemini.TextPart(msg)}})

	text, err := g.client.Generate(ctx, gemini.Request{
		System:   Framing(req.QuestTitle),
		Contents: contents,
	})
	if errors.Is(err, gemini.ErrNoContent) {
		return Fallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("oracle hint: %w", err)
	}
	return text, nil
}

// Transcript is the chat history of one connection. It is cleared whenever
// the active quest changes.
type Transcript struct {
	mu       sync.Mutex
	questID  int
	hasQuest bool
	epoch    uint64 // bumped whenever messages are dropped
	messages []models.ChatMessage
}

func NewTranscript() *Transcript {
	return &Transcript{}
}

// Focus sets the active quest, dropping the history if it differs from the
// previous one.
func (t *Transcript) Focus(questID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.hasQuest && t.questID == questID {
		return
	}
	t.questID = questID
	t.hasQuest = true
	t.epoch++
	t.messages = nil
}

func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hasQuest = false
	t.epoch++
	t.messages = nil
}

func (t *Transcript) Append(sender, text string) models.ChatMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	m := models.ChatMessage{ID: uuid.NewString(), Sender: sender, Text: text}
	t.messages = append(t.messages, m)
	return m
}

// Messages returns a copy of the history.
func (t *Transcript) Messages() []models.ChatMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.ChatMessage, len(t.messages))
	copy(out, t.messages)
	return out
}

// appendIn adds a line only if the transcript has not been cleared since
// epoch was read.
func (t *Transcript) appendIn(epoch uint64, sender, text string) (models.ChatMessage, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.epoch != epoch {
		return models.ChatMessage{}, false
	}
	m := models.ChatMessage{ID: uuid.NewString(), Sender: sender, Text: text}
	t.messages = append(t.messages, m)
	return m, true
}

// Ask records msg, requests a hint and records the reply. On error the
// user's line stays in the history and no oracle line is added. If the
// quest changes while the hint is pending the reply is dropped with
// ErrStale.
func (t *Transcript) Ask(ctx context.Context, a Assistant, questTitle, msg string) (models.ChatMessage, error) {
	t.mu.Lock()
	epoch := t.epoch
	history := make([]models.ChatMessage, len(t.messages))
	copy(history, t.messages)
	t.mu.Unlock()
	t.appendIn(epoch, models.SenderUser, msg)

	text, err := a.Hint(ctx, HintRequest{QuestTitle: questTitle, History: history, Message: msg})
	if err != nil {
		return models.ChatMessage{}, err
	}
	if strings.TrimSpace(text) == "" {
		text = Fallback
	}
	reply, ok := t.appendIn(epoch, models.SenderOracle, text)
	if !ok {
		return models.ChatMessage{}, ErrStale
	}
	return reply, nil
}
