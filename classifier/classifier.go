// Package classifier decides whether a submitted photo satisfies a quest's
// objective.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/wfunc/gardien/gemini"
)

var (
	// ErrUnavailable means the classifier could not be reached or refused to
	// answer. The submission was not judged.
	ErrUnavailable = errors.New("classifier unavailable")
	// ErrMalformed means the classifier answered with something that is not a
	// verdict.
	ErrMalformed = errors.New("classifier response malformed")
)

type Verdict struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason"`
}

type Classifier interface {
	Classify(ctx context.Context, image []byte, mimeType, prompt string) (Verdict, error)
}

// Func adapts a plain function to Classifier.
type Func func(ctx context.Context, image []byte, mimeType, prompt string) (Verdict, error)

func (f Func) Classify(ctx context.Context, image []byte, mimeType, prompt string) (Verdict, error) {
	return f(ctx, image, mimeType, prompt)
}

var verdictSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"valid":  map[string]any{"type": "BOOLEAN"},
		"reason": map[string]any{"type": "STRING"},
	},
	"required": []string{"valid", "reason"},
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

func (g *Gemini) Classify(ctx context.Context, image []byte, mimeType, prompt string) (Verdict, error) {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	text, err := g.client.Generate(ctx, gemini.Request{
		Contents: []gemini.Content{{Parts: []gemini.Part{
			gemini.InlinePart(mimeType, image),
			gemini.TextPart(fmt.Sprintf("Analyse cette image pour l'objectif ARG: %s. Réponds JSON {valid: boolean, reason: string}.", prompt)),
		}}},
		Schema: verdictSchema,
	})
	if err != nil {
		if errors.Is(err, gemini.ErrNoContent) {
			return Verdict{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return Verdict{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return ParseVerdict(text)
}

// ParseVerdict reads a {valid, reason} object, tolerating a fenced code
// block around it.
func ParseVerdict(text string) (Verdict, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	if !gjson.Valid(text) {
		return Verdict{}, fmt.Errorf("%w: not json", ErrMalformed)
	}
	valid := gjson.Get(text, "valid")
	if valid.Type != gjson.True && valid.Type != gjson.False {
		return Verdict{}, fmt.Errorf("%w: missing boolean valid", ErrMalformed)
	}
	return Verdict{
		Valid:  valid.Bool(),
		Reason: strings.TrimSpace(gjson.Get(text, "reason").String()),
	}, nil
}
