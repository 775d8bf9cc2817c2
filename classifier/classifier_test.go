package classifier

import (
	"context"
	"errors"
	"testing"

	"github.com/wfunc/gardien/gemini"
)

type fakeGenerator struct {
	text string
	err  error
	req  gemini.Request
}

func (f *fakeGenerator) Generate(_ context.Context, req gemini.Request) (string, error) {
	f.req = req
	return f.text, f.err
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		in      string
		want    Verdict
		wantErr bool
	}{
		{`{"valid":true,"reason":"Belle colonne."}`, Verdict{Valid: true, Reason: "Belle colonne."}, false},
		{"```json\n{\"valid\":false,\"reason\":\"flou\"}\n```", Verdict{Valid: false, Reason: "flou"}, false},
		{`{"reason":"no verdict"}`, Verdict{}, true},
		{`{"valid":"yes"}`, Verdict{}, true},
		{`not json`, Verdict{}, true},
	}
	for _, tt := range tests {
		got, err := ParseVerdict(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("ParseVerdict(%q): expected ErrMalformed, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseVerdict(%q) failed: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseVerdict(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestGemini_Classify(t *testing.T) {
	gen := &fakeGenerator{text: `{"valid":true,"reason":"ok"}`}
	c := &Gemini{client: gen}

	v, err := c.Classify(context.Background(), []byte{1, 2, 3}, "", "Un cadenas")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if !v.Valid || v.Reason != "ok" {
		t.Errorf("Unexpected verdict %+v", v)
	}
	parts := gen.req.Contents[0].Parts
	if parts[0].MimeType != "image/jpeg" {
		t.Errorf("Expected jpeg default, got %q", parts[0].MimeType)
	}
	if gen.req.Schema == nil {
		t.Error("Expected a response schema")
	}
}

func TestGemini_ClassifyErrorKinds(t *testing.T) {
	tests := []struct {
		err  error
		want error
	}{
		{gemini.ErrTransport, ErrUnavailable},
		{gemini.ErrNoAPIKey, ErrUnavailable},
		{gemini.ErrNoContent, ErrMalformed},
	}
	for _, tt := range tests {
		c := &Gemini{client: &fakeGenerator{err: tt.err}}
		_, err := c.Classify(context.Background(), nil, "image/png", "x")
		if !errors.Is(err, tt.want) {
			t.Errorf("generator error %v: expected %v, got %v", tt.err, tt.want, err)
		}
	}
}
