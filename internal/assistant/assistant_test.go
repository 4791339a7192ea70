package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/inventariopro/inventariopro/internal/cache"
	"github.com/inventariopro/inventariopro/internal/config"
	"github.com/inventariopro/inventariopro/validation"
	"go.uber.org/zap/zaptest"
)

type fakeGenerator struct {
	reply   string
	err     error
	calls   int
	prompts []Prompt
}

func (f *fakeGenerator) Generate(_ context.Context, p Prompt) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, p)
	return f.reply, f.err
}

func TestAnswerFAQCachesByNormalizedQuestion(t *testing.T) {
	gen := &fakeGenerator{reply: "Acesse Estoque e clique em Transferir."}
	a := New(gen, cache.NewMemory(), time.Hour, zaptest.NewLogger(t))
	ctx := context.Background()

	first, err := a.AnswerFAQ(ctx, "Como transfiro estoque?", "")
	if err != nil {
		t.Fatalf("faq: %v", err)
	}
	second, err := a.AnswerFAQ(ctx, "  como   TRANSFIRO estoque? ", "")
	if err != nil {
		t.Fatalf("faq: %v", err)
	}
	if first != gen.reply || second != gen.reply {
		t.Fatalf("answers = %q / %q", first, second)
	}
	if gen.calls != 1 {
		t.Fatalf("generator calls = %d, want 1", gen.calls)
	}
	if p := gen.prompts[0]; p.Temperature != 0.2 || p.MaxTokens != 400 || !strings.Contains(p.User, "Como transfiro estoque?") {
		t.Fatalf("unexpected prompt: %+v", p)
	}

	// a different page context is a different question
	if _, err := a.AnswerFAQ(ctx, "Como transfiro estoque?", "salas"); err != nil {
		t.Fatalf("faq: %v", err)
	}
	if gen.calls != 2 || !strings.Contains(gen.prompts[1].User, "Contexto atual: salas") {
		t.Fatalf("context not forwarded: %+v", gen.prompts)
	}
}

func TestAnswerFAQFallback(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("upstream down")}
	mem := cache.NewMemory()
	a := New(gen, mem, time.Hour, zaptest.NewLogger(t))

	got, err := a.AnswerFAQ(context.Background(), "Como crio uma proposta?", "")
	if err != nil {
		t.Fatalf("faq: %v", err)
	}
	if got != Fallback {
		t.Fatalf("answer = %q, want fallback", got)
	}
	if _, ok, _ := mem.Get(context.Background(), faqKey("Como crio uma proposta?", "")); ok {
		t.Fatal("fallback must not be cached")
	}
}

func TestAnswerFAQValidation(t *testing.T) {
	a := New(&fakeGenerator{}, nil, 0, nil)
	_, err := a.AnswerFAQ(context.Background(), "   ", "")
	var verr *validation.Error
	if !errors.As(err, &verr) || verr.Violations["question"] != "required" {
		t.Fatalf("expected required violation, got %v", err)
	}
}

func TestPolishEventDescription(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
		want  EventDraft
	}{
		{
			name:  "json",
			reply: `{"titulo":"feira de artesanato","descricao":"Três dias de exposição.","local_sugerido":"Centro","instrucoes_acesso":"Entrada gratuita"}`,
			want:  EventDraft{Title: "Feira De Artesanato", Description: "Três dias de exposição.", SuggestedLocation: "Centro", AccessInstructions: "Entrada gratuita"},
		},
		{
			name:  "fenced json",
			reply: "```json\n{\"titulo\":\"Show\",\"descricao\":\"Música ao vivo.\"}\n```",
			want:  EventDraft{Title: "Show", Description: "Música ao vivo."},
		},
		{
			name:  "plain text",
			reply: "Um evento incrível no sábado.",
			want:  EventDraft{Title: "Evento", Description: "Um evento incrível no sábado."},
		},
		{
			name: "generator error",
			err:  errors.New("timeout"),
			want: EventDraft{Title: "Evento", Description: Fallback},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{reply: tt.reply, err: tt.err}
			a := New(gen, nil, 0, zaptest.NewLogger(t))
			got, err := a.PolishEventDescription(context.Background(), "feira artesanato sabado centro")
			if err != nil {
				t.Fatalf("polish: %v", err)
			}
			if *got != tt.want {
				t.Fatalf("got %+v, want %+v", *got, tt.want)
			}
			if gen.prompts[0].Temperature != 0.3 {
				t.Fatalf("temperature = %v", gen.prompts[0].Temperature)
			}
		})
	}
}

func TestFormatEventName(t *testing.T) {
	tests := map[string]string{
		"  reunião anual  ": "Reunião Anual",
		"FESTA JUNINA":      "Festa Junina",
		"":                  "",
	}
	for in, want := range tests {
		if got := FormatEventName(in); got != want {
			t.Errorf("FormatEventName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOpenAIGenerator(t *testing.T) {
	var got struct {
		Model       string  `json:"model"`
		Temperature float32 `json:"temperature"`
		MaxTokens   int     `json:"max_tokens"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":"  Olá!  "},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	gen := NewOpenAIGenerator(config.AIConfig{APIKey: "test-key", BaseURL: srv.URL + "/", Model: "gpt-4o-mini", MaxTokens: 512, Timeout: 5 * time.Second})
	out, err := gen.Generate(context.Background(), Prompt{System: "sys", User: "oi", Temperature: 0.2})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out != "Olá!" {
		t.Fatalf("out = %q", out)
	}
	if got.Model != "gpt-4o-mini" || got.MaxTokens != 512 || len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "oi" {
		t.Fatalf("unexpected request: %+v", got)
	}
}

func TestOpenAIGeneratorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer srv.Close()

	gen := NewOpenAIGenerator(config.AIConfig{APIKey: "k", BaseURL: srv.URL, Model: "m"})
	if _, err := gen.Generate(context.Background(), Prompt{User: "oi"}); err == nil {
		t.Fatal("expected error")
	}
}
