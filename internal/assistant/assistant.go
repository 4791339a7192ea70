package assistant

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/inventariopro/inventariopro/internal/cache"
	"github.com/inventariopro/inventariopro/validation"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Fallback is returned to the user whenever the generator fails.
const Fallback = "Desculpe, não consegui processar sua requisição agora. Tente mais tarde."

const faqSystem = `Você é um assistente especializado no sistema InventarioPro, um sistema de gestão de inventário para eventos.

O sistema possui:
- Gestão de Eventos (criação, edição, datas, locais) com salas associadas
- Gestão de Produtos (cadastro, preços em BRL, categorias)
- Controle de Estoque (geral e por sala)
- Replicação de salas entre eventos
- Sistema de Propostas (orçamentos para eventos)

Responda de forma clara e prática, focando em como usar o sistema.`

const draftSystem = `Você é um assistente especializado em eventos e inventário.
Sua tarefa é transformar rascunhos de eventos em descrições profissionais e organizadas.
Retorne sempre um JSON com as chaves: titulo, descricao, local_sugerido, instrucoes_acesso.
Seja conciso mas informativo.`

// EventDraft is a polished event description.
type EventDraft struct {
	Title              string `json:"titulo"`
	Description        string `json:"descricao"`
	SuggestedLocation  string `json:"local_sugerido"`
	AccessInstructions string `json:"instrucoes_acesso"`
}

// Assistant answers help questions and polishes event drafts.
type Assistant struct {
	Gen      Generator
	Cache    cache.Cache
	CacheTTL time.Duration
	Log      *zap.Logger
}

func New(gen Generator, c cache.Cache, ttl time.Duration, log *zap.Logger) *Assistant {
	if log == nil {
		log = zap.NewNop()
	}
	if c == nil {
		c = cache.NewMemory()
	}
	return &Assistant{Gen: gen, Cache: c, CacheTTL: ttl, Log: log}
}

func normalizeQuestion(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}

// faqKey identifies a question within a page context.
func faqKey(question, pageContext string) string {
	sum := md5.Sum([]byte(normalizeQuestion(question) + "\x00" + strings.TrimSpace(pageContext)))
	return "assistant:faq:" + hex.EncodeToString(sum[:])
}

// AnswerFAQ answers a question about the system. Generator failures yield
// Fallback and are not cached.
func (a *Assistant) AnswerFAQ(ctx context.Context, question, pageContext string) (string, error) {
	question = strings.TrimSpace(question)
	v := validation.Violations{}
	validation.Required("question", question, v)
	validation.MaxLen("question", question, 1000, v)
	if err := v.Err(); err != nil {
		return "", err
	}

	key := faqKey(question, pageContext)
	if cached, ok, err := a.Cache.Get(ctx, key); err != nil {
		a.Log.Warn("faq cache get failed", zap.Error(err))
	} else if ok {
		return cached, nil
	}

	user := "Pergunta: " + question
	if pageContext = strings.TrimSpace(pageContext); pageContext != "" {
		user += "\nContexto atual: " + pageContext
	}
	answer, err := a.Gen.Generate(ctx, Prompt{System: faqSystem, User: user, Temperature: 0.2, MaxTokens: 400})
	if err != nil {
		a.Log.Error("faq generation failed", zap.Error(err))
		return Fallback, nil
	}
	if err := a.Cache.Set(ctx, key, answer, a.CacheTTL); err != nil {
		a.Log.Warn("faq cache set failed", zap.Error(err))
	}
	return answer, nil
}

// PolishEventDescription turns a rough draft into an EventDraft. When the
// completion is not valid JSON the raw text becomes the description.
func (a *Assistant) PolishEventDescription(ctx context.Context, draft string) (*EventDraft, error) {
	draft = strings.TrimSpace(draft)
	v := validation.Violations{}
	validation.Required("draft", draft, v)
	validation.MaxLen("draft", draft, 4000, v)
	if err := v.Err(); err != nil {
		return nil, err
	}

	user := "Transforme este rascunho em uma descrição profissional de evento:\n\n\"" + draft + "\"\n\n" +
		"Gere um JSON com:\n" +
		"- titulo: Título atrativo e profissional\n" +
		"- descricao: Descrição detalhada e bem estruturada\n" +
		"- local_sugerido: Sugestão de local se não especificado\n" +
		"- instrucoes_acesso: Instruções básicas de acesso/participação"
	raw, err := a.Gen.Generate(ctx, Prompt{System: draftSystem, User: user, Temperature: 0.3})
	if err != nil {
		a.Log.Error("event description generation failed", zap.Error(err))
		raw = Fallback
	}

	var out EventDraft
	if err := json.Unmarshal([]byte(stripFences(raw)), &out); err != nil || out.Description == "" {
		return &EventDraft{Title: "Evento", Description: raw}, nil
	}
	out.Title = FormatEventName(out.Title)
	if out.Title == "" {
		out.Title = "Evento"
	}
	return &out, nil
}

// stripFences removes a surrounding ```json ... ``` block.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

// FormatEventName trims name and title-cases each word ("  reunião anual " -> "Reunião Anual").
func FormatEventName(name string) string {
	return cases.Title(language.BrazilianPortuguese).String(strings.TrimSpace(name))
}
