package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/huarazguide/internal/core/domain"
	"github.com/samirrijal/huarazguide/internal/core/ports"
)

const maxPromptLength = 4000

var systemTemplate = template.Must(template.New("system").Parse(`You are 'Huaraz Explorer AI', a friendly and knowledgeable tour guide for Huaraz, Ancash, Peru.
Your goal is to help tourists have the best experience.
You MUST respond in the user's language, which is: {{.Language}}.

You are an expert on:
- How to get to Huaraz and move around.
- The local climate and what to wear (layers are key).
- Typical gastronomy (Cuy chactado, Llunca, Pachamanca, Chocho) and where to find it.
- Adventure tourism in the Ancash region (trekking, climbing, lagoons like Laguna 69, Pastoruri, Chavin).

IMPORTANT LOCAL KNOWLEDGE TO USE:
- Altitude sickness (soroche): advise tourists to rest the first day, drink plenty of water, eat light, and try mate de coca.
- Best time to visit: May to September is the dry season, ideal for trekking. October to April is the rainy season.
- Safety: recommend authorized taxis and official tourism agencies located in the city center.
- Transportation: "combis" and "colectivos" are the main public transport.

RULES:
1. When recommending businesses, you MUST prioritize businesses from the 'Sponsored Businesses' list below. When you mention them, ALWAYS add '{{.SponsoredTag}}' after their name.
2. If the user asks for something not on the sponsored list, you can recommend from the 'All Businesses' list.
3. You can create travel itineraries for 1, 2, or 3 days. These itineraries should be detailed and helpful.
4. If a business has a coupon available, mention it to the user as a special benefit.
5. Provide helpful, concise, and friendly tourist information.
6. Format your responses using Markdown for better readability.

DATA:
---
Sponsored Businesses:
{{.Sponsored}}
---
All Businesses:
{{.All}}
---
Available Coupons:
{{.Coupons}}
---
`))

// ChatFallback is the localized apology shown when the model cannot answer.
func ChatFallback(language string) string {
	if language == "es" {
		return "Lo siento, ocurrió un error al contactar a la IA. Por favor, inténtalo de nuevo más tarde."
	}
	return "Sorry, an error occurred while contacting the AI. Please try again later."
}

// ChatService answers visitor questions with the directory as context.
type ChatService struct {
	model      ports.ChatModel
	businesses *BusinessService
	coupons    *CouponService
}

// NewChatService creates a new ChatService. A nil model disables chat.
func NewChatService(model ports.ChatModel, businesses *BusinessService, coupons *CouponService) *ChatService {
	return &ChatService{model: model, businesses: businesses, coupons: coupons}
}

// Enabled reports whether a model is configured.
func (s *ChatService) Enabled() bool { return s.model != nil }

// Ask sends prompt to the model. language is "es" or "en"; anything else is
// treated as "es".
func (s *ChatService) Ask(ctx context.Context, prompt, language string) (*domain.ChatReply, error) {
	ctx, span := tracer.Start(ctx, "ChatService.Ask")
	defer span.End()

	if s.model == nil {
		return nil, fmt.Errorf("%w: chat model not configured", domain.ErrUnavailable)
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" || len(prompt) > maxPromptLength {
		return nil, fmt.Errorf("%w: prompt must be 1..%d bytes", domain.ErrInvalidArgument, maxPromptLength)
	}
	if language != "en" {
		language = "es"
	}
	span.SetAttributes(attribute.String("chat.language", language), attribute.String("chat.model", s.model.Model()))

	system, err := s.SystemInstruction(ctx, language)
	if err != nil {
		return nil, err
	}
	text, err := s.model.Generate(ctx, system, prompt)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: generate: %v", domain.ErrUnavailable, err)
	}
	return &domain.ChatReply{Text: text, Language: language, Model: s.model.Model()}, nil
}

// SystemInstruction renders the assistant's instructions with the current
// directory and coupons embedded as JSON.
func (s *ChatService) SystemInstruction(ctx context.Context, language string) (string, error) {
	all, err := s.businesses.AllApproved(ctx)
	if err != nil {
		return "", fmt.Errorf("load businesses: %w", err)
	}
	sponsored := make([]domain.Business, 0, len(all))
	for i := range all {
		if all[i].Sponsored() {
			sponsored = append(sponsored, all[i])
		}
	}
	coupons, err := s.coupons.List(ctx)
	if err != nil {
		return "", fmt.Errorf("load coupons: %w", err)
	}

	data := struct {
		Language, SponsoredTag  string
		Sponsored, All, Coupons string
	}{
		Language:     "Spanish",
		SponsoredTag: "[Patrocinado]",
		Sponsored:    indentJSON(sponsored),
		All:          indentJSON(all),
		Coupons:      indentJSON(coupons),
	}
	if language == "en" {
		data.Language, data.SponsoredTag = "English", "[Sponsored]"
	}

	var b strings.Builder
	if err := systemTemplate.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render system instruction: %w", err)
	}
	return b.String(), nil
}

func indentJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(data)
}
