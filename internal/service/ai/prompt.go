package ai

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/zhouzirui/med-assist/backend/internal/analysis/severity"
	"github.com/zhouzirui/med-assist/backend/internal/config"
	"github.com/zhouzirui/med-assist/backend/internal/model/chat"
	"github.com/zhouzirui/med-assist/backend/internal/model/jurisdiction"
)

// disclaimerMarker identifies an answer that already carries the disclaimer.
const disclaimerMarker = "not a substitute for professional medical advice"

// Prompt is everything a Completer needs for one generation.
type Prompt struct {
	System      string
	Messages    []chat.Turn
	MaxTokens   int
	Temperature float32
}

// PromptBuilder turns a classified question into a safety oriented prompt.
type PromptBuilder struct {
	contextTurns       int
	maxTokens          int
	emergencyMaxTokens int
	temperature        float32
}

// NewPromptBuilder creates a PromptBuilder from the AI configuration.
func NewPromptBuilder(cfg config.AIConfig) *PromptBuilder {
	return &PromptBuilder{
		contextTurns:       cfg.ContextTurns,
		maxTokens:          cfg.MaxTokens,
		emergencyMaxTokens: cfg.EmergencyMaxTokens,
		temperature:        cfg.Temperature,
	}
}

// Build assembles the prompt. The output depends only on its inputs.
func (b *PromptBuilder) Build(question string, history []chat.Turn, a severity.Assessment, j jurisdiction.Jurisdiction) Prompt {
	messages := b.window(history)
	messages = append(messages, chat.Turn{Role: chat.RoleUser, Content: question})

	maxTokens := b.maxTokens
	if a.IsEmergency() && b.emergencyMaxTokens > 0 {
		maxTokens = b.emergencyMaxTokens
	}

	return Prompt{
		System:      systemPrompt(a, j),
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: b.temperature,
	}
}

// window keeps the most recent non-empty turns.
func (b *PromptBuilder) window(history []chat.Turn) []chat.Turn {
	turns := lo.Filter(history, func(t chat.Turn, _ int) bool {
		return !t.Empty()
	})
	if len(turns) > b.contextTurns {
		turns = turns[len(turns)-b.contextTurns:]
	}
	return lo.Map(turns, func(t chat.Turn, _ int) chat.Turn {
		return chat.Turn{Role: chat.ParseRole(string(t.Role)), Content: t.Content}
	})
}

// Disclaimer is the sentence every answer must end with.
func Disclaimer(j jurisdiction.Jurisdiction) string {
	return fmt.Sprintf("⚠️ This information is for educational purposes only and is %s. "+
		"Please consult a qualified healthcare provider for proper diagnosis and treatment. "+
		"For medical emergencies, call %s.", disclaimerMarker, j.NumbersText())
}

// EnsureDisclaimer appends the disclaimer when the model left it out.
func EnsureDisclaimer(answer string, j jurisdiction.Jurisdiction) string {
	if strings.Contains(strings.ToLower(answer), disclaimerMarker) {
		return answer
	}
	return strings.TrimRight(answer, " \t\r\n") + "\n\n" + Disclaimer(j)
}

func systemPrompt(a severity.Assessment, j jurisdiction.Jurisdiction) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, `You are a helpful medical assistant for users in %s. Your role is to provide general health information and guidance, but you must:

1. NEVER provide specific medical diagnoses
2. ALWAYS recommend consulting with healthcare professionals for serious concerns
3. Provide helpful, evidence-based general health information
4. Be empathetic and supportive
5. Include appropriate disclaimers about not replacing professional medical advice
6. If symptoms seem serious, encourage consulting with a healthcare provider
7. For emergencies, mention calling %s

You are continuing a conversation with this user. Use the previous messages for context but focus on the current question.

Severity level: %s`, j.Name, j.NumbersDetail(), strings.ToUpper(string(a.Level)))

	if a.IsEmergency() {
		fmt.Fprintf(&sb, `

EMERGENCY: the user may be describing a medical emergency. Begin your answer by telling them to call %s or go to the nearest emergency department immediately. Keep the rest of the answer short and limited to safe first steps while help is on the way.`, j.NumbersText())
	}

	sb.WriteString("\n\nAlways end your response with: \"" + Disclaimer(j) + "\"")
	return sb.String()
}
