package ai

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/med-assist/backend/internal/analysis/severity"
	"github.com/zhouzirui/med-assist/backend/internal/config"
	"github.com/zhouzirui/med-assist/backend/internal/model/chat"
	"github.com/zhouzirui/med-assist/backend/internal/model/jurisdiction"
)

func testBuilder() *PromptBuilder {
	return NewPromptBuilder(config.AIConfig{
		ContextTurns:       3,
		MaxTokens:          500,
		EmergencyMaxTokens: 250,
		Temperature:        0.7,
	})
}

func india(t *testing.T) jurisdiction.Jurisdiction {
	t.Helper()
	j, ok := jurisdiction.NewMemoryStore(jurisdiction.Seed(), "IN").FindByCode("IN")
	require.True(t, ok)
	return j
}

func TestBuildKeepsLastThreeTurns(t *testing.T) {
	history := make([]chat.Turn, 0, 10)
	for i := 0; i < 10; i++ {
		role := chat.RoleUser
		if i%2 == 1 {
			role = chat.RoleAssistant
		}
		history = append(history, chat.Turn{Role: role, Content: fmt.Sprintf("turn %d", i)})
	}

	p := testBuilder().Build("what now?", history, severity.Assess("what now?", false), india(t))

	require.Len(t, p.Messages, 4)
	assert.Equal(t, "turn 7", p.Messages[0].Content)
	assert.Equal(t, chat.RoleAssistant, p.Messages[0].Role)
	assert.Equal(t, "turn 9", p.Messages[2].Content)
	assert.Equal(t, chat.Turn{Role: chat.RoleUser, Content: "what now?"}, p.Messages[3])
	assert.Equal(t, 500, p.MaxTokens)
	assert.InDelta(t, 0.7, p.Temperature, 1e-6)
}

func TestBuildDropsEmptyTurns(t *testing.T) {
	history := []chat.Turn{
		{Role: chat.RoleUser, Content: "first"},
		{Role: chat.RoleAssistant, Content: "  "},
		{Role: chat.RoleUser, Content: ""},
	}

	p := testBuilder().Build("next", history, severity.Assess("next", false), india(t))

	require.Len(t, p.Messages, 2)
	assert.Equal(t, "first", p.Messages[0].Content)
}

func TestBuildIsDeterministic(t *testing.T) {
	history := []chat.Turn{{Role: chat.RoleUser, Content: "I have a cough"}}
	a := severity.Assess("and now a fever", false)

	b := testBuilder()
	first := b.Build("and now a fever", history, a, india(t))
	second := b.Build("and now a fever", history, a, india(t))

	assert.Equal(t, first, second)
}

func TestBuildSystemPromptContent(t *testing.T) {
	j := india(t)
	p := testBuilder().Build("I have a headache", nil, severity.Assess("I have a headache", false), j)

	assert.Contains(t, p.System, "Severity level: MEDIUM")
	assert.Contains(t, p.System, "NEVER provide specific medical diagnoses")
	assert.Contains(t, p.System, "112 (National Emergency Number) or 108 (Medical Emergency)")
	assert.Contains(t, p.System, Disclaimer(j))
	assert.NotContains(t, p.System, "EMERGENCY:")
}

func TestBuildEmergencyUsesShorterBudget(t *testing.T) {
	j := india(t)
	a := severity.Assess("crushing chest pain", false)
	require.True(t, a.IsEmergency())

	p := testBuilder().Build("crushing chest pain", nil, a, j)

	assert.Equal(t, 250, p.MaxTokens)
	assert.Contains(t, p.System, "Severity level: EMERGENCY")
	assert.Contains(t, p.System, "EMERGENCY:")
	assert.Contains(t, p.System, "112 or 108")
}

func TestEnsureDisclaimer(t *testing.T) {
	j := india(t)

	withDisclaimer := "Rest and hydrate.\n\n" + Disclaimer(j)
	assert.Equal(t, withDisclaimer, EnsureDisclaimer(withDisclaimer, j))

	got := EnsureDisclaimer("Rest and hydrate.  \n", j)
	assert.True(t, strings.HasPrefix(got, "Rest and hydrate.\n\n"))
	assert.True(t, strings.HasSuffix(got, Disclaimer(j)))
}
