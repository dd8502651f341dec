package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseContentType(t *testing.T) {
	ct, err := ParseContentType(" Office ")
	require.NoError(t, err)
	assert.Equal(t, ContentTypeOffice, ct)
	assert.True(t, ct.Structured())
	assert.False(t, ContentTypeDocument.Structured())

	_, err = ParseContentType("hospital")
	assert.Error(t, err)
}

func TestUIComponentRuleMatches(t *testing.T) {
	r := UIComponentRule{Component: "map", TriggerPhrases: []string{"Wo ist", " "}, Enabled: true}
	assert.True(t, r.Matches("wo ist das Rathaus?"))
	assert.False(t, r.Matches("Öffnungszeiten"))

	r.Enabled = false
	assert.False(t, r.Matches("wo ist das Rathaus?"))
}

func TestTenantResolve(t *testing.T) {
	d := TenantDefaults{Language: "de", Tone: "freundlich", MaxAnswerTokens: 1024}

	cfg := (&Tenant{ID: "t1"}).Resolve(d)
	assert.Equal(t, "t1", cfg.Name)
	assert.Equal(t, "de", cfg.Language)
	assert.Equal(t, "freundlich", cfg.Tone)
	assert.Equal(t, 1024, cfg.MaxAnswerTokens)

	cfg = (&Tenant{ID: "t2", Name: "Stadt", Language: "en", Tone: "formal", MaxAnswerTokens: 300}).Resolve(d)
	assert.Equal(t, "Stadt", cfg.Name)
	assert.Equal(t, "en", cfg.Language)
	assert.Equal(t, "formal", cfg.Tone)
	assert.Equal(t, 300, cfg.MaxAnswerTokens)
}

func TestStreamEventTypeString(t *testing.T) {
	assert.Equal(t, "ui_component", EventComponent.String())
	assert.Equal(t, "done", Done().Type.String())
	assert.Equal(t, "hi", TextDelta("hi").Text)
}
