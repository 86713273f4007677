package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventSettingsUnmarshalKeepsDefaults(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want EventSettings
	}{
		{"empty object", `{}`, DefaultEventSettings()},
		{"one field set", `{"show_leaderboard":true}`, EventSettings{AllowAnonymousQuestions: true, ShowLeaderboard: true}},
		{"default switched off", `{"allow_anonymous_questions":false}`, EventSettings{ShowLeaderboard: true}},
		{"opt-in field", `{"require_preparation":true}`, EventSettings{AllowAnonymousQuestions: true, ShowLeaderboard: true, RequirePreparation: true}},
		{"all fields", `{"allow_anonymous_questions":false,"show_leaderboard":false,"require_preparation":true,"enable_ai_questions":true}`,
			EventSettings{RequirePreparation: true, EnableAIQuestions: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got EventSettings
			require.NoError(t, json.Unmarshal([]byte(tt.in), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEventSettingsUnmarshalPointer(t *testing.T) {
	var req struct {
		Settings *EventSettings `json:"settings"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"settings":{"enable_ai_questions":true}}`), &req))
	require.NotNil(t, req.Settings)
	assert.True(t, req.Settings.AllowAnonymousQuestions)
	assert.True(t, req.Settings.EnableAIQuestions)

	require.Error(t, json.Unmarshal([]byte(`{"settings":{"show_leaderboard":"yes"}}`), &req))
}
