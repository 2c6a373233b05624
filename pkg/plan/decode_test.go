package plan

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_CreateTasks(t *testing.T) {
	action, err := Decode(`{"tool":"create_tasks","args":{"tasks":["read docs","write code"]},"done":false,"message":"starting"}`)
	require.NoError(t, err)

	assert.Equal(t, ToolCreateTasks, action.Tool)
	require.NotNil(t, action.Args)
	assert.Equal(t, []string{"read docs", "write code"}, action.Args.Tasks)
	assert.False(t, action.Done)
	assert.Equal(t, "starting", action.Message)
}

func TestDecode_AddResources(t *testing.T) {
	action, err := Decode(`{"tool":"add_resources","args":{"resources":[{"title":"Tour","url":"https://go.dev/tour"}]},"done":false}`)
	require.NoError(t, err)

	assert.Equal(t, ToolAddResources, action.Tool)
	require.Len(t, action.Args.Resources, 1)
	assert.Equal(t, "https://go.dev/tour", action.Args.Resources[0].URL)
}

func TestDecode_ScheduleReminder(t *testing.T) {
	action, err := Decode(`{"tool":"schedule_reminder","args":{"minutes":1440},"done":false}`)
	require.NoError(t, err)

	assert.Equal(t, ToolScheduleReminder, action.Tool)
	assert.Equal(t, 1440, action.Args.Minutes)
}

func TestDecode_Finish(t *testing.T) {
	action, err := Decode(`{"tool":"finish","done":true,"message":"all set"}`)
	require.NoError(t, err)

	assert.Equal(t, ToolFinish, action.Tool)
	assert.True(t, action.Done)
	assert.Nil(t, action.Args)
}

func TestDecode_StripsMarkdownFences(t *testing.T) {
	raw := "```json\n{\"tool\":\"finish\",\"done\":true}\n```"
	action, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, ToolFinish, action.Tool)
}

func TestDecode_Rejections(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty response", ""},
		{"not json", "I think you should create tasks first."},
		{"unknown tool", `{"tool":"delete_everything","done":false}`},
		{"create_tasks without args", `{"tool":"create_tasks","done":false}`},
		{"create_tasks empty list", `{"tool":"create_tasks","args":{"tasks":[]},"done":false}`},
		{"create_tasks too many", `{"tool":"create_tasks","args":{"tasks":["1","2","3","4","5","6","7","8"]},"done":false}`},
		{"create_tasks empty title", `{"tool":"create_tasks","args":{"tasks":[""]},"done":false}`},
		{"add_resources empty list", `{"tool":"add_resources","args":{"resources":[]},"done":false}`},
		{"add_resources missing url", `{"tool":"add_resources","args":{"resources":[{"title":"x"}]},"done":false}`},
		{"reminder zero minutes", `{"tool":"schedule_reminder","args":{"minutes":0},"done":false}`},
		{"reminder negative minutes", `{"tool":"schedule_reminder","args":{"minutes":-5},"done":false}`},
		{"reminder missing minutes", `{"tool":"schedule_reminder","args":{},"done":false}`},
		{"done on non-finish tool", `{"tool":"schedule_reminder","args":{"minutes":10},"done":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.raw)
			require.Error(t, err)

			var decodeErr *DecodeError
			assert.ErrorAs(t, err, &decodeErr)
		})
	}
}

func TestDecode_InsecureURLPassesShapeCheck(t *testing.T) {
	// URL scheme filtering belongs to the executor, not the decode boundary.
	action, err := Decode(`{"tool":"add_resources","args":{"resources":[{"title":"x","url":"http://insecure.example"}]},"done":false}`)
	require.NoError(t, err)
	assert.Len(t, action.Args.Resources, 1)
}

func TestRoundTrip(t *testing.T) {
	actions := []*Action{
		{Tool: ToolCreateTasks, Args: &Args{Tasks: []string{"a", "b", "c"}}, Message: "tasks"},
		{Tool: ToolAddResources, Args: &Args{Resources: []ResourceRef{{Title: "Tour", URL: "https://go.dev/tour"}}}},
		{Tool: ToolScheduleReminder, Args: &Args{Minutes: 60}},
		{Tool: ToolFinish, Done: true, Message: "done"},
	}

	for _, original := range actions {
		t.Run(string(original.Tool), func(t *testing.T) {
			data, err := json.Marshal(original)
			require.NoError(t, err)

			decoded, err := Decode(string(data))
			require.NoError(t, err)
			assert.Equal(t, original, decoded)
		})
	}
}
