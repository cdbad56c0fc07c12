package summary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/consult-desk/internal/transcript"
)

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "fenced block inside prose",
			raw:  "Here is the summary you asked for:\n```json\n{\"id\":\"T1\",\"category\":\"요금\"}\n```\nLet me know if you need more.",
			want: `{"id":"T1","category":"요금"}`,
		},
		{
			name: "fence without language tag",
			raw:  "```\n{\"a\":1}\n```",
			want: `{"a":1}`,
		},
		{
			name: "bare object with prose around",
			raw:  "Sure! {\"a\":{\"b\":2}} hope this helps",
			want: `{"a":{"b":2}}`,
		},
		{
			name: "plain object",
			raw:  `  {"summary":"완료"}  `,
			want: `{"summary":"완료"}`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractJSON(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExtractJSON_NoObject(t *testing.T) {
	for _, raw := range []string{"", "I could not summarise this conversation.", "} backwards {", "```json\n```"} {
		_, err := ExtractJSON(raw)
		assert.ErrorIs(t, err, ErrNoJSONObject, "raw %q", raw)
	}
}

func TestParseObject(t *testing.T) {
	obj, payload, err := ParseObject("```json\n{ \"id\": \"T1\",\n \"category\": 3 }\n```")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"T1","category":3}`, payload)
	assert.Equal(t, "T1", stringField(obj, "id"))
	assert.Equal(t, "", stringField(obj, "category"), "wrong type defaults to empty")
	assert.Equal(t, "", stringField(obj, "summary"), "absent defaults to empty")

	_, _, err = ParseObject(`{"id": }`)
	assert.Error(t, err)
	_, _, err = ParseObject(`{"id": "x", "tags": [1, 2}`)
	assert.Error(t, err)
}

func TestRenderTranscript(t *testing.T) {
	got := RenderTranscript([]transcript.Message{
		{SenderRole: transcript.SenderUser, Content: "로밍 요금이 궁금해요"},
		{SenderRole: transcript.SenderConsultant, Content: "확인해 드릴게요"},
		{SenderRole: "SYSTEM", Content: "?"},
	})
	assert.Equal(t, "고객: 로밍 요금이 궁금해요\n상담사: 확인해 드릴게요\nunknown: ?", got)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", truncateRunes("abc", 5))
	assert.Equal(t, "요금", truncateRunes("요금제변경", 2))
}
