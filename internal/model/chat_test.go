package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChatMessageUnmarshalStringContent(t *testing.T) {
	var m ChatMessage
	err := json.Unmarshal([]byte(`{"role":"user","content":"hello"}`), &m)
	require.NoError(t, err)
	require.Equal(t, RoleUser, m.Role)

	s, ok := m.TextContent()
	require.True(t, ok)
	require.Equal(t, "hello", s)
	require.False(t, m.HasImage())
	require.Equal(t, "hello", m.PlainText())
}

func TestChatMessageUnmarshalPartsContent(t *testing.T) {
	raw := `{
		"role": "user",
		"content": [
			{"type": "text", "text": "look at this"},
			{"type": "image_url", "image_url": {"url": "data:image/png;base64,AAAA"}}
		]
	}`
	var m ChatMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &m))

	parts, ok := m.ContentParts()
	require.True(t, ok)
	require.Len(t, parts, 2)
	require.Equal(t, PartTypeText, parts[0].Type)
	require.Equal(t, PartTypeImage, parts[1].Type)
	require.True(t, m.HasImage())
	require.Equal(t, 1, m.ImageCount())
	require.Equal(t, "look at this", m.PlainText())
	require.Equal(t, []string{"data:image/png;base64,AAAA"}, m.ImageURIs())
}

func TestChatMessageMarshalRoundTrip(t *testing.T) {
	original := ChatMessage{
		Role: RoleUser,
		Content: []ContentPart{
			{Type: PartTypeText, Text: "hi"},
			{Type: PartTypeImage, ImageURL: &ImageRef{URL: "https://example.com/a.png"}},
		},
	}
	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded ChatMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	parts, ok := decoded.ContentParts()
	require.True(t, ok)
	require.Len(t, parts, 2)
	require.Equal(t, "https://example.com/a.png", parts[1].ImageURL.URL)
}

func TestValidImageRef(t *testing.T) {
	require.True(t, ValidImageRef("data:image/png;base64,AAAA"))
	require.True(t, ValidImageRef("https://example.com/a.png"))
	require.True(t, ValidImageRef("http://example.com/a.png"))
	require.False(t, ValidImageRef("ftp://example.com/a.png"))
	require.False(t, ValidImageRef("data:text/plain;base64,AAAA"))
	require.False(t, ValidImageRef("/relative/path.png"))
	require.False(t, ValidImageRef(""))
}

func TestAnyImageAndCollectImageURIs(t *testing.T) {
	messages := []ChatMessage{
		TextMessage(RoleAssistant, "hi"),
		{Role: RoleUser, Content: []ContentPart{
			{Type: PartTypeText, Text: "first"},
			{Type: PartTypeImage, ImageURL: &ImageRef{URL: "https://example.com/1.png"}},
		}},
		{Role: RoleUser, Content: []ContentPart{
			{Type: PartTypeImage, ImageURL: &ImageRef{URL: "https://example.com/2.png"}},
		}},
	}
	require.True(t, AnyImage(messages))
	require.Equal(t, []string{"https://example.com/1.png", "https://example.com/2.png"}, CollectImageURIs(messages))

	require.False(t, AnyImage([]ChatMessage{TextMessage(RoleUser, "no image")}))
}

func TestEstimateComplete(t *testing.T) {
	var nilEstimate *Estimate
	require.False(t, nilEstimate.Complete())
	require.False(t, (&Estimate{BudgetRange: "$1k-$2k"}).Complete())
	require.False(t, (&Estimate{RecommendedPackage: "Landing Page"}).Complete())
	require.True(t, (&Estimate{BudgetRange: "$1k-$2k", RecommendedPackage: "Landing Page"}).Complete())
}
