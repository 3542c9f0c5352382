package chat

import (
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/samber/lo"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	partText  = "text"
	partImage = "image_url"
)

// Part is one element of a multimodal message: either text or an image URL.
type Part struct {
	Type     string
	Text     string
	ImageURL string
}

func TextPart(text string) Part {
	return Part{Type: partText, Text: text}
}

func ImagePart(url string) Part {
	return Part{Type: partImage, ImageURL: url}
}

// Content is an ordered list of parts.
type Content struct {
	Parts []Part
}

// Text joins the text parts, ignoring images.
func (c Content) Text() string {
	texts := lo.FilterMap(c.Parts, func(p Part, _ int) (string, bool) {
		return p.Text, p.Type == partText
	})
	return strings.Join(texts, "\n")
}

func (c Content) Images() int {
	return lo.CountBy(c.Parts, func(p Part) bool {
		return p.Type == partImage
	})
}

type Message struct {
	Role    string
	Content Content
}

func UserText(text string) Message {
	return Message{Role: RoleUser, Content: Content{Parts: []Part{TextPart(text)}}}
}

func AssistantText(text string) Message {
	return Message{Role: RoleAssistant, Content: Content{Parts: []Part{TextPart(text)}}}
}

// UserImages builds one user message asking question about every image, the
// images first and the question last.
func UserImages(question string, imageURLs ...string) Message {
	parts := lo.Map(imageURLs, func(url string, _ int) Part {
		return ImagePart(url)
	})
	parts = append(parts, TextPart(question))
	return Message{Role: RoleUser, Content: Content{Parts: parts}}
}

// param converts m to its wire form. Text-only content goes out as a plain
// string, anything with an image as a list of content parts.
func (m Message) param() openai.ChatCompletionMessageParamUnion {
	switch m.Role {
	case RoleSystem:
		return openai.SystemMessage(m.Content.Text())
	case RoleAssistant:
		return openai.AssistantMessage(m.Content.Text())
	}
	if m.Content.Images() == 0 {
		return openai.UserMessage(m.Content.Text())
	}
	return openai.UserMessage(lo.Map(m.Content.Parts, func(p Part, _ int) openai.ChatCompletionContentPartUnionParam {
		if p.Type == partImage {
			return openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: p.ImageURL})
		}
		return openai.TextContentPart(p.Text)
	}))
}
