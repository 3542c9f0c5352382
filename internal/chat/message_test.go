package chat

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_Param(t *testing.T) {
	data, err := json.Marshal(UserText("hello").param())
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"user","content":"hello"}`, string(data))

	data, err = json.Marshal(AssistantText("a cat").param())
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"assistant","content":"a cat"}`, string(data))

	data, err = json.Marshal(UserImages("Compare these images.", "data:image/jpeg;base64,AAA", "data:image/jpeg;base64,BBB").param())
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"user","content":[
		{"type":"image_url","image_url":{"url":"data:image/jpeg;base64,AAA"}},
		{"type":"image_url","image_url":{"url":"data:image/jpeg;base64,BBB"}},
		{"type":"text","text":"Compare these images."}
	]}`, string(data))
}

func TestUserImages(t *testing.T) {
	msg := UserImages("what is this?", "data:x")
	assert.Equal(t, RoleUser, msg.Role)
	assert.Equal(t, []Part{ImagePart("data:x"), TextPart("what is this?")}, msg.Content.Parts)
	assert.Equal(t, "what is this?", msg.Content.Text())
	assert.Equal(t, 1, msg.Content.Images())

	assert.Equal(t, 0, UserText("hi").Content.Images())
}
