package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const chapterYAML = `
title: 序章
events:
  - type: narration
    text: 夜色渐深
  - type: background
    imagePath: bg/street.png
    transition: fade
  - type: modify_character
    action: show_character
    character: alice
  - type: end
    next: chapter2.yaml
`

func TestChapterDecodeKeepsOrderAndExtras(t *testing.T) {
	var ch Chapter
	require.NoError(t, yaml.Unmarshal([]byte(chapterYAML), &ch))

	require.Len(t, ch.Events, 4)
	assert.Equal(t, EventNarration, ch.Events[0].Type)
	assert.Equal(t, "夜色渐深", ch.Events[0].Text)
	assert.Equal(t, "bg/street.png", ch.Events[1].ImagePath)
	assert.Equal(t, "fade", ch.Events[1].Extra["transition"])
	assert.Equal(t, ActionShowCharacter, ch.Events[2].Action)
	assert.Equal(t, "chapter2.yaml", ch.Events[3].Next)
	assert.Equal(t, "序章", ch.Extra["title"])
}

func TestChapterJSONShape(t *testing.T) {
	var ch Chapter
	require.NoError(t, yaml.Unmarshal([]byte(chapterYAML), &ch))

	raw, err := json.Marshal(&ch)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, "序章", decoded["title"])
	assert.NotContains(t, decoded, "error")

	events := decoded["events"].([]interface{})
	bg := events[1].(map[string]interface{})
	assert.Equal(t, "background", bg["type"])
	assert.Equal(t, "bg/street.png", bg["imagePath"])
	assert.Equal(t, "fade", bg["transition"])
	assert.NotContains(t, bg, "text")
}

func TestBrokenChapterJSON(t *testing.T) {
	raw, err := json.Marshal(NewBrokenChapter(errors.New("yaml: line 3: did not find expected key")))
	require.NoError(t, err)
	assert.JSONEq(t, `{"events": [], "error": "yaml: line 3: did not find expected key"}`, string(raw))
}

func TestEndsChapter(t *testing.T) {
	assert.True(t, Event{Type: EventEnd}.EndsChapter())
	assert.True(t, Event{Type: EventEnd, Next: "end"}.EndsChapter())
	assert.False(t, Event{Type: EventEnd, Next: "ch2.yaml"}.EndsChapter())
	assert.False(t, Event{Type: EventNarration}.EndsChapter())
}

func TestStartChapter(t *testing.T) {
	data := NewPreviewData()
	_, ok := data.StartChapter()
	assert.False(t, ok)

	data.Chapters["b/ch2.yaml"] = &Chapter{}
	data.Chapters["a/ch1.yaml"] = &Chapter{}

	key, ok := data.StartChapter()
	require.True(t, ok)
	assert.Equal(t, "a/ch1.yaml", key)

	data.Config["intro_chapter"] = "b/ch2.yaml"
	key, _ = data.StartChapter()
	assert.Equal(t, "b/ch2.yaml", key)

	data.Config["intro_chapter"] = "missing.yaml"
	key, _ = data.StartChapter()
	assert.Equal(t, "a/ch1.yaml", key)
}

func TestFindCharacterByIDOrName(t *testing.T) {
	data := NewPreviewData()
	data.Characters = []Character{{ID: "alice", Name: "爱丽丝"}}

	ch, ok := data.FindCharacter("爱丽丝")
	require.True(t, ok)
	assert.Equal(t, "alice", ch.ID)

	_, ok = data.FindCharacter("bob")
	assert.False(t, ok)
}

func TestNormalizeValue(t *testing.T) {
	in := map[interface{}]interface{}{1: "one", "list": []interface{}{map[interface{}]interface{}{true: "yes"}}}
	out := NormalizeValue(in).(map[string]interface{})

	assert.Equal(t, "one", out["1"])
	inner := out["list"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "yes", inner["true"])

	_, err := json.Marshal(out)
	assert.NoError(t, err)
}
