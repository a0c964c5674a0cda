package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/StoryPreview/internal/models"
	"github.com/Corphon/StoryPreview/internal/utils"
)

const testBase = "/api/preview/demo"

func newTestData(chapters map[string][]models.Event) *models.PreviewData {
	data := models.NewPreviewData()
	for key, events := range chapters {
		data.Chapters[key] = &models.Chapter{Events: events}
	}
	data.Characters = []models.Character{{ID: "alice", Name: "爱丽丝"}, {ID: "bob", Name: "bob"}}
	return data
}

func newTestEngine(data *models.PreviewData) *Engine {
	return NewEngine(testBase, data).WithLogger(utils.NewNopLogger())
}

func narration(text string) models.Event {
	return models.Event{Type: models.EventNarration, Text: text}
}

func TestAutoEventsAreSkippedOnAdvance(t *testing.T) {
	data := newTestData(map[string][]models.Event{
		"ch1.yaml": {
			narration("A"),
			{Type: models.EventBackground, ImagePath: "bg.png"},
			narration("B"),
		},
	})
	engine := newTestEngine(data)

	view := engine.Start()
	assert.Equal(t, StatePlaying, view.State)
	assert.Equal(t, "A", view.Text)
	assert.Equal(t, 0, view.Index)

	view = engine.Advance()
	assert.Equal(t, "B", view.Text)
	assert.Equal(t, 2, view.Index)
	assert.Equal(t, testBase+"/assets/bg.png", view.Background)
}

func TestBackgroundUsesAssetMap(t *testing.T) {
	data := newTestData(map[string][]models.Event{
		"ch1.yaml": {
			{Type: models.EventBackground, ImagePath: "bg/room.png"},
			narration("A"),
		},
	})
	data.Assets["bg/room.png"] = "/api/preview/demo/assets/bg/room.png?v=1"

	view := newTestEngine(data).Start()
	assert.Equal(t, "/api/preview/demo/assets/bg/room.png?v=1", view.Background)
	assert.Equal(t, "A", view.Text)
}

func TestSpeakerLabels(t *testing.T) {
	data := newTestData(map[string][]models.Event{
		"ch1.yaml": {
			{Type: models.EventDialogue, Character: "alice", Text: "你好"},
			{Type: models.EventDialogue, Character: "爱丽丝", Text: "按名称"},
			{Type: models.EventDialogue, Character: "stranger", Text: "?"},
			{Type: models.EventDialogue, Text: "无名"},
			{Type: models.EventPlayer, Text: "我"},
			{Type: models.EventAIDialogue, Character: "alice", Text: "生成"},
			{Type: models.EventAIDialogue, Character: "alice"},
		},
	})
	engine := newTestEngine(data)

	expected := []struct{ speaker, text string }{
		{"爱丽丝", "你好"},
		{"爱丽丝", "按名称"},
		{"stranger", "?"},
		{UnknownLabel, "无名"},
		{PlayerLabel, "我"},
		{"爱丽丝", AIPrefix + "生成"},
		{"爱丽丝", AIPlaceholderText},
	}

	view := engine.Start()
	for i, want := range expected {
		if i > 0 {
			view = engine.Advance()
		}
		assert.Equal(t, want.speaker, view.Speaker, "event %d", i)
		assert.Equal(t, want.text, view.Text, "event %d", i)
	}

	view = engine.Advance()
	assert.Equal(t, StateEnded, view.State)
	assert.True(t, view.Ended)
}

func TestModifyCharacterSetSemantics(t *testing.T) {
	show := models.Event{Type: models.EventModifyCharacter, Action: models.ActionShowCharacter, Character: "alice"}
	data := newTestData(map[string][]models.Event{
		"ch1.yaml": {
			show,
			show,
			{Type: models.EventModifyCharacter, Action: models.ActionShowCharacter, Character: "carol"},
			narration("两个角色"),
			{Type: models.EventModifyCharacter, Action: models.ActionHideCharacter, Character: "alice"},
			narration("一个角色"),
		},
	})
	data.Assets["alice"] = "/api/preview/demo/character/alice"
	engine := newTestEngine(data)

	view := engine.Start()
	require.Len(t, view.Sprites, 2)
	assert.Equal(t, Sprite{ID: "alice", Name: "爱丽丝", URL: "/api/preview/demo/character/alice"}, view.Sprites[0])
	assert.Equal(t, Sprite{ID: "carol", Name: "carol", URL: testBase + "/character/carol"}, view.Sprites[1])

	view = engine.Advance()
	assert.Equal(t, []string{"carol"}, engine.VisibleCharacters())
	assert.Equal(t, "一个角色", view.Text)
}

func TestSpriteAliasOrder(t *testing.T) {
	data := newTestData(nil)
	engine := newTestEngine(data)

	data.Assets["Characters/alice/avatar/normal"] = "normal"
	assert.Equal(t, "normal", engine.SpriteURL("alice"))

	data.Assets["Characters/alice/avatar/正常"] = "zhengchang"
	assert.Equal(t, "zhengchang", engine.SpriteURL("alice"))

	data.Assets["alice"] = "bare"
	assert.Equal(t, "bare", engine.SpriteURL("alice"))

	data.Assets["Characters/alice"] = "nested"
	assert.Equal(t, "nested", engine.SpriteURL("alice"))
}

func TestEndEventTransitions(t *testing.T) {
	data := newTestData(map[string][]models.Event{
		"a.yaml": {
			narration("A1"),
			{Type: models.EventEnd, Next: "sub/b.yaml"},
			narration("never"),
		},
		"sub/b.yaml": {
			{Type: models.EventBackground, ImagePath: "b.png"},
			narration("B1"),
			{Type: models.EventEnd, Next: models.NextEnd},
		},
	})
	engine := newTestEngine(data)

	view := engine.Start()
	assert.Equal(t, "a.yaml", view.Chapter)

	view = engine.Advance()
	assert.Equal(t, "sub/b.yaml", view.Chapter)
	assert.Equal(t, 1, view.Index)
	assert.Equal(t, "B1", view.Text)

	view = engine.Advance()
	assert.Equal(t, StateEnded, view.State)
	assert.Equal(t, 2, view.Index)

	// 结束后不再前进
	view = engine.Advance()
	assert.Equal(t, StateEnded, view.State)
	assert.Equal(t, 2, view.Index)
}

func TestEndWithUnknownChapterIsError(t *testing.T) {
	data := newTestData(map[string][]models.Event{
		"a.yaml": {narration("A"), {Type: models.EventEnd, Next: "missing.yaml"}},
	})
	engine := newTestEngine(data)
	engine.Start()

	view := engine.Advance()
	assert.Equal(t, StateError, view.State)
	assert.Contains(t, view.Error, "missing.yaml")

	view = engine.Advance()
	assert.Equal(t, StateError, view.State)
}

func TestStartChapterSelection(t *testing.T) {
	data := newTestData(map[string][]models.Event{
		"b.yaml": {narration("B")},
		"a.yaml": {narration("A")},
	})
	assert.Equal(t, "a.yaml", newTestEngine(data).Start().Chapter)

	data.Config["intro_chapter"] = "b.yaml"
	assert.Equal(t, "b.yaml", newTestEngine(data).Start().Chapter)
}

func TestStartWithoutChapters(t *testing.T) {
	view := newTestEngine(models.NewPreviewData()).Start()
	assert.Equal(t, StateError, view.State)
	assert.Equal(t, ErrMissingChapterData, view.Error)

	view = newTestEngine(nil).Start()
	assert.Equal(t, StateError, view.State)
}

func TestRestartClearsCharacters(t *testing.T) {
	data := newTestData(map[string][]models.Event{
		"a.yaml": {
			narration("A"),
			{Type: models.EventModifyCharacter, Action: models.ActionShowCharacter, Character: "bob"},
			narration("B"),
		},
	})
	engine := newTestEngine(data)
	engine.Start()
	engine.Advance()
	require.Equal(t, []string{"bob"}, engine.VisibleCharacters())

	view := engine.Restart()
	assert.Equal(t, 0, view.Index)
	assert.Equal(t, "A", view.Text)
	assert.Empty(t, view.Sprites)
}

func TestRunningOffTheEndEndsChapter(t *testing.T) {
	data := newTestData(map[string][]models.Event{
		"a.yaml": {narration("A"), {Type: models.EventMusic, MusicPath: "x.mp3"}, {Type: "unknown"}},
	})
	engine := newTestEngine(data)
	engine.Start()

	view := engine.Advance()
	assert.Equal(t, StateEnded, view.State)
	assert.Equal(t, "A", view.Text)
}

func TestChapterLoopOfAutoEventsFails(t *testing.T) {
	data := newTestData(map[string][]models.Event{
		"a.yaml": {{Type: models.EventSetVariable}, {Type: models.EventEnd, Next: "b.yaml"}},
		"b.yaml": {{Type: models.EventEnd, Next: "a.yaml"}},
	})

	view := newTestEngine(data).Start()
	assert.Equal(t, StateError, view.State)
}

func TestJump(t *testing.T) {
	data := newTestData(map[string][]models.Event{
		"a.yaml": {narration("A")},
		"b.yaml": {narration("B")},
	})
	engine := newTestEngine(data)

	// 未启动时忽略
	assert.Equal(t, StateLoading, engine.Jump("b.yaml").State)

	engine.Start()
	view := engine.Jump("b.yaml")
	assert.Equal(t, "b.yaml", view.Chapter)
	assert.Equal(t, "B", view.Text)

	view = engine.Jump("nope.yaml")
	assert.Equal(t, StateError, view.State)
}
