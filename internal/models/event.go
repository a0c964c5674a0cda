// internal/models/event.go
package models

import "encoding/json"

// EventType 章节事件类型
type EventType string

const (
	EventNarration       EventType = "narration"
	EventPlayer          EventType = "player"
	EventDialogue        EventType = "dialogue"
	EventAIDialogue      EventType = "ai_dialogue"
	EventBackground      EventType = "background"
	EventMusic           EventType = "music"
	EventModifyCharacter EventType = "modify_character"
	EventSetVariable     EventType = "set_variable"
	EventEnd             EventType = "end"
)

// modify_character 的动作
const (
	ActionShowCharacter = "show_character"
	ActionHideCharacter = "hide_character"
)

// NextEnd 作为 end 事件的 next 时表示结束章节
const NextEnd = "end"

// Event 是章节中的一个叙事步骤，字段随类型变化
type Event struct {
	Type      EventType `yaml:"type"`
	Text      string    `yaml:"text,omitempty"`
	Character string    `yaml:"character,omitempty"`
	ImagePath string    `yaml:"imagePath,omitempty"`
	MusicPath string    `yaml:"musicPath,omitempty"`
	Action    string    `yaml:"action,omitempty"`
	Next      string    `yaml:"next,omitempty"`

	// 其余字段原样透传给客户端
	Extra map[string]interface{} `yaml:",inline"`
}

// HasText 区分 text 缺失和空字符串以外的情况
func (e Event) HasText() bool {
	return e.Text != ""
}

// EndsChapter end 事件没有有效的 next 时结束当前章节
func (e Event) EndsChapter() bool {
	return e.Type == EventEnd && (e.Next == "" || e.Next == NextEnd)
}

// MarshalJSON 合并透传字段和已知字段
func (e Event) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(e.Extra)+7)
	for k, v := range e.Extra {
		out[k] = NormalizeValue(v)
	}
	out["type"] = e.Type
	setIfPresent(out, "text", e.Text)
	setIfPresent(out, "character", e.Character)
	setIfPresent(out, "imagePath", e.ImagePath)
	setIfPresent(out, "musicPath", e.MusicPath)
	setIfPresent(out, "action", e.Action)
	setIfPresent(out, "next", e.Next)
	return json.Marshal(out)
}

func setIfPresent(m map[string]interface{}, key, value string) {
	if value != "" {
		m[key] = value
	}
}
