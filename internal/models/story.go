// internal/models/story.go
package models

import (
	"encoding/json"
	"fmt"
	"sort"
)

// StoryConfig story_config.yaml 的内容，只读取 intro_chapter
type StoryConfig map[string]interface{}

// IntroChapter 返回入口章节键
func (c StoryConfig) IntroChapter() string {
	return c.stringValue("intro_chapter")
}

// Title 返回故事标题
func (c StoryConfig) Title() string {
	return c.stringValue("title")
}

func (c StoryConfig) stringValue(key string) string {
	if c == nil {
		return ""
	}
	switch v := c[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Chapter 一个章节文档
type Chapter struct {
	Events []Event `yaml:"events"`
	Error  string  `yaml:"-"` // 解析失败时记录错误，事件列表为空

	Extra map[string]interface{} `yaml:",inline"`
}

// NewBrokenChapter 创建解析失败的章节
func NewBrokenChapter(err error) *Chapter {
	return &Chapter{Events: []Event{}, Error: err.Error()}
}

// MarshalJSON 输出 {events, error?} 以及透传字段
func (c Chapter) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(c.Extra)+2)
	for k, v := range c.Extra {
		out[k] = NormalizeValue(v)
	}
	events := c.Events
	if events == nil {
		events = []Event{}
	}
	out["events"] = events
	if c.Error != "" {
		out["error"] = c.Error
	}
	return json.Marshal(out)
}

// StorySummary 故事列表条目
type StorySummary struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	ChapterCount int    `json:"chapter_count"`
	HasConfig    bool   `json:"has_config"`
}

// PreviewData 预览所需的聚合文档
type PreviewData struct {
	Config      StoryConfig         `json:"config"`
	ConfigError string              `json:"config_error,omitempty"`
	Chapters    map[string]*Chapter `json:"chapters"`
	Assets      map[string]string   `json:"assets"`
	Characters  []Character         `json:"characters"`
}

// NewPreviewData 创建空的聚合文档
func NewPreviewData() *PreviewData {
	return &PreviewData{
		Config:     StoryConfig{},
		Chapters:   make(map[string]*Chapter),
		Assets:     make(map[string]string),
		Characters: []Character{},
	}
}

// ChapterKeys 返回排序后的章节键
func (d *PreviewData) ChapterKeys() []string {
	keys := make([]string, 0, len(d.Chapters))
	for k := range d.Chapters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// StartChapter 入口章节：intro_chapter 存在则使用，否则取排序后的第一个
func (d *PreviewData) StartChapter() (string, bool) {
	if intro := d.Config.IntroChapter(); intro != "" {
		if _, ok := d.Chapters[intro]; ok {
			return intro, true
		}
	}
	keys := d.ChapterKeys()
	if len(keys) == 0 {
		return "", false
	}
	return keys[0], true
}

// FindCharacter 按 id 或名称查找角色
func (d *PreviewData) FindCharacter(idOrName string) (Character, bool) {
	for _, ch := range d.Characters {
		if ch.ID == idOrName || ch.Name == idOrName {
			return ch, true
		}
	}
	return Character{}, false
}

// NormalizeValue 把 YAML 解码出的 map[interface{}]interface{} 转为可 JSON 编码的结构
func NormalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = NormalizeValue(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = NormalizeValue(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = NormalizeValue(item)
		}
		return out
	default:
		return v
	}
}
