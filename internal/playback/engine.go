// internal/playback/engine.go
package playback

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/Corphon/StoryPreview/internal/models"
	"github.com/Corphon/StoryPreview/internal/utils"
)

// State 播放状态
type State string

const (
	StateLoading State = "loading"
	StatePlaying State = "playing"
	StateEnded   State = "ended"
	StateError   State = "error"
)

// 固定的显示标签
const (
	PlayerLabel       = "玩家"
	UnknownLabel      = "???"
	AIPrefix          = "[AI] "
	AIPlaceholderText = "[AI 生成的对话]"
)

// 错误提示
const (
	ErrMissingChapterData = "missing chapter data"
)

// Sprite 一个可见角色的立绘
type Sprite struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// View 引擎当前状态的快照
type View struct {
	State      State    `json:"state"`
	Chapter    string   `json:"chapter"`
	Index      int      `json:"index"`
	Speaker    string   `json:"speaker"`
	Text       string   `json:"text"`
	Background string   `json:"background,omitempty"`
	Sprites    []Sprite `json:"sprites"`
	Ended      bool     `json:"ended"`
	Error      string   `json:"error,omitempty"`
}

// Engine 章节事件状态机
//
// 引擎本身不做同步，并发访问由 Player 负责。
type Engine struct {
	base   string
	data   *models.PreviewData
	logger *utils.Logger

	state      State
	chapter    string
	events     []models.Event
	index      int
	speaker    string
	text       string
	background string
	visible    map[string]struct{}
	errMsg     string
}

// NewEngine 创建引擎，base 为故事的URL前缀（如 /api/preview/demo）
func NewEngine(base string, data *models.PreviewData) *Engine {
	return &Engine{
		base:    strings.TrimRight(base, "/"),
		data:    data,
		logger:  utils.GetLogger(),
		state:   StateLoading,
		visible: make(map[string]struct{}),
	}
}

// WithLogger 替换日志器
func (e *Engine) WithLogger(logger *utils.Logger) *Engine {
	e.logger = logger
	return e
}

// State 返回当前状态
func (e *Engine) State() State {
	return e.state
}

// Start 进入入口章节并显示第一条可显示的事件
func (e *Engine) Start() View {
	if e.data == nil {
		return e.Fail(ErrMissingChapterData)
	}
	start, ok := e.data.StartChapter()
	if !ok {
		return e.Fail(ErrMissingChapterData)
	}
	if e.enterChapter(start) {
		e.process()
	}
	return e.View()
}

// Advance 前进一步；只在 playing 状态有效
func (e *Engine) Advance() View {
	if e.state != StatePlaying {
		return e.View()
	}
	e.index++
	e.process()
	return e.View()
}

// Restart 回到当前章节开头并清空可见角色，不重新加载数据
func (e *Engine) Restart() View {
	if e.chapter == "" {
		return e.Start()
	}
	e.visible = make(map[string]struct{})
	if e.enterChapter(e.chapter) {
		e.process()
	}
	return e.View()
}

// Jump 跳转到指定章节的开头
func (e *Engine) Jump(chapterKey string) View {
	if e.state == StateLoading || e.state == StateError {
		return e.View()
	}
	if e.enterChapter(chapterKey) {
		e.process()
	}
	return e.View()
}

// Fail 进入错误状态，之后不再前进
func (e *Engine) Fail(message string) View {
	e.state = StateError
	e.errMsg = message
	e.logger.Warn("播放进入错误状态", map[string]interface{}{"chapter": e.chapter, "error": message})
	return e.View()
}

// View 返回当前快照
func (e *Engine) View() View {
	view := View{
		State:      e.state,
		Chapter:    e.chapter,
		Index:      e.index,
		Speaker:    e.speaker,
		Text:       e.text,
		Background: e.background,
		Sprites:    e.sprites(),
		Ended:      e.state == StateEnded,
		Error:      e.errMsg,
	}
	return view
}

// VisibleCharacters 返回排序后的可见角色ID
func (e *Engine) VisibleCharacters() []string {
	ids := make([]string, 0, len(e.visible))
	for id := range e.visible {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// enterChapter 切换章节，章节不存在时进入错误状态
func (e *Engine) enterChapter(key string) bool {
	chapter, ok := e.data.Chapters[key]
	if !ok || chapter == nil {
		e.Fail(fmt.Sprintf("%s: %s", ErrMissingChapterData, key))
		return false
	}

	e.chapter = key
	e.events = chapter.Events
	e.index = 0
	e.speaker = ""
	e.text = ""
	e.state = StatePlaying
	e.errMsg = ""
	return true
}

// process 从当前位置处理事件，直到遇到需要等待输入的事件或离开 playing 状态
func (e *Engine) process() {
	// 只由自动事件组成的章节环会无限跳转，限制跳转次数
	jumps := 0
	maxJumps := len(e.data.Chapters) + 1

	for e.state == StatePlaying {
		if e.index >= len(e.events) {
			e.state = StateEnded
			return
		}

		event := e.events[e.index]
		switch event.Type {
		case models.EventNarration:
			e.show("", event.Text)
			return
		case models.EventPlayer:
			e.show(PlayerLabel, event.Text)
			return
		case models.EventDialogue:
			e.show(e.speakerName(event.Character), event.Text)
			return
		case models.EventAIDialogue:
			text := AIPlaceholderText
			if event.HasText() {
				text = AIPrefix + event.Text
			}
			e.show(e.speakerName(event.Character), text)
			return
		case models.EventBackground:
			e.background = e.resolveBackground(event.ImagePath)
		case models.EventMusic:
			e.logger.Debug("音乐事件", map[string]interface{}{"chapter": e.chapter, "music": event.MusicPath})
		case models.EventModifyCharacter:
			e.modifyCharacter(event)
		case models.EventSetVariable:
		case models.EventEnd:
			if event.EndsChapter() {
				e.state = StateEnded
				return
			}
			jumps++
			if jumps > maxJumps {
				e.Fail(fmt.Sprintf("chapter loop without displayable events: %s", event.Next))
				return
			}
			if !e.enterChapter(event.Next) {
				return
			}
			continue
		default:
			e.logger.Debug("忽略未知事件", map[string]interface{}{"chapter": e.chapter, "type": string(event.Type)})
		}
		e.index++
	}
}

func (e *Engine) show(speaker, text string) {
	e.speaker = speaker
	e.text = text
}

func (e *Engine) modifyCharacter(event models.Event) {
	if event.Character == "" {
		return
	}
	switch event.Action {
	case models.ActionShowCharacter:
		e.visible[event.Character] = struct{}{}
	case models.ActionHideCharacter:
		delete(e.visible, event.Character)
	}
}

// speakerName 按ID或名称查找角色，找不到时使用原始ID
func (e *Engine) speakerName(id string) string {
	if id == "" {
		return UnknownLabel
	}
	if character, ok := e.data.FindCharacter(id); ok {
		return character.DisplayName()
	}
	return id
}

func (e *Engine) resolveBackground(imagePath string) string {
	if imagePath == "" {
		return ""
	}
	if u, ok := e.data.Assets[imagePath]; ok {
		return u
	}
	return e.base + "/assets/" + strings.TrimPrefix(imagePath, "/")
}

// spriteAliases 立绘在资源表中的候选键，按顺序匹配
func spriteAliases(id string) []string {
	return []string{
		"Characters/" + id,
		id,
		"Characters/" + id + "/avatar/正常",
		"Characters/" + id + "/avatar/normal",
	}
}

// SpriteURL 解析角色立绘地址
func (e *Engine) SpriteURL(id string) string {
	for _, alias := range spriteAliases(id) {
		if u, ok := e.data.Assets[alias]; ok {
			return u
		}
	}
	return e.base + "/character/" + url.PathEscape(id)
}

func (e *Engine) sprites() []Sprite {
	ids := e.VisibleCharacters()
	sprites := make([]Sprite, 0, len(ids))
	for _, id := range ids {
		name := id
		if character, ok := e.data.FindCharacter(id); ok {
			name = character.DisplayName()
		}
		sprites = append(sprites, Sprite{ID: id, Name: name, URL: e.SpriteURL(id)})
	}
	return sprites
}
