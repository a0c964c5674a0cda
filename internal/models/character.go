// internal/models/character.go
package models

// Character 故事中的一个角色，情绪来自 avatar 目录下的文件名
type Character struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Emotions []string `json:"emotions,omitempty"`
}

// DisplayName 返回显示名称
func (c Character) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}
