// internal/services/sample_story.go
package services

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"path"

	"github.com/Corphon/StoryPreview/internal/models"
)

// SampleStoryID 示例故事的默认ID
const SampleStoryID = "sample"

// CreateSampleStory 在故事目录下生成一个可以直接预览的示例故事
//
// 已存在的同名目录会返回错误，不会覆盖。
func (s *PreviewService) CreateSampleStory(storyID string) error {
	if storyID == "" {
		storyID = SampleStoryID
	}
	if !isPlainName(storyID) {
		return fmt.Errorf("无效的故事ID: %s", storyID)
	}

	return s.locks.ExecuteWithStoryLock(storyID, func() error {
		if s.Storage.DirExists(storyID) {
			return fmt.Errorf("故事已存在: %s", storyID)
		}
		if err := s.writeSampleStory(storyID); err != nil {
			return err
		}
		s.logger.Info("示例故事已创建", map[string]interface{}{"story": storyID})
		return nil
	})
}

func (s *PreviewService) writeSampleStory(storyID string) error {
	config := models.StoryConfig{
		"title":         "示例故事",
		"intro_chapter": "intro.yaml",
	}
	if err := s.Storage.SaveYAMLFile(path.Join(storyID, StoryConfigFile), config); err != nil {
		return err
	}

	chapters := map[string]*models.Chapter{
		"intro.yaml": {Events: []models.Event{
			{Type: models.EventBackground, ImagePath: "bg/room.png"},
			{Type: models.EventNarration, Text: "清晨的阳光照进房间。"},
			{Type: models.EventModifyCharacter, Action: models.ActionShowCharacter, Character: "alice"},
			{Type: models.EventDialogue, Character: "alice", Text: "早上好！今天要去哪里？"},
			{Type: models.EventPlayer, Text: "先去街上看看吧。"},
			{Type: models.EventAIDialogue, Character: "alice"},
			{Type: models.EventEnd, Next: "part2/street.yaml"},
		}},
		"part2/street.yaml": {Events: []models.Event{
			{Type: models.EventBackground, ImagePath: "bg/street.png"},
			{Type: models.EventMusic, MusicPath: "music/theme.mp3"},
			{Type: models.EventDialogue, Character: "alice", Text: "街上好热闹。"},
			{Type: models.EventModifyCharacter, Action: models.ActionHideCharacter, Character: "alice"},
			{Type: models.EventNarration, Text: "故事暂时到这里。"},
			{Type: models.EventEnd, Next: models.NextEnd},
		}},
	}
	for key, chapter := range chapters {
		if err := s.Storage.SaveYAMLFile(path.Join(storyID, ChaptersDir, key), chapter); err != nil {
			return err
		}
	}

	images := map[string]color.RGBA{
		path.Join(AssetsDir, "bg", "room.png"):                 {66, 133, 244, 255},
		path.Join(AssetsDir, "bg", "street.png"):               {52, 168, 83, 255},
		path.Join(CharactersDir, "alice", AvatarDir, "正常.png"): {251, 188, 5, 255},
		path.Join(CharactersDir, "alice", AvatarDir, "开心.png"): {234, 67, 53, 255},
	}
	for rel, base := range images {
		data, err := GeneratePlaceholderImage(256, 256, base)
		if err != nil {
			return err
		}
		if err := s.Storage.SaveFile(path.Join(storyID, rel), data); err != nil {
			return err
		}
	}

	return nil
}

// GeneratePlaceholderImage 生成带径向渐变和边框的PNG图片
func GeneratePlaceholderImage(width, height int, base color.RGBA) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: base}, image.Point{}, draw.Src)

	center := image.Point{X: width / 2, Y: height / 2}
	radius := float64(min(width, height)) / 2
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dx := float64(x - center.X)
			dy := float64(y - center.Y)
			distance := math.Sqrt(dx*dx + dy*dy)
			if distance >= radius {
				continue
			}
			// 越靠近中心越亮
			factor := 1.0 - distance/radius*0.7
			img.Set(x, y, color.RGBA{
				R: lighten(base.R, factor),
				G: lighten(base.G, factor),
				B: lighten(base.B, factor),
				A: 255,
			})
		}
	}

	border := max(2, width/32)
	edge := color.RGBA{R: base.R / 2, G: base.G / 2, B: base.B / 2, A: 255}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x < border || x >= width-border || y < border || y >= height-border {
				img.Set(x, y, edge)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("编码图片失败: %w", err)
	}
	return buf.Bytes(), nil
}

func lighten(v uint8, factor float64) uint8 {
	out := float64(v) + (255-float64(v))*factor*0.5
	if out > 255 {
		out = 255
	}
	return uint8(out)
}
