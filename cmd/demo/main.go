// cmd/demo/main.go
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/Corphon/StoryPreview/internal/app"
	"github.com/Corphon/StoryPreview/internal/config"
	"github.com/Corphon/StoryPreview/internal/di"
	"github.com/Corphon/StoryPreview/internal/playback"
	"github.com/Corphon/StoryPreview/internal/services"
	"github.com/Corphon/StoryPreview/internal/utils"
)

var stdin = bufio.NewScanner(os.Stdin)

func main() {
	fmt.Println("🚀 StoryPreview Console App")
	fmt.Println("=================================")

	// 选择语言
	selectLanguage()

	cfg, err := config.Load()
	if err != nil {
		log.Printf("❌ 加载配置失败: %v", err)
		return
	}
	config.SetCurrentConfig(cfg)

	// 初始化日志系统
	if err := utils.InitLogger(utils.LoggerConfig{
		Level:    cfg.LogLevel,
		Encoding: cfg.LogEncoding,
		File:     cfg.LogFile("console"),
		Quiet:    true,
	}); err != nil {
		log.Printf("⚠️ 无法初始化结构化日志: %v", err)
		log.Println("继续运行...")
	}
	utils.GetLogger().Info("Console app starting", nil)
	defer func() { _ = utils.GetLogger().Sync() }()

	if err := app.InitServices(cfg); err != nil {
		fmt.Println(T("init_fail", err))
		return
	}
	fmt.Println(T("init_success"))

	for {
		showMenu()
		choice := strings.TrimSpace(getUserInput(T("input_prompt")))

		switch choice {
		case "1", "list", "ls":
			listStories()
		case "2", "play":
			playStory()
		case "3", "sample":
			createSampleStory()
		case "4", "config":
			viewConfig()
		case "5", "services":
			listServices()
		case "0", "quit", "exit":
			fmt.Println(T("goodbye"))
			return
		default:
			fmt.Println(T("invalid_choice"))
		}
		fmt.Println()
	}
}

// 显示菜单
func showMenu() {
	printBox("", fmt.Sprintf("%s\n  %s\n  %s\n  %s\n  %s\n  %s\n  %s",
		T("menu_title"),
		T("menu_list"),
		T("menu_play"),
		T("menu_sample"),
		T("menu_config"),
		T("menu_services"),
		T("menu_exit")))
}

// 获取用户输入
func getUserInput(prompt string) string {
	fmt.Print(prompt)
	if !stdin.Scan() {
		return "q"
	}
	return stdin.Text()
}

// 获取用户输入 (带默认值)
func getUserInputWithDefault(prompt, defaultValue string) string {
	if defaultValue != "" {
		prompt = fmt.Sprintf("%s [%s]: ", prompt, defaultValue)
	} else {
		prompt += ": "
	}
	input := strings.TrimSpace(getUserInput(prompt))
	if input == "" {
		return defaultValue
	}
	return input
}

func previewService() (*services.PreviewService, error) {
	return di.Resolve[*services.PreviewService](di.GetContainer(), di.ServicePreview)
}

// 列出故事
func listStories() {
	svc, err := previewService()
	if err != nil {
		fmt.Println(T("service_missing", err))
		return
	}

	stories, err := svc.ListStories(context.Background())
	if err != nil {
		fmt.Println(T("read_fail", err))
		return
	}
	if len(stories) == 0 {
		fmt.Println(T("no_stories"))
		return
	}

	lines := make([]string, 0, len(stories))
	for _, story := range stories {
		title := story.Title
		if title == "" {
			title = "-"
		}
		lines = append(lines, T("story_line", story.ID, title, story.ChapterCount))
	}
	printBox(T("stories_title"), strings.Join(lines, "\n"))
}

// 在终端中播放故事
func playStory() {
	svc, err := previewService()
	if err != nil {
		fmt.Println(T("service_missing", err))
		return
	}

	storyID := getUserInputWithDefault(T("enter_story_id"), services.SampleStoryID)
	data, err := svc.LoadPreviewData(context.Background(), storyID)
	if err != nil {
		fmt.Println(T("read_fail", err))
		return
	}
	if data.ConfigError != "" {
		fmt.Println(T("config_warning", data.ConfigError))
	}

	interval := playback.DefaultAutoInterval
	if cfg := config.GetCurrentConfig(); cfg != nil && cfg.AutoAdvanceInterval > 0 {
		interval = cfg.AutoAdvanceInterval
	}

	var printMu sync.Mutex
	engine := playback.NewEngine(svc.StoryBaseURL(storyID), data).WithLogger(utils.GetLogger())
	player := playback.NewPlayer(engine, interval, func(view playback.View) {
		printMu.Lock()
		defer printMu.Unlock()
		printView(view)
	})
	defer player.Close()

	fmt.Println(T("play_help"))
	player.Start()

	for {
		input := strings.TrimSpace(getUserInput(""))
		switch {
		case input == "":
			if _, ok := player.Advance(); !ok {
				fmt.Println(T("auto_active"))
			}
		case input == "a":
			enabled := !player.Auto()
			player.SetAuto(enabled)
			if player.Auto() {
				fmt.Println(T("auto_on"))
			} else {
				fmt.Println(T("auto_off"))
			}
		case input == "r":
			player.Restart()
		case strings.HasPrefix(input, "j "):
			player.Jump(strings.TrimSpace(strings.TrimPrefix(input, "j ")))
		case input == "c":
			fmt.Println(strings.Join(data.ChapterKeys(), "\n"))
		case input == "q":
			return
		default:
			fmt.Println(T("play_help"))
		}
	}
}

func printView(view playback.View) {
	title := fmt.Sprintf("%s #%d [%s]", view.Chapter, view.Index, view.State)

	var lines []string
	if view.Background != "" {
		lines = append(lines, T("view_background", view.Background))
	}
	if len(view.Sprites) > 0 {
		names := make([]string, 0, len(view.Sprites))
		for _, sprite := range view.Sprites {
			names = append(names, sprite.Name)
		}
		lines = append(lines, T("view_sprites", strings.Join(names, ", ")))
	}

	switch view.State {
	case playback.StateError:
		lines = append(lines, T("view_error", view.Error))
	case playback.StateEnded:
		lines = append(lines, T("view_ended"))
	default:
		if view.Speaker != "" {
			lines = append(lines, view.Speaker+":")
		}
		lines = append(lines, view.Text)
	}

	printBox(title, strings.Join(lines, "\n"))
}

// 创建示例故事
func createSampleStory() {
	svc, err := previewService()
	if err != nil {
		fmt.Println(T("service_missing", err))
		return
	}

	storyID := getUserInputWithDefault(T("enter_story_id"), services.SampleStoryID)
	if err := svc.CreateSampleStory(storyID); err != nil {
		fmt.Println(T("create_fail", err))
		return
	}
	fmt.Println(T("create_success", storyID))
}

// 查看当前配置
func viewConfig() {
	fmt.Println(T("config_view"))
	cfg := config.GetCurrentConfig()
	if cfg == nil {
		fmt.Println("  配置未初始化")
		return
	}

	origins := "*"
	if len(cfg.AllowedOrigins) > 0 {
		origins = strings.Join(cfg.AllowedOrigins, ", ")
	}

	fmt.Printf("  PORT: %s\n", cfg.Port)
	fmt.Printf("  SCRIPTS_DIR: %s\n", cfg.ScriptsDir)
	fmt.Printf("  LOG_DIR: %s\n", cfg.LogDir)
	fmt.Printf("  LOG_LEVEL: %s\n", cfg.LogLevel)
	fmt.Printf("  DEBUG_MODE: %t\n", cfg.DebugMode)
	fmt.Printf("  CORS_ALLOWED_ORIGINS: %s\n", origins)
	fmt.Printf("  AUTO_ADVANCE_INTERVAL: %s\n", cfg.AutoAdvanceInterval)
	fmt.Printf("  DOCUMENT_CACHE_TTL: %s\n", cfg.DocumentCacheTTL)
	fmt.Printf("  RATE_LIMIT: %.1f rps, burst %d\n", cfg.RateLimitRPS, cfg.RateLimitBurst)
}

// 列出所有服务
func listServices() {
	fmt.Println(T("services_list"))
	serviceNames := di.GetContainer().GetNames()
	if len(serviceNames) == 0 {
		fmt.Println("  -")
		return
	}

	for _, name := range serviceNames {
		fmt.Printf("  - %s (%T)\n", name, di.GetContainer().Get(name))
	}
}

var currentLanguage = "zh"

var translations = map[string]map[string]string{
	"zh": {
		"menu_title":      "请选择功能:",
		"menu_list":       "1) 列出故事",
		"menu_play":       "2) 播放故事",
		"menu_sample":     "3) 创建示例故事",
		"menu_config":     "4) 查看当前配置",
		"menu_services":   "5) 列出所有服务",
		"menu_exit":       "0) 退出",
		"input_prompt":    "请选择操作 (输入数字或命令): ",
		"invalid_choice":  "❌ 无效选择，请重新输入！",
		"goodbye":         "👋 感谢使用 StoryPreview 控制台应用程序！",
		"init_success":    "✅ 项目环境初始化成功！",
		"init_fail":       "❌ 初始化服务失败: %v",
		"service_missing": "❌ 预览服务不可用: %v",
		"read_fail":       "❌ 读取失败: %v",
		"no_stories":      "📭 故事目录为空，可以先创建示例故事",
		"stories_title":   "📚 故事列表",
		"story_line":      "%s  %s  (%d 章)",
		"enter_story_id":  "请输入故事ID",
		"config_warning":  "⚠️ 故事配置解析失败: %s",
		"play_help":       "回车=下一句  a=自动播放  r=重新开始  j <章节>=跳转  c=章节列表  q=返回",
		"auto_active":     "⏩ 自动播放中，按 a 关闭",
		"auto_on":         "⏩ 自动播放已开启",
		"auto_off":        "⏸ 自动播放已关闭",
		"view_background": "背景: %s",
		"view_sprites":    "角色: %s",
		"view_error":      "❌ 错误: %s",
		"view_ended":      "🏁 故事结束 (按 r 重新开始)",
		"create_fail":     "❌ 创建失败: %v",
		"create_success":  "✅ 示例故事已创建: %s",
		"config_view":     "⚙️  当前配置信息:",
		"services_list":   "📦 已注册的服务:",
	},
	"en": {
		"menu_title":      "Choose an option:",
		"menu_list":       "1) List stories",
		"menu_play":       "2) Play a story",
		"menu_sample":     "3) Create sample story",
		"menu_config":     "4) View configuration",
		"menu_services":   "5) List services",
		"menu_exit":       "0) Exit",
		"input_prompt":    "Select (number or command): ",
		"invalid_choice":  "❌ Invalid choice, try again!",
		"goodbye":         "👋 Thanks for using the StoryPreview console app!",
		"init_success":    "✅ Environment initialized!",
		"init_fail":       "❌ Failed to initialize services: %v",
		"service_missing": "❌ Preview service unavailable: %v",
		"read_fail":       "❌ Read failed: %v",
		"no_stories":      "📭 No stories yet, create the sample story first",
		"stories_title":   "📚 Stories",
		"story_line":      "%s  %s  (%d chapters)",
		"enter_story_id":  "Story ID",
		"config_warning":  "⚠️ Story config could not be parsed: %s",
		"play_help":       "Enter=next  a=auto  r=restart  j <chapter>=jump  c=chapters  q=back",
		"auto_active":     "⏩ Auto mode is on, press a to stop",
		"auto_on":         "⏩ Auto mode on",
		"auto_off":        "⏸ Auto mode off",
		"view_background": "Background: %s",
		"view_sprites":    "Characters: %s",
		"view_error":      "❌ Error: %s",
		"view_ended":      "🏁 The end (press r to restart)",
		"create_fail":     "❌ Create failed: %v",
		"create_success":  "✅ Sample story created: %s",
		"config_view":     "⚙️  Current configuration:",
		"services_list":   "📦 Registered services:",
	},
}

func T(key string, args ...interface{}) string {
	langMap, ok := translations[currentLanguage]
	if !ok {
		langMap = translations["zh"]
	}
	val, ok := langMap[key]
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(val, args...)
	}
	return val
}

func selectLanguage() {
	fmt.Println("Select Language / 选择语言:")
	fmt.Println("  1) English")
	fmt.Println("  2) 中文 (Chinese)")
	choice := getUserInput("Choice/选择 [2]: ")
	if strings.TrimSpace(choice) == "1" {
		currentLanguage = "en"
	} else {
		currentLanguage = "zh"
	}
	fmt.Printf("Language set to %s\n\n", currentLanguage)
}

const cliBoxMaxWidth = 90

func printBox(title, content string) {
	wrappedLines := wrapContentForBox(content, cliBoxMaxWidth)
	maxWidth := utf8.RuneCountInString(title)
	for _, line := range wrappedLines {
		if w := utf8.RuneCountInString(line); w > maxWidth {
			maxWidth = w
		}
	}
	border := strings.Repeat("─", maxWidth+2)
	fmt.Println("┌" + border + "┐")
	if title != "" {
		fmt.Printf("│ %s │\n", padRight(title, maxWidth))
		fmt.Println("├" + border + "┤")
	}
	for _, line := range wrappedLines {
		fmt.Printf("│ %s │\n", padRight(line, maxWidth))
	}
	fmt.Println("└" + border + "┘")
}

func wrapContentForBox(content string, maxWidth int) []string {
	var result []string
	for _, rawLine := range strings.Split(content, "\n") {
		runes := []rune(strings.TrimRight(rawLine, " "))
		for len(runes) > maxWidth {
			result = append(result, string(runes[:maxWidth]))
			runes = runes[maxWidth:]
		}
		result = append(result, string(runes))
	}
	return result
}

func padRight(text string, width int) string {
	current := utf8.RuneCountInString(text)
	if current >= width {
		return text
	}
	return text + strings.Repeat(" ", width-current)
}
