// internal/playback/player.go
package playback

import (
	"sync"
	"time"

	"github.com/Corphon/StoryPreview/internal/utils"
)

// 前进触发方式
const (
	TriggerManual = "manual"
	TriggerAuto   = "auto"
)

// DefaultAutoInterval 自动播放的默认间隔
const DefaultAutoInterval = 3 * time.Second

// Player 为 Engine 加锁，并提供定时自动前进
//
// 手动前进和自动前进互斥：自动模式开启时忽略手动前进。
type Player struct {
	mu       sync.Mutex
	engine   *Engine
	interval time.Duration
	onChange func(View)

	auto *autoRunner
}

// autoRunner 一次自动播放的生命周期，stop 只会被关闭一次
type autoRunner struct {
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func (r *autoRunner) cancel() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// NewPlayer 创建播放器；onChange 在每次状态变化后调用（可为 nil）
func NewPlayer(engine *Engine, interval time.Duration, onChange func(View)) *Player {
	if interval <= 0 {
		interval = DefaultAutoInterval
	}
	return &Player{
		engine:   engine,
		interval: interval,
		onChange: onChange,
	}
}

// Start 启动引擎
func (p *Player) Start() View {
	p.mu.Lock()
	view := p.engine.Start()
	p.mu.Unlock()

	p.notify(view)
	return view
}

// View 返回当前快照
func (p *Player) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine.View()
}

// Auto 自动模式是否开启
func (p *Player) Auto() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.auto != nil
}

// Advance 手动前进；自动模式下被忽略，返回 false
func (p *Player) Advance() (View, bool) {
	p.mu.Lock()
	if p.auto != nil {
		view := p.engine.View()
		p.mu.Unlock()
		return view, false
	}
	view := p.engine.Advance()
	p.mu.Unlock()

	utils.PlaybackAdvancesTotal.WithLabelValues(TriggerManual).Inc()
	p.notify(view)
	return view, true
}

// Restart 重新开始当前章节，同时关闭自动模式
func (p *Player) Restart() View {
	p.SetAuto(false)

	p.mu.Lock()
	view := p.engine.Restart()
	p.mu.Unlock()

	p.notify(view)
	return view
}

// Jump 跳转章节
func (p *Player) Jump(chapterKey string) View {
	p.mu.Lock()
	view := p.engine.Jump(chapterKey)
	p.mu.Unlock()

	if view.State != StatePlaying {
		p.SetAuto(false)
	}
	p.notify(view)
	return view
}

// SetAuto 开启或关闭自动模式
func (p *Player) SetAuto(enabled bool) {
	p.mu.Lock()
	if enabled {
		if p.auto != nil || p.engine.State() != StatePlaying {
			p.mu.Unlock()
			return
		}
		runner := &autoRunner{stop: make(chan struct{}), done: make(chan struct{})}
		p.auto = runner
		p.mu.Unlock()

		go p.runAuto(runner)
		return
	}

	runner := p.auto
	p.auto = nil
	p.mu.Unlock()

	if runner != nil {
		runner.cancel()
		<-runner.done
	}
}

// runAuto 按固定间隔前进，引擎离开 playing 状态时自动退出
func (p *Player) runAuto(runner *autoRunner) {
	defer close(runner.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-runner.stop:
			return
		case <-ticker.C:
		}

		p.mu.Lock()
		// stop 与 tick 同时就绪时，以 stop 为准
		select {
		case <-runner.stop:
			p.mu.Unlock()
			return
		default:
		}

		view := p.engine.Advance()
		finished := view.State != StatePlaying
		if finished && p.auto == runner {
			p.auto = nil
			runner.cancel()
		}
		p.mu.Unlock()

		utils.PlaybackAdvancesTotal.WithLabelValues(TriggerAuto).Inc()
		p.notify(view)
		if finished {
			return
		}
	}
}

// Close 停止自动播放
func (p *Player) Close() {
	p.SetAuto(false)
}

func (p *Player) notify(view View) {
	if p.onChange != nil {
		p.onChange(view)
	}
}
