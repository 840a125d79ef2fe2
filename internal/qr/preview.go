package qr

import (
	"context"
	"time"
)

// 预览去抖时长：内容输入合并 300ms，配色调整合并 200ms
const (
	contentDebounce = 300 * time.Millisecond
	styleDebounce   = 200 * time.Millisecond
)

// UpdateKind 区分预览更新的来源
type UpdateKind int

const (
	ContentUpdate UpdateKind = iota // 内容变化
	StyleUpdate                     // 仅颜色等样式变化
)

// PreviewResult 一次预览渲染的结果
type PreviewResult struct {
	Options RenderOptions
	Image   *Image
	Err     error
}

type previewUpdate struct {
	opts RenderOptions
	kind UpdateKind
}

// Previewer 合并快速连续的预览请求：静默期结束后只渲染最新的一次输入，
// 被新输入取代的在途渲染会被取消。
type Previewer struct {
	render       func(context.Context, RenderOptions) (*Image, error)
	updates      chan previewUpdate
	results      chan PreviewResult
	stopChan     chan struct{}
	contentDelay time.Duration
	styleDelay   time.Duration
}

// NewPreviewer 创建预览器
func NewPreviewer() *Previewer {
	return &Previewer{
		render: func(ctx context.Context, opts RenderOptions) (*Image, error) {
			img, err := Render(opts)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return img, err
		},
		updates:      make(chan previewUpdate, 16),
		results:      make(chan PreviewResult, 1),
		stopChan:     make(chan struct{}),
		contentDelay: contentDebounce,
		styleDelay:   styleDebounce,
	}
}

// Start 启动后台去抖循环
func (p *Previewer) Start() {
	go p.loop()
}

// Stop 停止预览器
func (p *Previewer) Stop() {
	close(p.stopChan)
}

// Update 提交一次输入变化；渲染在静默期结束后才发生
func (p *Previewer) Update(opts RenderOptions, kind UpdateKind) {
	select {
	case p.updates <- previewUpdate{opts: opts, kind: kind}:
	case <-p.stopChan:
	}
}

// Results 返回渲染结果通道，始终只保留最新的一份
func (p *Previewer) Results() <-chan PreviewResult {
	return p.results
}

func (p *Previewer) loop() {
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	var pending *previewUpdate
	var cancelInflight context.CancelFunc

	for {
		select {
		case u := <-p.updates:
			pending = &u
			delay := p.contentDelay
			if u.kind == StyleUpdate {
				delay = p.styleDelay
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(delay)

		case <-timer.C:
			if pending == nil {
				continue
			}
			// 新一轮渲染开始前取消上一轮
			if cancelInflight != nil {
				cancelInflight()
			}
			ctx, cancel := context.WithCancel(context.Background())
			cancelInflight = cancel
			go p.renderOnce(ctx, pending.opts)
			pending = nil

		case <-p.stopChan:
			if cancelInflight != nil {
				cancelInflight()
			}
			return
		}
	}
}

func (p *Previewer) renderOnce(ctx context.Context, opts RenderOptions) {
	img, err := p.render(ctx, opts)
	if ctx.Err() != nil {
		// 已被更新的输入取代，丢弃结果
		return
	}

	res := PreviewResult{Options: opts, Image: img, Err: err}
	for {
		select {
		case p.results <- res:
			return
		case <-p.stopChan:
			return
		default:
			// 消费方还没取走旧结果，让位给最新的
			select {
			case <-p.results:
			default:
			}
		}
	}
}
