package qr

import (
	"encoding/base64"
	"fmt"
	"image/color"
	"regexp"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// RenderOptions 控制二维码图像输出
type RenderOptions struct {
	Content         string
	Size            int    // 像素宽度
	ForegroundColor string // #RRGGBB
	BackgroundColor string // #RRGGBB
	ErrorCorrection string // L / M / Q / H
	Margin          int    // 静区模块数，0 表示不留静区
}

// Image 渲染结果：PNG 为 base64 data URL，SVG 为完整标记文本
type Image struct {
	PNG string `json:"png"`
	SVG string `json:"svg"`
}

var hexColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Render 把编码后的内容渲染为 PNG 和 SVG
func Render(opts RenderOptions) (*Image, error) {
	if opts.Content == "" {
		return nil, fmt.Errorf("渲染内容不能为空")
	}

	normalizeRenderOptions(&opts)

	if opts.Size < 64 || opts.Size > 2048 {
		return nil, fmt.Errorf("像素宽度超出范围: %d", opts.Size)
	}

	level, err := errorCorrectionLevel(opts.ErrorCorrection)
	if err != nil {
		return nil, err
	}

	fg, err := parseHexColor(opts.ForegroundColor)
	if err != nil {
		return nil, err
	}
	bg, err := parseHexColor(opts.BackgroundColor)
	if err != nil {
		return nil, err
	}

	code, err := qrcode.New(opts.Content, level)
	if err != nil {
		return nil, fmt.Errorf("二维码编码失败: %w", err)
	}
	code.ForegroundColor = fg
	code.BackgroundColor = bg
	code.DisableBorder = opts.Margin == 0

	png, err := code.PNG(opts.Size)
	if err != nil {
		return nil, fmt.Errorf("PNG 渲染失败: %w", err)
	}

	return &Image{
		PNG: "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		SVG: renderSVG(code.Bitmap(), opts),
	}, nil
}

func normalizeRenderOptions(opts *RenderOptions) {
	if opts.Size == 0 {
		opts.Size = 256
	}
	if opts.ForegroundColor == "" {
		opts.ForegroundColor = "#000000"
	}
	if opts.BackgroundColor == "" {
		opts.BackgroundColor = "#FFFFFF"
	}
	if opts.ErrorCorrection == "" {
		opts.ErrorCorrection = "M"
	}
}

func errorCorrectionLevel(level string) (qrcode.RecoveryLevel, error) {
	switch level {
	case "L":
		return qrcode.Low, nil
	case "M":
		return qrcode.Medium, nil
	case "Q":
		return qrcode.High, nil
	case "H":
		return qrcode.Highest, nil
	default:
		return 0, fmt.Errorf("无效的纠错等级: %s", level)
	}
}

func parseHexColor(s string) (color.Color, error) {
	if !hexColorPattern.MatchString(s) {
		return nil, fmt.Errorf("无效的颜色值: %s", s)
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(strings.ToLower(s), "#%02x%02x%02x", &r, &g, &b); err != nil {
		return nil, fmt.Errorf("无效的颜色值: %s", s)
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

// renderSVG 由模块位图生成矢量图。位图已包含静区。
func renderSVG(bitmap [][]bool, opts RenderOptions) string {
	modules := len(bitmap)

	var b strings.Builder
	fmt.Fprintf(&b,
		`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" shape-rendering="crispEdges">`,
		opts.Size, opts.Size, modules, modules)
	fmt.Fprintf(&b, `<rect width="%d" height="%d" fill="%s"/>`, modules, modules, opts.BackgroundColor)

	// 同一行里连续的深色模块合并为一个矩形
	for y, row := range bitmap {
		runStart := -1
		for x := 0; x <= len(row); x++ {
			dark := x < len(row) && row[x]
			if dark && runStart < 0 {
				runStart = x
			}
			if !dark && runStart >= 0 {
				fmt.Fprintf(&b, `<rect x="%d" y="%d" width="%d" height="1" fill="%s"/>`,
					runStart, y, x-runStart, opts.ForegroundColor)
				runStart = -1
			}
		}
	}

	b.WriteString("</svg>")
	return b.String()
}
