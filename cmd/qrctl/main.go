package main

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"qrcode-platform/internal/qr"
	"qrcode-platform/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// qrctl 是单机使用的二维码工具：编码、渲染、并把记录保存在本地 JSON 文件里，
// 不依赖服务端和账号。
func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	var storePath string

	root := &cobra.Command{
		Use:   "qrctl",
		Short: "本地二维码生成与管理工具",
	}
	root.PersistentFlags().StringVar(&storePath, "store", "./data/qr_codes.json", "本地存储文件路径")

	newStore := func() *store.LocalStore {
		return store.NewLocalStore(storePath, logger.Sugar())
	}

	root.AddCommand(
		newEncodeCmd(),
		newSaveCmd(newStore),
		newListCmd(newStore),
		newRenderCmd(newStore),
		newRemoveCmd(newStore),
		newWatchCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func decodeArgs(kind, data string) (qr.Payload, error) {
	payload, err := qr.DecodePayload(qr.Kind(kind), json.RawMessage(data))
	if err != nil {
		return nil, err
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	return payload, nil
}

// encode 只做编码，把将写入码面的文本打到标准输出
func newEncodeCmd() *cobra.Command {
	var kind, data string

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "编码内容并输出码面文本",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := decodeArgs(kind, data)
			if err != nil {
				return err
			}
			fmt.Println(payload.Encode())
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "type", "url", "内容类型 (url/text/wifi/vcard/email/phone/sms)")
	cmd.Flags().StringVar(&data, "data", "", "JSON 格式的表单内容")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

// save 编码后写入本地存储
func newSaveCmd(newStore func() *store.LocalStore) *cobra.Command {
	var kind, data, name, fg, bg, level string
	var size int

	cmd := &cobra.Command{
		Use:   "save",
		Short: "编码并保存到本地存储",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := decodeArgs(kind, data)
			if err != nil {
				return err
			}

			rec := newStore().Insert(store.LocalQRCode{
				Name:            name,
				Type:            kind,
				Content:         payload.Encode(),
				ForegroundColor: fg,
				BackgroundColor: bg,
				Size:            size,
				ErrorCorrection: level,
			})
			if rec == nil {
				return fmt.Errorf("保存失败")
			}
			fmt.Println(rec.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "type", "url", "内容类型")
	cmd.Flags().StringVar(&data, "data", "", "JSON 格式的表单内容")
	cmd.Flags().StringVar(&name, "name", "", "显示名称")
	cmd.Flags().StringVar(&fg, "fg", "#000000", "前景色")
	cmd.Flags().StringVar(&bg, "bg", "#FFFFFF", "背景色")
	cmd.Flags().StringVar(&level, "level", "M", "纠错等级 (L/M/Q/H)")
	cmd.Flags().IntVar(&size, "size", 256, "像素宽度")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func newListCmd(newStore func() *store.LocalStore) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "列出本地存储的记录",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, rec := range newStore().List() {
				fmt.Printf("%s\t%s\t%s\t%s\n", rec.ID, rec.Type, rec.Name, rec.CreatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}

// render 把已保存的记录渲染成 PNG 或 SVG 文件
func newRenderCmd(newStore func() *store.LocalStore) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "render <id>",
		Short: "渲染已保存的记录到文件",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec := newStore().Get(args[0])
			if rec == nil {
				return fmt.Errorf("记录不存在: %s", args[0])
			}

			img, err := qr.Render(qr.RenderOptions{
				Content:         rec.Content,
				Size:            rec.Size,
				ForegroundColor: rec.ForegroundColor,
				BackgroundColor: rec.BackgroundColor,
				ErrorCorrection: rec.ErrorCorrection,
				Margin:          2,
			})
			if err != nil {
				return err
			}

			if strings.HasSuffix(out, ".svg") {
				return os.WriteFile(out, []byte(img.SVG), 0o644)
			}
			png, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(img.PNG, "data:image/png;base64,"))
			if err != nil {
				return err
			}
			return os.WriteFile(out, png, 0o644)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "qrcode.png", "输出文件 (.png 或 .svg)")
	return cmd
}

func newRemoveCmd(newStore func() *store.LocalStore) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "删除本地记录",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !newStore().Remove(args[0]) {
				return fmt.Errorf("记录不存在: %s", args[0])
			}
			return nil
		},
	}
}

// watch 从标准输入逐行读取 URL，去抖后把最新一行渲染到输出文件。
// 快速连续的输入只触发一次渲染。
func newWatchCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "从标准输入实时预览，输入会被去抖合并",
		RunE: func(cmd *cobra.Command, args []string) error {
			previewer := qr.NewPreviewer()
			previewer.Start()

			quit := make(chan struct{})
			done := make(chan struct{})
			go func() {
				defer close(done)
				for {
					select {
					case res := <-previewer.Results():
						if res.Err != nil {
							fmt.Fprintln(os.Stderr, "渲染失败:", res.Err)
							continue
						}
						png, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(res.Image.PNG, "data:image/png;base64,"))
						if err == nil {
							err = os.WriteFile(out, png, 0o644)
						}
						if err != nil {
							fmt.Fprintln(os.Stderr, "写入失败:", err)
							continue
						}
						fmt.Println("已更新:", res.Options.Content)
					case <-quit:
						return
					}
				}
			}()

			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				previewer.Update(qr.RenderOptions{
					Content: (qr.URLPayload{URL: line}).Encode(),
					Margin:  2,
				}, qr.ContentUpdate)
			}

			// 给最后一次去抖渲染留出时间
			time.Sleep(500 * time.Millisecond)
			previewer.Stop()
			close(quit)
			<-done
			return scanner.Err()
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "preview.png", "预览输出文件")
	return cmd
}
