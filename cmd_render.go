package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ByLCY/scribe/layout"
	canvasrenderer "github.com/ByLCY/scribe/renderer/canvas"
	"github.com/ByLCY/scribe/synth"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render one markup document to a PDF or SVG file",
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := requestFromFlags(cmd)
		if err != nil {
			return err
		}
		output, _ := cmd.Flags().GetString("out")
		debug, _ := cmd.Flags().GetString("debug")

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		orch, err := newOrchestrator()
		if err != nil {
			return err
		}
		if debug != "" {
			preview, err := orch.Preview(req)
			if err != nil {
				return fmt.Errorf("布局计算失败: %w", err)
			}
			if err := writeDebug(preview.Layout, debug); err != nil {
				return err
			}
		}

		orch.Start(ctx)
		defer orch.Stop()
		if err := run(ctx, orch, req, output); err != nil {
			return err
		}
		fmt.Printf("已生成文档：%s\n", output)
		return nil
	},
}

func init() {
	renderCmd.Flags().String("out", "output/document.pdf", "输出路径，扩展名决定格式（.pdf/.svg）")
	addDocumentFlags(renderCmd)
	renderCmd.Flags().String("debug", "", "布局调试 JSON 输出路径")
	rootCmd.AddCommand(renderCmd)
}

// run submits the document, follows its progress and writes the artifact.
func run(ctx context.Context, orch *synth.Orchestrator, req synth.Request, outputPath string) error {
	if req.Format == "" {
		f, err := canvasrenderer.ParseFormat(strings.TrimPrefix(filepath.Ext(outputPath), "."))
		if err != nil {
			return err
		}
		req.Format = f
	}
	if req.Name == "" {
		req.Name = strings.TrimSuffix(filepath.Base(outputPath), filepath.Ext(outputPath))
	}

	snap, err := orch.Submit(req)
	if err != nil {
		return fmt.Errorf("提交任务失败: %w", err)
	}
	events, cancel, err := orch.Subscribe(snap.ID)
	if err != nil {
		return err
	}
	defer cancel()

	done := ctx.Done()
	for ev := range events {
		switch ev.Kind {
		case synth.EventProgress:
			fmt.Fprintf(os.Stderr, "\r生成笔迹 %d/%d", ev.Completed, ev.Total)
			if ev.Completed == ev.Total {
				fmt.Fprintln(os.Stderr)
			}
		case synth.EventFailed:
			return fmt.Errorf("生成失败（%s 阶段，偏移 %d）: %s", ev.Error.Stage, ev.Error.Offset, ev.Error.Message)
		case synth.EventCancelled:
			return fmt.Errorf("任务已取消")
		}
		select {
		case <-done:
			orch.Cancel(snap.ID)
			done = nil
		default:
		}
	}

	final, err := orch.Get(snap.ID)
	if err != nil {
		return err
	}
	if final.Status != synth.StatusCompleted || final.Result == nil {
		return fmt.Errorf("任务结束于 %s 状态", final.Status)
	}
	data, _, err := orch.Download(ctx, snap.ID, final.Result.Artifact)
	if err != nil {
		return fmt.Errorf("读取产物失败: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("写入文件失败: %w", err)
	}
	return nil
}

// addDocumentFlags registers the input flags shared by render and preview.
func addDocumentFlags(cmd *cobra.Command) {
	cmd.Flags().String("in", "", "标记文档路径")
	cmd.Flags().String("template", "", "使用内置模板代替 --in")
	cmd.Flags().String("data", "", "绑定到 ${...} 占位符的 JSON 数据")
	cmd.Flags().String("format", "", "输出格式 pdf 或 svg")
	cmd.Flags().String("title", "", "文档标题元数据")
}

func requestFromFlags(cmd *cobra.Command) (synth.Request, error) {
	input, _ := cmd.Flags().GetString("in")
	template, _ := cmd.Flags().GetString("template")
	dataJSON, _ := cmd.Flags().GetString("data")
	format, _ := cmd.Flags().GetString("format")
	title, _ := cmd.Flags().GetString("title")

	var markup string
	switch {
	case input != "":
		raw, err := os.ReadFile(input)
		if err != nil {
			return synth.Request{}, fmt.Errorf("无法打开标记文件 %s: %w", input, err)
		}
		markup = string(raw)
	case template != "":
		m, err := synth.LoadTemplate(template)
		if err != nil {
			return synth.Request{}, err
		}
		markup = m
	default:
		return synth.Request{}, fmt.Errorf("需要 --in 或 --template")
	}

	req := synth.Request{Markup: markup, Title: title}
	if format != "" {
		f, err := canvasrenderer.ParseFormat(format)
		if err != nil {
			return synth.Request{}, err
		}
		req.Format = f
	}
	if dataJSON != "" {
		var data any
		if err := json.Unmarshal([]byte(dataJSON), &data); err != nil {
			return synth.Request{}, fmt.Errorf("解析 data JSON 失败: %w", err)
		}
		req.Data = data
	}
	return req, nil
}

func writeDebug(doc *layout.Document, debugPath string) error {
	if err := os.MkdirAll(filepath.Dir(debugPath), 0o755); err != nil {
		return fmt.Errorf("创建调试目录失败: %w", err)
	}
	if err := layout.WriteDebugJSON(doc, debugPath); err != nil {
		return fmt.Errorf("输出调试 JSON 失败: %w", err)
	}
	return nil
}
