package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ByLCY/scribe/synth"
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Lay out a markup document without generating handwriting",
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := requestFromFlags(cmd)
		if err != nil {
			return err
		}
		debug, _ := cmd.Flags().GetString("debug")
		asJSON, _ := cmd.Flags().GetBool("json")

		orch, err := newOrchestrator()
		if err != nil {
			return err
		}
		res, err := orch.Preview(req)
		if err != nil {
			return fmt.Errorf("布局计算失败: %w", err)
		}
		if debug != "" {
			if err := writeDebug(res.Layout, debug); err != nil {
				return err
			}
		}
		if asJSON {
			out := *res
			out.Layout = nil
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}
		fmt.Printf("页数: %d  行数: %d  单词: %d  字符: %d\n", res.Pages, res.Lines, res.Words, res.Characters)
		return nil
	},
}

var templatesCmd = &cobra.Command{
	Use:   "templates [name]",
	Short: "List built-in markup templates or print one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			markup, err := synth.LoadTemplate(args[0])
			if err != nil {
				return err
			}
			fmt.Print(markup)
			return nil
		}
		for _, t := range synth.Templates() {
			fmt.Println(t.Name)
		}
		return nil
	},
}

func init() {
	addDocumentFlags(previewCmd)
	previewCmd.Flags().String("debug", "", "布局调试 JSON 输出路径")
	previewCmd.Flags().Bool("json", false, "以 JSON 输出统计")
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(templatesCmd)
}
