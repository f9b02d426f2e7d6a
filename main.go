// Command scribe composes handwritten documents from markup.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ByLCY/scribe/artifact"
	"github.com/ByLCY/scribe/config"
	"github.com/ByLCY/scribe/strokecache"
	"github.com/ByLCY/scribe/synth"
)

var (
	cfg *config.Config
	log *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "scribe",
	Short: "Handwriting document composition engine",
	Long: `scribe parses a bracket-tag markup document, lays it out on pages with
mirrored margins, generates handwriting strokes for every word and renders
the result as PDF or SVG.

Settings come from defaults, an optional YAML file (--config) and SCRIBE_*
environment variables; a .env file in the working directory is loaded first.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		path, _ := cmd.Flags().GetString("config")
		c, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = c
		log = c.Logger(os.Stderr)
		slog.SetDefault(log)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "YAML 配置文件路径")
}

// newOrchestrator wires the configured generator, cache, store and style
// sheet into a task orchestrator. The caller starts and stops it.
func newOrchestrator() (*synth.Orchestrator, error) {
	store, err := artifact.Open(cfg.ArtifactConfig())
	if err != nil {
		return nil, fmt.Errorf("初始化产物存储失败: %w", err)
	}
	sheet, err := cfg.Sheet()
	if err != nil {
		return nil, fmt.Errorf("加载样式表失败: %w", err)
	}
	cache := strokecache.New(cfg.CacheConfig())
	return synth.New(cfg.Synth(), cfg.NewGenerator(), log,
		synth.WithStore(store),
		synth.WithCache(cache),
		synth.WithSheet(sheet),
	), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
