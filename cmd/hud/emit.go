package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/agenthud/internal/client"
	"github.com/zulandar/agenthud/internal/config"
)

func newEmitCmd() *cobra.Command {
	var (
		configPath string
		name       string
	)

	cmd := &cobra.Command{
		Use:   "emit",
		Short: "Publish content to the observer's viewer",
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to Agent HUD config file")
	cmd.PersistentFlags().StringVar(&name, "name", "shell", "agent name shown to the observer")

	withAgent := func(cmd *cobra.Command, fn func(a *client.Agent) (string, error)) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()
		agent, err := connectAgent(ctx, cfg, name, newLogger(cfg.Log, cmd.ErrOrStderr()))
		if err != nil {
			return err
		}
		defer agent.Close()
		id, err := fn(agent)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Emitted %s\n", id)
		return nil
	}

	var mdTitle string
	markdown := &cobra.Command{
		Use:   "markdown <file|->",
		Short: "Emit a markdown document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readSource(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			return withAgent(cmd, func(a *client.Agent) (string, error) {
				return a.EmitMarkdown(body, mdTitle)
			})
		},
	}
	markdown.Flags().StringVar(&mdTitle, "title", "", "title (default \"Markdown Content\")")

	var codeTitle, language, description string
	code := &cobra.Command{
		Use:   "code <file|->",
		Short: "Emit a code snippet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readSource(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			lang := language
			if lang == "" {
				lang = languageFromPath(args[0])
			}
			return withAgent(cmd, func(a *client.Agent) (string, error) {
				return a.EmitCode(body, lang, codeTitle, description)
			})
		},
	}
	code.Flags().StringVar(&codeTitle, "title", "", "title (default \"<Language> Code\")")
	code.Flags().StringVar(&language, "language", "", "language (guessed from the file extension)")
	code.Flags().StringVar(&description, "description", "", "short description")

	var imgTitle, caption string
	image := &cobra.Command{
		Use:   "image <url>",
		Short: "Emit an image by URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(cmd, func(a *client.Agent) (string, error) {
				return a.EmitImage(args[0], imgTitle, caption)
			})
		},
	}
	image.Flags().StringVar(&imgTitle, "title", "", "title (default \"Image\")")
	image.Flags().StringVar(&caption, "caption", "", "caption")

	cmd.AddCommand(markdown, code, image)
	return cmd
}

// readSource reads a file, or stdin when path is "-".
func readSource(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

var extLanguages = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".ts":   "typescript",
	".rs":   "rust",
	".java": "java",
	".rb":   "ruby",
	".sh":   "bash",
	".sql":  "sql",
	".yaml": "yaml",
	".yml":  "yaml",
	".json": "json",
	".c":    "c",
	".cpp":  "cpp",
}

func languageFromPath(path string) string {
	return extLanguages[strings.ToLower(filepath.Ext(path))]
}
