// Command assess walks the ear symptom assessment in the terminal and,
// with OPENAI_API_KEY set, generates the summary at the end.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"earcheck/internal/config"
	"earcheck/internal/core"
	"earcheck/internal/inference"
	"earcheck/internal/llm"
	"earcheck/internal/logger"
	"earcheck/pkg"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "assess:", err)
		os.Exit(1)
	}
}

func run() error {
	audienceFlag := flag.String("audience", "patient", "wording to use: patient or clinician")
	rulesPath := flag.String("rules", "", "rules YAML file (defaults to the built-in rules)")
	flag.Parse()

	audience, err := pkg.ParseAudience(*audienceFlag)
	if err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	engine, err := inference.Default()
	if err != nil {
		return err
	}
	if *rulesPath != "" {
		rules, err := inference.LoadRules(*rulesPath)
		if err != nil {
			return err
		}
		if engine, err = inference.New(engine.Catalog(), rules); err != nil {
			return err
		}
	}

	// Log lines would tear the terminal UI.
	log := logger.Nop()
	var summarizer *core.Summarizer
	if cfg.GenerationEnabled() {
		client := llm.NewOpenAIClient(llm.Config{
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.OpenAIModel,
			BaseURL:     cfg.OpenAIBaseURL,
			Temperature: cfg.Temperature,
		})
		summarizer = core.NewSummarizer(client, cfg.AttemptTimeout, log)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m, err := newAssessModel(ctx, engine, audience, summarizer)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(m).Run()
	return err
}
