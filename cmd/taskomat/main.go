package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/vilaca/taskomat/internal/api"
	"github.com/vilaca/taskomat/internal/api/gitlab"
	"github.com/vilaca/taskomat/internal/config"
	"github.com/vilaca/taskomat/internal/service"
)

func main() {
	os.Exit(run())
}

func run() int {
	gitlabURL := flag.String("gitlab-url", "", "GitLab base URL (overrides GITLAB_URL)")
	project := flag.String("project", "", "GitLab project path or ID (overrides TASKOMAT_PROJECT)")
	rulesPath := flag.String("rules", "", "path to the JSONC rules file (overrides TASKOMAT_RULES)")
	collectionDir := flag.String("collection-dir", "", "directory with YAML task files")
	flag.Parse()

	logger := log.New(os.Stdout, "", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Printf("Failed to load configuration: %v", err)
		return 1
	}
	if *gitlabURL != "" {
		cfg.GitLabURL = *gitlabURL
	}
	if *project != "" {
		cfg.Project = *project
	}
	if *rulesPath != "" {
		cfg.RulesPath = *rulesPath
	}
	if cfg.Project == "" {
		logger.Printf("No project configured. Set TASKOMAT_PROJECT or pass --project")
		return 1
	}
	if *collectionDir == "" {
		logger.Printf("No collection directory given. Pass --collection-dir")
		return 1
	}

	rules := config.DefaultRules()
	if cfg.RulesPath != "" {
		var warnings []string
		rules, warnings, err = config.LoadRules(cfg.RulesPath)
		for _, w := range warnings {
			logger.Printf("WARNING: %s", w)
		}
		if err != nil {
			logger.Printf("Failed to load rules: %v", err)
			return 1
		}
	}

	tasks, err := service.LoadCollection(*collectionDir)
	if err != nil {
		logger.Printf("Failed to load collection: %v", err)
		return 1
	}
	logger.Printf("[Collector] Loaded %d tasks from %s", len(tasks), *collectionDir)

	httpClient := &http.Client{Timeout: 30 * time.Second}
	client := api.NewRetryingClient(gitlab.NewClient(api.ClientConfig{
		BaseURL: cfg.GitLabURL,
		Token:   cfg.Token,
		Project: cfg.Project,
	}, httpClient), rules.RetryAttempts, api.DefaultRetryBackoff)

	collector := service.NewCollector(client, rules.BotLabel, logger)
	if err := collector.Sync(context.Background(), tasks, time.Now().UTC()); err != nil {
		logger.Printf("Collection sync failed: %v", err)
		return 2
	}

	return 0
}
