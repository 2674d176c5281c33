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
	"github.com/vilaca/taskomat/internal/webhook"
)

// Exit codes: 1 for configuration errors, 2 when issues were skipped
// (partial success; the applied mutations stay applied).
const (
	exitOK         = 0
	exitConfigErr  = 1
	exitIssueSkips = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	gitlabURL := flag.String("gitlab-url", "", "GitLab base URL (overrides GITLAB_URL)")
	project := flag.String("project", "", "GitLab project path or ID (overrides TASKOMAT_PROJECT)")
	rulesPath := flag.String("rules", "", "path to the JSONC rules file (overrides TASKOMAT_RULES)")
	issueIID := flag.Int("issue", 0, "reconcile a single issue instead of scanning")
	listenAddr := flag.String("listen", "", "serve the webhook endpoint on this address instead of running a batch")
	reportPath := flag.String("report", "", "write the JSON run report to this file")
	flag.Parse()

	logger := log.New(os.Stdout, "", log.LstdFlags)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Printf("Failed to load configuration: %v", err)
		return exitConfigErr
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
		return exitConfigErr
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
			return exitConfigErr
		}
	}

	reconciler := service.NewReconciler(buildClient(cfg, rules), rules.Workers, logger)

	if *listenAddr != "" {
		return serveWebhook(*listenAddr, &rules, reconciler, logger)
	}

	ctx := context.Background()
	engineCtx := rules.EngineContext(time.Now().UTC())

	if *issueIID > 0 {
		if err := reconciler.ReconcileOne(ctx, &engineCtx, *issueIID); err != nil {
			logger.Printf("Failed to reconcile issue #%d: %v", *issueIID, err)
			return exitIssueSkips
		}
		return exitOK
	}

	issues, err := reconciler.WorkSet(ctx, rules.Cutoff(engineCtx.Now))
	if err != nil {
		logger.Printf("Failed to build work-set: %v", err)
		return exitIssueSkips
	}
	logger.Printf("[Reconciler] Work-set contains %d issues (cutoff %dm)", len(issues), rules.CutoffMinutes)

	report := reconciler.Run(ctx, &engineCtx, issues)
	report.Log(logger)

	if *reportPath != "" {
		if err := report.WriteFile(*reportPath); err != nil {
			logger.Printf("Failed to write report: %v", err)
		}
	}

	if report.Failed() {
		return exitIssueSkips
	}
	return exitOK
}

// buildClient wires up the tracker client with the retry decorator.
// This is the composition root where dependencies are created and
// injected.
func buildClient(cfg *config.Config, rules config.Rules) api.Client {
	httpClient := &http.Client{
		Timeout: 30 * time.Second, // Set reasonable timeout for API requests
	}

	client := gitlab.NewClient(api.ClientConfig{
		BaseURL: cfg.GitLabURL,
		Token:   cfg.Token,
		Project: cfg.Project,
	}, httpClient)

	return api.NewRetryingClient(client, rules.RetryAttempts, api.DefaultRetryBackoff)
}

// serveWebhook runs the event-driven mode: each delivery reconciles
// exactly the issue it names, with a fresh rule context per event.
func serveWebhook(addr string, rules *config.Rules, reconciler *service.Reconciler, logger *log.Logger) int {
	handler := webhook.NewHandler(rules.WebhookSecret, logger, func(ctx context.Context, iid int) error {
		engineCtx := rules.EngineContext(time.Now().UTC())
		return reconciler.ReconcileOne(ctx, &engineCtx, iid)
	})

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	logger.Printf("[Webhook] Listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Printf("Server failed: %v", err)
		return exitConfigErr
	}
	return exitOK
}
