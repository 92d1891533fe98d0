package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"conductor/internal/agent"
	"conductor/internal/agent/domain"
	"conductor/internal/agent/ports"
	"conductor/internal/approval"
	"conductor/internal/config"
	"conductor/internal/events"
	"conductor/internal/orchestrator"
	"conductor/internal/scheduler"
	"conductor/internal/task"
	"conductor/internal/toolregistry"
	"conductor/internal/tools"
	"conductor/internal/utils"
)

func newRunCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a task list through the orchestrator",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTasks(cmd, v)
		},
	}

	cmd.Flags().String("tasks", "", "path to task list (YAML)")
	cmd.Flags().Bool("dry-run", false, "use the built-in scripted model instead of a real provider")
	cmd.Flags().Bool("auto-approve", false, "approve every held plan without prompting")
	cmd.Flags().Bool("auto-reject", false, "reject every held plan without prompting")
	cmd.Flags().Int("max-concurrent", 0, "override scheduler concurrency")
	cmd.Flags().Int("max-iterations", 0, "override loop iteration budget")
	_ = cmd.MarkFlagRequired("tasks")

	_ = v.BindPFlag("scheduler.max_concurrent", cmd.Flags().Lookup("max-concurrent"))
	_ = v.BindPFlag("loop.max_iterations", cmd.Flags().Lookup("max-iterations"))
	return cmd
}

func runTasks(cmd *cobra.Command, v *viper.Viper) error {
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}

	tasksPath, _ := cmd.Flags().GetString("tasks")
	inputs, err := loadTaskList(tasksPath)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no tasks in %s", tasksPath)
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	autoApprove, _ := cmd.Flags().GetBool("auto-approve")
	autoReject, _ := cmd.Flags().GetBool("auto-reject")
	if autoApprove && autoReject {
		return fmt.Errorf("--auto-approve and --auto-reject are mutually exclusive")
	}

	logger := utils.NewComponentLogger("cli")
	printer := newPrinter(cmd.OutOrStdout())
	bus := events.NewBus()

	registry := task.NewRegistry(task.RegistryConfig{
		AutonomyPolicy: cfg.AutonomyPolicy(),
		Bus:            bus,
		Logger:         logger,
	})

	sched := scheduler.New(scheduler.Options{
		MaxConcurrent:   cfg.Scheduler.MaxConcurrent,
		Cooldown:        cfg.Scheduler.Cooldown,
		PriorityWeights: cfg.SchedulerPriorityWeights(),
		TypeWeights:     cfg.SchedulerTypeWeights(),
	}, nil, logger)

	gate := approval.NewGate(approval.Config{
		Handler:          approvalHandler(printer, autoApprove, autoReject),
		MaxAutoApprovals: cfg.Approval.MaxAutoApprovals,
		Bus:              bus,
		Logger:           logger,
	})

	toolReg, err := buildToolRegistry(cfg)
	if err != nil {
		return err
	}

	var metrics *orchestrator.Metrics
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		metrics = orchestrator.MustNewMetrics(reg)
		go serveMetrics(cfg.Metrics.Addr, reg, logger)
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Registry:  registry,
		Scheduler: sched,
		Gate:      gate,
		Bus:       bus,
		Metrics:   metrics,
		Handlers:  printer.handlers(),
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	llm, err := buildLLMClient(dryRun)
	if err != nil {
		return err
	}

	engine := domain.NewEngine(domain.Config{
		MaxIterations: cfg.Loop.MaxIterations,
		Temperature:   cfg.Loop.Temperature,
		MaxTokens:     cfg.Loop.MaxTokens,
		Logger:        logger,
	})

	for _, role := range task.Roles() {
		roleAgent, err := agent.NewLoopAgent(agent.LoopAgentConfig{
			Role:     role,
			Engine:   engine,
			LLM:      llm,
			Tools:    toolReg,
			Listener: orch.AgentListener(),
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		if err := orch.Bind(role, roleAgent); err != nil {
			return err
		}
	}

	created := make([]string, 0, len(inputs))
	for _, input := range inputs {
		t, err := orch.CreateTask(input)
		if err != nil {
			return fmt.Errorf("task %q: %w", input.Title, err)
		}
		created = append(created, t.ID)
	}
	printer.queued(len(created))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	if err := orch.RunQueue(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	if gate.AutoApprovalsExceeded() {
		logger.Warn("auto-approval budget exhausted during run")
	}

	printer.summary(registry, created, time.Since(start))
	return nil
}

func loadTaskList(path string) ([]task.CreateInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task list: %w", err)
	}
	var doc struct {
		Tasks []task.CreateInput `yaml:"tasks"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse task list %s: %w", path, err)
	}
	return doc.Tasks, nil
}

func buildToolRegistry(cfg *config.Config) (ports.ToolRegistry, error) {
	base := toolregistry.New()
	if err := tools.RegisterFileTools(base, "."); err != nil {
		return nil, err
	}
	if !cfg.Cache.Enabled {
		return base, nil
	}
	cacheCfg := toolregistry.DefaultCacheConfig()
	cacheCfg.MaxSize = cfg.Cache.MaxSize
	cacheCfg.TTL = cfg.Cache.TTL
	return toolregistry.NewCachedRegistry(base, cacheCfg), nil
}

func buildLLMClient(dryRun bool) (ports.LLMClient, error) {
	if dryRun {
		return newScriptedClient(), nil
	}
	// Real providers plug in here once configured; keep the failure mode
	// explicit rather than silently running scripted output.
	return nil, fmt.Errorf("no model provider configured, use --dry-run")
}

func serveMetrics(addr string, reg *prometheus.Registry, logger ports.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	logger.Info("metrics listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server: %v", err)
	}
}
