package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/spf13/cobra"

	"gamemaster-agent/internal/cli"
	"gamemaster-agent/internal/config"
	"gamemaster-agent/internal/dice"
	"gamemaster-agent/internal/integrations/gemini"
	"gamemaster-agent/internal/integrations/openai"
	"gamemaster-agent/internal/integrations/paramstore"
	"gamemaster-agent/internal/session"
	"gamemaster-agent/internal/storage"
	"gamemaster-agent/internal/storage/dynamo"
	"gamemaster-agent/internal/storage/sqlite"
	"gamemaster-agent/internal/usecase"
)

var rootCmd = &cobra.Command{
	Use:   "gm",
	Short: "AI Game Master for durable tabletop campaigns",
	Long: `gm is an interactive AI Game Master for tabletop role-playing campaigns.

Every turn is durably recorded, so a campaign can be paused at any point and
resumed later with full fidelity. Configuration is read from GM_* environment
variables; see the project README for the full list.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore()

	retrying, err := storage.NewRetrying(store, cfg.RetryCount, cfg.RetryBackoff)
	if err != nil {
		return err
	}
	manager, err := session.NewManager(retrying)
	if err != nil {
		return err
	}

	agent, err := buildAgent(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create agent client: %w", err)
	}

	seed := cfg.ScenarioSeed
	if strings.TrimSpace(seed) == "" {
		seed = usecase.DefaultScenarioSeed
	}
	interp, err := usecase.New(manager, agent, dice.NewRoller(), seed, cfg.AgentTimeout)
	if err != nil {
		return err
	}

	repl, err := cli.New(interp, os.Stdin, os.Stdout)
	if err != nil {
		return err
	}

	slog.Info("starting game master",
		"provider", cfg.AgentProvider,
		"store", cfg.StoreBackend,
		"agent_timeout", cfg.AgentTimeout,
	)
	return repl.Run(ctx, cfg.ResumeSession)
}

// openStore builds the configured storage backend and returns a cleanup.
func openStore(ctx context.Context, cfg config.Config) (storage.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreDynamo:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("load AWS config: %w", err)
		}
		store, err := dynamo.New(awsdynamodb.NewFromConfig(awsCfg), cfg.DynamoTable)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	default:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	}
}

// buildAgent resolves the API key (env or SSM) and constructs the configured
// agent client.
func buildAgent(ctx context.Context, cfg config.Config) (usecase.Agent, error) {
	apiKey := cfg.AgentAPIKey
	if strings.TrimSpace(apiKey) == "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			return nil, err
		}
		apiKey, err = paramstore.APIKey(ctx, ssmClient, cfg.ParamPrefix)
		if err != nil {
			return nil, err
		}
	}

	switch cfg.AgentProvider {
	case config.ProviderOpenAI:
		model := cfg.AgentModel
		if strings.TrimSpace(model) == "" {
			model = "gpt-4o-mini"
		}
		opts := []openai.Option{}
		if strings.TrimSpace(cfg.AgentBaseURL) != "" {
			opts = append(opts, openai.WithBaseURL(cfg.AgentBaseURL))
		}
		return openai.NewClient(apiKey, model, opts...)
	default:
		return gemini.NewClient(ctx, apiKey, cfg.AgentModel)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("game master exited", "err", err)
		os.Exit(1)
	}
}
