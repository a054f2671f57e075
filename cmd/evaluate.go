package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/resume-evaluator/internal/ai"
	"github.com/spigell/resume-evaluator/internal/ai/gemini"
	"github.com/spigell/resume-evaluator/internal/ai/openai"
	"github.com/spigell/resume-evaluator/internal/evaluator"
	"github.com/spigell/resume-evaluator/internal/logger"
	"github.com/spigell/resume-evaluator/internal/pdftext"
	"github.com/spigell/resume-evaluator/internal/retry"
	"github.com/spigell/resume-evaluator/internal/secrets"
)

const stdinPath = "-"

var pdfMagic = []byte("%PDF-")

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate how well a resume fits a job description",
	Long: `Extracts a structured candidate profile from the resume (PDF or text),
a structured job description from the posting, and prints the scored fit
evaluation as JSON on stdout. Logs go to stderr.`,
	Example: `  resume-evaluator evaluate --resume cv.pdf --job posting.txt
  cat posting.txt | resume-evaluator evaluate --resume cv.md --job -`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return evaluate(cmd)
	},
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringP("resume", "r", "", "resume file: .pdf is parsed as PDF, anything else as text; - reads stdin")
	evaluateCmd.Flags().String("job", "", "job description text file; - reads stdin. Prompted for when omitted on a terminal")
	evaluateCmd.Flags().String("provider", "", "generation provider: gemini or openai")
	evaluateCmd.Flags().String("model", "", "model name, provider default when empty")
	evaluateCmd.Flags().Bool("parallel", false, "extract the candidate profile and the job description concurrently")

	viper.BindPFlag("ai.provider", evaluateCmd.Flags().Lookup("provider"))
	viper.BindPFlag("ai.model", evaluateCmd.Flags().Lookup("model"))
	viper.BindPFlag("evaluation.parallel-extraction", evaluateCmd.Flags().Lookup("parallel"))
}

func evaluate(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync() //nolint:errcheck

	config, err := getConfig()
	if err != nil {
		return fmt.Errorf("getting a config: %w", err)
	}
	if config == nil || config.AI == nil {
		return errors.New("ai configuration is required")
	}

	logger.Info("starting the resume-evaluator", zap.String("version", version))

	input, err := readInput(cmd)
	if err != nil {
		return err
	}

	transport, err := newTransport(ctx, config.AI)
	if err != nil {
		return err
	}

	client := ai.NewClient(transport, clientConfig(config.AI), logger)

	pipelineCfg := evaluator.Config{}
	if config.Evaluation != nil {
		pipelineCfg.ParallelExtraction = config.Evaluation.ParallelExtraction
	}

	pipeline := evaluator.New(client, pdftext.New(logger), logger, pipelineCfg)

	result, err := pipeline.Evaluate(ctx, input)
	if err != nil {
		return err
	}

	pretty, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal evaluation result: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(pretty))
	return err
}

func clientConfig(cfg *AIConfig) ai.ClientConfig {
	temperature := float32(cfg.Temperature)

	policy := retry.DefaultPolicy
	if cfg.Retry != nil {
		if cfg.Retry.MaxAttempts > 0 {
			policy.MaxAttempts = cfg.Retry.MaxAttempts
		}
		if cfg.Retry.Multiplier > 0 {
			policy.Multiplier = cfg.Retry.Multiplier
		}
		if cfg.Retry.MinWait > 0 {
			policy.MinWait = cfg.Retry.MinWait
		}
		if cfg.Retry.MaxWait > 0 {
			policy.MaxWait = cfg.Retry.MaxWait
		}
	}

	return ai.ClientConfig{
		Model:             cfg.Model,
		Temperature:       &temperature,
		RequestTimeout:    cfg.RequestTimeout,
		RequestsPerMinute: cfg.RequestsPerMinute,
		MaxLogLength:      cfg.MaxLogLength,
		Retry:             policy,
	}
}

func newTransport(ctx context.Context, cfg *AIConfig) (ai.Transport, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))

	switch provider {
	case "", gemini.Provider:
		src := secrets.Source{Name: "gemini api key", Env: []string{"GEMINI_API_KEY"}}
		if cfg.Gemini != nil {
			src.File, src.Value = cfg.Gemini.APIKeyFile, cfg.Gemini.APIKey
		}
		apiKey, err := secrets.Load(src)
		if err != nil {
			return nil, fmt.Errorf("%w (or ai.gemini.api-key-file in the config)", err)
		}
		return gemini.New(ctx, apiKey)

	case openai.Provider:
		src := secrets.Source{Name: "openai api key", Env: []string{"OPENAI_API_KEY"}}
		baseURL := ""
		if cfg.OpenAI != nil {
			src.File, src.Value = cfg.OpenAI.APIKeyFile, cfg.OpenAI.APIKey
			baseURL = cfg.OpenAI.BaseURL
		}
		apiKey, err := secrets.Load(src)
		if err != nil {
			return nil, fmt.Errorf("%w (or ai.openai.api-key-file in the config)", err)
		}
		return openai.New(apiKey, baseURL, cfg.RequestTimeout)

	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
}

func readInput(cmd *cobra.Command) (evaluator.Input, error) {
	resumePath := strings.TrimSpace(cmd.Flag("resume").Value.String())
	jobPath := strings.TrimSpace(cmd.Flag("job").Value.String())

	if resumePath == "" {
		return evaluator.Input{}, fmt.Errorf("%w: --resume is required", evaluator.ErrInvalidInput)
	}

	if jobPath == "" {
		if !isTerminal(os.Stdin) {
			return evaluator.Input{}, fmt.Errorf("%w: --job is required", evaluator.ErrInvalidInput)
		}
		path, err := promptJobPath()
		if err != nil {
			return evaluator.Input{}, fmt.Errorf("%w: reading job description path: %v", evaluator.ErrInvalidInput, err)
		}
		jobPath = path
	}

	if resumePath == stdinPath && jobPath == stdinPath {
		return evaluator.Input{}, fmt.Errorf("%w: only one of --resume and --job can read stdin", evaluator.ErrInvalidInput)
	}

	stdin := cmd.InOrStdin()

	resume, err := readSource(resumePath, stdin)
	if err != nil {
		return evaluator.Input{}, fmt.Errorf("%w: reading resume: %v", evaluator.ErrInvalidInput, err)
	}

	job, err := readSource(jobPath, stdin)
	if err != nil {
		return evaluator.Input{}, fmt.Errorf("%w: reading job description: %v", evaluator.ErrInvalidInput, err)
	}

	input := evaluator.Input{JobDescriptionText: string(job)}
	if isPDF(resumePath, resume) {
		input.ResumePDF = resume
	} else {
		input.ResumeText = string(resume)
	}

	return input, nil
}

func readSource(path string, stdin io.Reader) ([]byte, error) {
	if path == stdinPath {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func isPDF(path string, data []byte) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf") || bytes.HasPrefix(data, pdfMagic)
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func promptJobPath() (string, error) {
	prompt := promptui.Prompt{
		Label: "Job description file",
		Validate: func(input string) error {
			info, err := os.Stat(strings.TrimSpace(input))
			if err != nil {
				return err
			}
			if info.IsDir() {
				return errors.New("path is a directory")
			}
			return nil
		},
	}

	path, err := prompt.Run()
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}
