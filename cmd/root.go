package cmd

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/resume-evaluator/internal/evaluator"
)

const (
	app       = "resume-evaluator"
	envPrefix = "RESUME_EVALUATOR"
)

type Config struct {
	AI         *AIConfig         `mapstructure:"ai"`
	Evaluation *EvaluationConfig `mapstructure:"evaluation"`
}

type AIConfig struct {
	Provider          string        `mapstructure:"provider"`
	Model             string        `mapstructure:"model"`
	Temperature       float64       `mapstructure:"temperature"`
	RequestTimeout    time.Duration `mapstructure:"request-timeout"`
	RequestsPerMinute int           `mapstructure:"requests-per-minute"`
	MaxLogLength      int           `mapstructure:"max-log-length"`
	Gemini            *GeminiConfig `mapstructure:"gemini"`
	OpenAI            *OpenAIConfig `mapstructure:"openai"`
	Retry             *RetryConfig  `mapstructure:"retry"`
}

type GeminiConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
}

type OpenAIConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	BaseURL    string `mapstructure:"base-url"`
}

type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max-attempts"`
	Multiplier  float64       `mapstructure:"multiplier"`
	MinWait     time.Duration `mapstructure:"min-wait"`
	MaxWait     time.Duration `mapstructure:"max-wait"`
}

type EvaluationConfig struct {
	ParallelExtraction bool `mapstructure:"parallel-extraction"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "resume-evaluator scores how well a resume fits a job description using a language model",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ExitCode maps an error returned by Execute to the process exit code.
// Problems the user has to fix in the input exit with 2.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if evaluator.Classify(err) == evaluator.KindInput {
		return 2
	}
	return 1
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is resume-evaluator.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.model", "")
	v.SetDefault("ai.temperature", 0.2)
	v.SetDefault("ai.request-timeout", 60*time.Second)
	v.SetDefault("ai.requests-per-minute", 0)
	v.SetDefault("ai.max-log-length", 200)
	v.SetDefault("ai.gemini.api-key", "")
	v.SetDefault("ai.gemini.api-key-file", "")
	v.SetDefault("ai.openai.api-key", "")
	v.SetDefault("ai.openai.api-key-file", "")
	v.SetDefault("ai.openai.base-url", "")
	v.SetDefault("ai.retry.max-attempts", 3)
	v.SetDefault("ai.retry.multiplier", 1.0)
	v.SetDefault("ai.retry.min-wait", 2*time.Second)
	v.SetDefault("ai.retry.max-wait", 10*time.Second)
	v.SetDefault("evaluation.parallel-extraction", false)
}

func initConfig() {
	// Only evaluate needs provider settings; schema and version run without them.
	if evaluateCmd.CalledAs() == "" {
		return
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("loading .env file: %v", err)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// An explicit --config must exist; the default one is optional.
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
