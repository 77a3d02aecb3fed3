package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/theirongolddev/roundup/internal/config"
	"github.com/theirongolddev/roundup/internal/logging"
	"github.com/theirongolddev/roundup/internal/roundup"
	"github.com/theirongolddev/roundup/internal/starling"
	"github.com/theirongolddev/roundup/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	flagToken     string
	flagBaseURL   string
	flagTimeout   time.Duration
	flagQuiet     bool
	flagLogFile   string
	flagLogLevel  string
	flagNoJournal bool
)

var rootCmd = &cobra.Command{
	Use:   "roundup",
	Short: "Round up a week of card spending into a savings goal",
	Long: "Sum the spare change of a week's card purchases and move it into a savings goal.\n" +
		"Run without a subcommand to open the interactive dashboard.",
	SilenceUsage: true,
	RunE:         runTUI,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "Access token (overrides $"+config.TokenEnv+" and config)")
	rootCmd.PersistentFlags().StringVar(&flagBaseURL, "base-url", "", "API base URL (default sandbox)")
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 0, "Per-request timeout (default from config)")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress progress output")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "Append JSON logs to this file")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&flagNoJournal, "no-journal", false, "Do not record transfers in the local journal")
}

// sessionEnv bundles everything a command needs to drive a session.
type sessionEnv struct {
	cfg     config.Config
	log     *zap.Logger
	journal *store.Journal
	session *roundup.Session
	closers []func() error
}

func (r *sessionEnv) Close() {
	_ = r.log.Sync()
	for i := len(r.closers) - 1; i >= 0; i-- {
		_ = r.closers[i]()
	}
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	if flagBaseURL != "" {
		cfg.API.BaseURL = flagBaseURL
	}
	if flagTimeout > 0 {
		cfg.API.TimeoutSec = int(flagTimeout.Round(time.Second) / time.Second)
		if cfg.API.TimeoutSec < 1 {
			cfg.API.TimeoutSec = 1
		}
	}
	if flagNoJournal {
		cfg.Journal.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// accessToken resolves the token from flag, environment, then config.
func accessToken(cfg config.Config) string {
	if flagToken != "" {
		return flagToken
	}
	return config.GetAccessToken(cfg)
}

// newLogger builds the command logger. Interactive commands must not log to
// the terminal, so without --log-file they get a nop logger.
func newLogger(interactive bool) (*zap.Logger, func() error, error) {
	if flagLogFile != "" {
		return logging.NewFile(flagLogFile, flagLogLevel)
	}
	if interactive {
		return logging.Nop(), func() error { return nil }, nil
	}
	l, err := logging.New(logging.Options{Level: flagLogLevel, Development: true})
	if err != nil {
		return nil, nil, err
	}
	return l, func() error { return nil }, nil
}

// connector adapts the API client to the session's token binding.
func connector(cfg config.Config, log *zap.Logger) roundup.Connector {
	return func(token string) (roundup.Gateway, error) {
		c, err := starling.NewClient(starling.Config{
			BaseURL:  cfg.API.BaseURL,
			ClientID: cfg.API.ClientID,
			Timeout:  cfg.Timeout(),
			Logger:   log,
		}, token)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// newSessionEnv wires config, logging, the journal and a fresh session.
func newSessionEnv(interactive bool) (*sessionEnv, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log, closeLog, err := newLogger(interactive)
	if err != nil {
		return nil, err
	}
	rt := &sessionEnv{cfg: cfg, log: log, closers: []func() error{closeLog}}

	sessCfg := roundup.Config{
		Connect:         connector(cfg, log),
		DefaultCurrency: cfg.Transfer.DefaultCurrency,
		Logger:          log,
	}

	if cfg.Journal.Enabled {
		j, err := store.Open(cfg.JournalPath(), log)
		if err != nil {
			// Transfers proceed without a journal.
			log.Warn("journal unavailable", zap.Error(err))
			if !flagQuiet && !interactive {
				fmt.Fprintf(os.Stderr, "  Journal unavailable: %v\n", err)
			}
		} else {
			rt.journal = j
			rt.closers = append(rt.closers, j.Close)
			sessCfg.Recorder = j
		}
	}

	rt.session = roundup.New(sessCfg)
	return rt, nil
}
