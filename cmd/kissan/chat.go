package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/kissan-ai/kissan/pkg/bus"
	"github.com/kissan-ai/kissan/pkg/chat"
	"github.com/kissan-ai/kissan/pkg/config"
	"github.com/kissan-ai/kissan/pkg/logger"
	"github.com/kissan-ai/kissan/pkg/metrics"
	"github.com/kissan-ai/kissan/pkg/providers"
	"github.com/kissan-ai/kissan/pkg/speech"
	"github.com/kissan-ai/kissan/pkg/state"
	"github.com/spf13/cobra"
)

func newChatCmd(configPath *string) *cobra.Command {
	var language string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive advisory chat",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, *configPath, language)
		},
	}
	cmd.Flags().StringVarP(&language, "lang", "l", "", "advice language (overrides config)")
	return cmd
}

func runChat(cmd *cobra.Command, configPath, language string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	if cfg.LogFile != "" {
		if err := logger.EnableFileLogging(cfg.LogFile); err != nil {
			return fmt.Errorf("enable file logging: %w", err)
		}
		defer logger.DisableFileLogging()
	}

	if language == "" {
		language = cfg.Chat.Language
	}
	lang, ok := providers.ParseLanguage(language)
	if !ok {
		return fmt.Errorf("unknown language %q", language)
	}

	advisor, err := providers.CreateAdvisor(cfg)
	if err != nil {
		return err
	}

	workspace := cfg.WorkspacePath()
	prefs := state.NewPreferences(workspace)
	tracker := metrics.NewTracker(workspace)

	var recognizer speech.Recognizer
	if cfg.Speech.Enabled {
		ws := speech.NewWSRecognizer(cfg.Speech.ServerURL, cfg.Speech.CaptureCommand, cfg.Speech.SampleRate)
		if !ws.Supported() {
			logger.Warn(fmt.Sprintf("Speech is enabled but capture command %q was not found; dictation is off", strings.Join(cfg.Speech.CaptureCommand, " ")))
		}
		recognizer = ws
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	defer logger.Info("Chat ended")

	loop := bus.NewLoop(64)
	go loop.Run(ctx)
	defer loop.Stop()

	session := chat.NewSession(loop, advisor, recognizer, chat.Options{
		Language:       lang,
		Timeout:        time.Duration(cfg.Advisor.TimeoutSeconds) * time.Second,
		NoticeDuration: time.Duration(cfg.Speech.NoticeSeconds) * time.Second,
		Tracker:        tracker,
	})

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		HistoryFile:     filepath.Join(workspace, "state", "chat_history"),
		HistoryLimit:    200,
		AutoComplete:    completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	logger.SetOutput(rl.Stderr())
	defer logger.SetOutput(cmd.ErrOrStderr())

	r := newREPL(session, prefs, rl.Stdout(), func(p string) {
		rl.SetPrompt(p)
		rl.Refresh()
	})
	if err := loop.Call(ctx, r.wire); err != nil {
		return err
	}

	logger.InfoCF("cli", "Chat started", map[string]interface{}{
		"advisor":  advisor.Name(),
		"language": string(lang),
		"speech":   recognizer != nil && recognizer.Supported(),
	})
	fmt.Fprintf(rl.Stdout(), "Kissan %s. Ask about your crops, or type /help.\n", Version)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if len(line) == 0 {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		if !r.handle(ctx, line) {
			return nil
		}
	}
}

func completer() *readline.PrefixCompleter {
	langs := make([]readline.PrefixCompleterInterface, 0, len(providers.Languages))
	for _, l := range providers.Languages {
		// Completion splits on spaces, so offer the first word only.
		name, _, _ := strings.Cut(string(l), " ")
		langs = append(langs, readline.PcItem(name))
	}
	return readline.NewPrefixCompleter(
		readline.PcItem("/image"),
		readline.PcItem("/noimage"),
		readline.PcItem("/mic"),
		readline.PcItem("/lang", langs...),
		readline.PcItem("/theme"),
		readline.PcItem("/draft"),
		readline.PcItem("/history"),
		readline.PcItem("/help"),
		readline.PcItem("/exit"),
	)
}
