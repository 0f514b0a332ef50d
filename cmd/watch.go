package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/steinik-group/rentscout/internal/orchestrator"
	"github.com/steinik-group/rentscout/internal/quota"
	"github.com/steinik-group/rentscout/pkg/telegram"
)

var watchSessionID int64

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Sweep continuously and take commands over Telegram",
	Long:  "Starts the sweep loop and, when a bot token is configured, polls Telegram for /sweep, /stop, /status and /quota commands from the admin chat.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Orch.Start(ctx, watchSessionID); err != nil {
			return err
		}
		zap.L().Info("watch started", zap.Int64("session_id", watchSessionID))

		if env.Telegram != nil && cfg.Telegram.AdminChatID != 0 {
			pollCommands(ctx, env)
		} else {
			<-ctx.Done()
		}

		env.Orch.Stop(watchSessionID)
		return nil
	},
}

// pollCommands long-polls getUpdates until the context is cancelled. Only
// messages from the admin chat are honored.
func pollCommands(ctx context.Context, env *pipelineEnv) {
	pollTimeout := time.Duration(cfg.Telegram.PollSecs) * time.Second
	if pollTimeout <= 0 {
		pollTimeout = 30 * time.Second
	}

	var offset int64
	for {
		if ctx.Err() != nil {
			return
		}
		updates, err := env.Telegram.GetUpdates(ctx, offset, pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			zap.L().Warn("telegram poll failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, u := range updates {
			offset = u.UpdateID + 1
			if u.Message == nil || u.Message.Chat.ID != cfg.Telegram.AdminChatID {
				continue
			}
			handleCommand(ctx, env, u.Message)
		}
	}
}

func handleCommand(ctx context.Context, env *pipelineEnv, msg *telegram.Message) {
	chatID := msg.Chat.ID
	fields := strings.Fields(msg.Text)
	if len(fields) == 0 {
		return
	}
	command := strings.ToLower(fields[0])

	reply := func(text string) {
		if err := env.Telegram.SendMessage(ctx, chatID, text); err != nil {
			zap.L().Warn("telegram reply failed", zap.Error(err))
		}
	}

	switch command {
	case "/sweep", "/start":
		if err := env.Orch.Start(ctx, watchSessionID); err != nil {
			if errors.Is(err, orchestrator.ErrAlreadyRunning) {
				reply("Цикл уже запущен.")
				return
			}
			reply("Ошибка запуска: " + err.Error())
			return
		}
		reply("Цикл запущен.")
	case "/stop":
		if env.Orch.Stop(watchSessionID) {
			reply("Останавливаюсь после текущей карточки.")
		} else {
			reply("Цикл не запущен.")
		}
	case "/status":
		state := env.Orch.State(watchSessionID)
		var b strings.Builder
		fmt.Fprintf(&b, "Состояние: %s\n", state)
		if stats, ok := env.Orch.Stats(watchSessionID); ok {
			fmt.Fprintf(&b, "Страниц: %d, карточек: %d, отправлено: %d, дублей: %d",
				stats.PagesScanned, stats.CardsSeen, stats.Emitted, stats.Duplicates)
		}
		reply(b.String())
	case "/quota":
		qc := quota.New(env.Store, cfg.Quota.DailyCap)
		remaining, err := qc.Remaining(ctx)
		if err != nil {
			reply("Ошибка чтения квоты: " + err.Error())
			return
		}
		reply(fmt.Sprintf("Квота на %s: осталось %d из %d.", qc.Day(), remaining, qc.Cap()))
	default:
		reply("Команды: /sweep, /stop, /status, /quota")
	}
}

func init() {
	watchCmd.Flags().Int64Var(&watchSessionID, "session", 1, "session id for the sweep loop")
	rootCmd.AddCommand(watchCmd)
}
