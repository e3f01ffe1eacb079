package telegram

import (
	"context"
	"log"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Kurz4K/RZXInfoBot/internal/config"
	"github.com/Kurz4K/RZXInfoBot/internal/files"
	"github.com/Kurz4K/RZXInfoBot/internal/labels"
	"github.com/Kurz4K/RZXInfoBot/internal/repair"
	"github.com/Kurz4K/RZXInfoBot/internal/review"
	"github.com/Kurz4K/RZXInfoBot/internal/service"
	"github.com/Kurz4K/RZXInfoBot/internal/storage"
)

const uploadRetention = 7 * 24 * time.Hour

type Bot struct {
	bot     *tgbotapi.BotAPI
	handler *Handler
	files   *files.Manager
}

func NewBot() (*Bot, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}

	store, err := storage.New(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	if err := store.Ping(); err != nil {
		log.Fatalf("cannot ping DB: %v", err)
	}
	log.Println("✅ Connected to Postgres")

	var fixer repair.Fixer
	if cfg.GeminiAPIKey != "" {
		fixer, err = repair.NewGeminiFixer(context.Background(), cfg.GeminiAPIKey, "")
		if err != nil {
			log.Printf("Warning: repair disabled: %v", err)
			fixer = nil
		}
	} else {
		log.Println("Warning: GEMINI_API_KEY not set, malformed lines will be dropped")
	}

	fm := files.NewManager(cfg.BaseDir)
	labelStore := labels.NewStore(cfg.BaseDir)
	sessions := review.NewManager(labelStore)

	svc := service.New(fm, store, sessions, fixer, cfg.MaxFileSizeMB, cfg.DailySeparationLimit)
	handler := NewHandler(botAPI, svc, cfg)

	return &Bot{
		bot:     botAPI,
		handler: handler,
		files:   fm,
	}, nil
}

func (b *Bot) Start() {
	go b.cleanupLoop()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.bot.GetUpdatesChan(u)

	log.Println("Bot started!")

	ctx := context.Background()
	for update := range updates {
		if update.Message != nil {
			b.routeMessage(ctx, update.Message)
		} else if update.CallbackQuery != nil {
			b.routeCallback(ctx, update.CallbackQuery)
		}
	}
}

func (b *Bot) routeMessage(ctx context.Context, msg *tgbotapi.Message) {
	b.handler.TrackUser(ctx, msg.From)

	if msg.Document != nil {
		b.handler.HandleDocument(msg)
		return
	}

	cmd := msg.Command()
	switch {
	case cmd == "start" || cmd == "help":
		b.handler.HandleStart(msg)
	case cmd == "broadcast":
		b.handler.HandleBroadcast(ctx, msg)
	case cmd == "deletedata":
		b.handler.HandleDeleteData(msg)
	case cmd == "upload":
		b.handler.HandleAdminUpload(msg)
	case strings.HasPrefix(cmd, "sendhere"):
		b.handler.HandleSendHere(ctx, msg)
	}
}

func (b *Bot) routeCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	b.handler.TrackUser(ctx, callback.From)
	data := callback.Data

	switch {
	case strings.HasPrefix(data, "game_"):
		b.handler.HandleGameChoice(callback)
	case strings.HasPrefix(data, "mlbb_"):
		b.handler.HandleMLBBMenu(callback)
	case strings.HasPrefix(data, "file|"):
		b.handler.HandleFileSelect(callback)
	case strings.HasPrefix(data, "nav_"), strings.HasPrefix(data, "lbl_"), data == "action_extract":
		b.handler.HandleCheckCallback(callback)
	case strings.HasPrefix(data, "action_"):
		b.handler.HandleAction(ctx, callback)
	case strings.HasPrefix(data, "sep_"):
		b.handler.HandleSeparate(ctx, callback)
	case strings.HasPrefix(data, "admin_up|"):
		b.handler.HandleAdminUploadCallback(ctx, callback)
	default:
		answerCallback(b.bot, callback.ID)
	}
}

// cleanupLoop sweeps stale uploads once a day.
func (b *Bot) cleanupLoop() {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		if err := b.files.DeleteInactiveFiles(uploadRetention); err != nil {
			log.Printf("Upload cleanup failed: %v", err)
		}
	}
}
