package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"github.com/Kurz4K/RZXInfoBot/internal/account"
	"github.com/Kurz4K/RZXInfoBot/internal/config"
	"github.com/Kurz4K/RZXInfoBot/internal/files"
	"github.com/Kurz4K/RZXInfoBot/internal/review"
	"github.com/Kurz4K/RZXInfoBot/internal/service"
)

// MessageSender is the slice of the bot API the handlers use.
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

type Handler struct {
	Bot     MessageSender
	Service service.CheckServiceInterface
	Config  *config.Config
}

func NewHandler(bot MessageSender, svc service.CheckServiceInterface, cfg *config.Config) *Handler {
	return &Handler{
		Bot:     bot,
		Service: svc,
		Config:  cfg,
	}
}

// TrackUser registers the sender so broadcasts and admin uploads reach them.
func (h *Handler) TrackUser(ctx context.Context, user *tgbotapi.User) {
	if user == nil {
		return
	}
	if err := h.Service.RegisterUser(ctx, user.ID, user.UserName); err != nil {
		log.Printf("Failed to register user %d: %v", user.ID, err)
	}
}

// HandleStart - /start and /help
func (h *Handler) HandleStart(msg *tgbotapi.Message) {
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("MLBB", "game_mlbb"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("CODM (soon)", "game_codm_disabled"),
		),
	)
	reply := tgbotapi.NewMessage(msg.Chat.ID, "👋 Hello! Welcome to RZX's Check helper bot.\nSelect a game:")
	reply.ReplyMarkup = keyboard
	sendMessage(h.Bot, reply)
}

// HandleGameChoice routes the game selection buttons.
func (h *Handler) HandleGameChoice(callback *tgbotapi.CallbackQuery) {
	answerCallback(h.Bot, callback.ID)
	chatID := callback.Message.Chat.ID
	if callback.Data != "game_mlbb" {
		sendMessage(h.Bot, tgbotapi.NewEditMessageText(chatID, callback.Message.MessageID, "CODM coming soon."))
		return
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("▶️ Resume", "mlbb_resume"),
			tgbotapi.NewInlineKeyboardButtonData("📤 Send File", "mlbb_sendfile"),
			tgbotapi.NewInlineKeyboardButtonData("📂 Files", "mlbb_files"),
		),
	)
	sendMessage(h.Bot, tgbotapi.NewEditMessageTextAndMarkup(chatID, callback.Message.MessageID, "MLBB Menu:", keyboard))
}

// HandleMLBBMenu routes the MLBB menu buttons.
func (h *Handler) HandleMLBBMenu(callback *tgbotapi.CallbackQuery) {
	answerCallback(h.Bot, callback.ID)
	chatID := callback.Message.Chat.ID

	switch callback.Data {
	case "mlbb_sendfile":
		sendMessage(h.Bot, tgbotapi.NewMessage(chatID, "Send me a .txt file with account lines."))
	case "mlbb_resume", "mlbb_files":
		h.listFiles(chatID, callback.From.ID)
	}
}

func (h *Handler) listFiles(chatID, userID int64) {
	names, err := h.Service.ListFiles(userID)
	if err != nil {
		log.Printf("Failed to list files for %d: %v", userID, err)
		sendMessage(h.Bot, tgbotapi.NewMessage(chatID, "Could not read your files 😅"))
		return
	}
	if len(names) == 0 {
		sendMessage(h.Bot, tgbotapi.NewMessage(chatID, "No uploaded files."))
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, name := range names {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(name, "file|"+name)))
	}
	reply := tgbotapi.NewMessage(chatID, "Your files:")
	reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	sendMessage(h.Bot, reply)
}

// HandleFileSelect shows the action menu for a previously uploaded file.
func (h *Handler) HandleFileSelect(callback *tgbotapi.CallbackQuery) {
	answerCallback(h.Bot, callback.ID)
	_, name, _ := strings.Cut(callback.Data, "|")
	h.sendActionMenu(callback.Message.Chat.ID, name)
}

func (h *Handler) sendActionMenu(chatID int64, name string) {
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔎 Check", "action_check|"+name)),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🧹 Clean", "action_clean|"+name)),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🧩 Separate", "action_separate|"+name)),
	)
	reply := tgbotapi.NewMessage(chatID, "Choose action:")
	reply.ReplyMarkup = keyboard
	sendMessage(h.Bot, reply)
}

// HandleDocument saves an uploaded .txt file and offers the action menu.
func (h *Handler) HandleDocument(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	doc := msg.Document

	if !files.IsTxtFile(doc.FileName) {
		sendMessage(h.Bot, tgbotapi.NewMessage(chatID, "❌ Only .txt files allowed."))
		return
	}

	data, err := h.downloadFile(doc.FileID)
	if err != nil {
		log.Printf("Failed to download upload from %d: %v", msg.From.ID, err)
		sendMessage(h.Bot, tgbotapi.NewMessage(chatID, "Could not download the file, try again."))
		return
	}

	if _, err := h.Service.SaveUpload(msg.From.ID, doc.FileName, data); err != nil {
		if errors.Is(err, service.ErrQuotaExceeded) {
			sendMessage(h.Bot, tgbotapi.NewMessage(chatID,
				fmt.Sprintf("⚠️ Upload limit reached (%dMB).\nUse /deletedata to clear.", h.Config.MaxFileSizeMB)))
			return
		}
		log.Printf("Failed to save upload: %v", err)
		sendMessage(h.Bot, tgbotapi.NewMessage(chatID, "Could not save the file, try again."))
		return
	}

	h.sendActionMenu(chatID, doc.FileName)
}

func (h *Handler) downloadFile(fileID string) ([]byte, error) {
	url, err := h.Bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, err
	}
	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// HandleAction routes the Check / Clean / Separate buttons.
func (h *Handler) HandleAction(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	answerCallback(h.Bot, callback.ID)
	cmd, name, ok := strings.Cut(callback.Data, "|")
	if !ok {
		return
	}

	switch cmd {
	case "action_check":
		h.startCheck(ctx, callback.Message.Chat.ID, callback.From.ID, name)
	case "action_clean":
		h.doClean(ctx, callback.Message.Chat.ID, callback.From.ID, name)
	case "action_separate":
		h.separatePrompt(callback.Message.Chat.ID, name)
	}
}

func (h *Handler) startCheck(ctx context.Context, chatID, userID int64, name string) {
	view, err := h.Service.StartCheck(ctx, userID, name)
	if err != nil {
		if errors.Is(err, review.ErrNoValidAccounts) {
			sendMessage(h.Bot, tgbotapi.NewMessage(chatID, "❌ No valid accounts."))
			return
		}
		log.Printf("Failed to start check for %d: %v", userID, err)
		sendMessage(h.Bot, tgbotapi.NewMessage(chatID, "Could not start checking, try again."))
		return
	}
	h.sendAccountView(chatID, view)
}

func (h *Handler) sendAccountView(chatID int64, view *review.View) {
	reply := tgbotapi.NewMessage(chatID, formatAccountMessage(view))
	reply.ReplyMarkup = buildCheckKeyboard(view)
	sendMessage(h.Bot, reply)
}

// buildCheckKeyboard builds the navigation and label buttons, adding Extract
// on the last record.
func buildCheckKeyboard(view *review.View) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("◀️", "nav_prev"),
			tgbotapi.NewInlineKeyboardButtonData("▶️", "nav_next"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Good", "lbl_Good"),
			tgbotapi.NewInlineKeyboardButtonData("⚠️ Avg", "lbl_Average"),
			tgbotapi.NewInlineKeyboardButtonData("❌ Trash", "lbl_Trash"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❓ Incorrect", "lbl_Incorrect"),
			tgbotapi.NewInlineKeyboardButtonData("🚫 Banned", "lbl_Banned"),
		),
	}
	if view.Index == view.Total-1 {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📤 Extract", "action_extract")))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// HandleCheckCallback handles the buttons of the checking screen.
func (h *Handler) HandleCheckCallback(callback *tgbotapi.CallbackQuery) {
	answerCallback(h.Bot, callback.ID)
	chatID := callback.Message.Chat.ID
	userID := callback.From.ID
	data := callback.Data

	var (
		view *review.View
		err  error
	)
	switch {
	case data == "nav_next":
		view, err = h.Service.Navigate(userID, 1)
	case data == "nav_prev":
		view, err = h.Service.Navigate(userID, -1)
	case data == "action_extract":
		h.doExtract(chatID, userID)
		return
	case strings.HasPrefix(data, "lbl_"):
		view, err = h.Service.LabelCurrent(userID, strings.TrimPrefix(data, "lbl_"))
	default:
		return
	}

	if err != nil {
		if errors.Is(err, review.ErrSessionNotFound) {
			sendMessage(h.Bot, tgbotapi.NewMessage(chatID, "Session expired, pick a file and press Check again."))
			return
		}
		log.Printf("Check callback failed for %d: %v", userID, err)
		sendMessage(h.Bot, tgbotapi.NewMessage(chatID, "Something went wrong, try again."))
		return
	}

	// Replace the old screen so the chat keeps a single checking message.
	if _, err := h.Bot.Request(tgbotapi.NewDeleteMessage(chatID, callback.Message.MessageID)); err != nil {
		log.Printf("Failed to delete old check message: %v", err)
	}
	h.sendAccountView(chatID, view)
}

func (h *Handler) doExtract(chatID, userID int64) {
	paths, err := h.Service.ExportFiles(userID)
	if err != nil {
		if errors.Is(err, review.ErrSessionNotFound) {
			sendMessage(h.Bot, tgbotapi.NewMessage(chatID, "Session expired, pick a file and press Check again."))
			return
		}
		log.Printf("Export failed for %d: %v", userID, err)
		sendMessage(h.Bot, tgbotapi.NewMessage(chatID, "Could not collect label files."))
		return
	}
	if len(paths) == 0 {
		sendMessage(h.Bot, tgbotapi.NewMessage(chatID, "Nothing sorted yet."))
		return
	}
	for _, path := range paths {
		sendMessage(h.Bot, tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path)))
	}
}

func (h *Handler) doClean(ctx context.Context, chatID, userID int64, name string) {
	text, err := h.Service.Clean(ctx, userID, name)
	if err != nil {
		if errors.Is(err, review.ErrNoValidAccounts) {
			sendMessage(h.Bot, tgbotapi.NewMessage(chatID, "No valid lines"))
			return
		}
		log.Printf("Clean failed for %d: %v", userID, err)
		sendMessage(h.Bot, tgbotapi.NewMessage(chatID, "Could not clean the file, try again."))
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: "cleaned.txt", Bytes: []byte(text)})
	sendMessage(h.Bot, doc)
}

func (h *Handler) separatePrompt(chatID int64, name string) {
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✔️ Yes", "sep_yes|"+name),
			tgbotapi.NewInlineKeyboardButtonData("❌ No", "sep_no|"+name),
		),
	)
	reply := tgbotapi.NewMessage(chatID, "Clean format before separation?")
	reply.ReplyMarkup = keyboard
	sendMessage(h.Bot, reply)
}

// HandleSeparate runs the level separation and sends one file per bucket.
func (h *Handler) HandleSeparate(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	answerCallback(h.Bot, callback.ID)
	chatID := callback.Message.Chat.ID
	userID := callback.From.ID

	cmd, name, ok := strings.Cut(callback.Data, "|")
	if !ok {
		return
	}
	clean := cmd == "sep_yes"

	buckets, err := h.Service.Separate(ctx, userID, name, clean)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSeparationLimit):
			sendMessage(h.Bot, tgbotapi.NewMessage(chatID, "❌ You can only separate one file per day."))
		case errors.Is(err, review.ErrNoValidAccounts):
			sendMessage(h.Bot, tgbotapi.NewMessage(chatID, "No valid lines"))
		default:
			log.Printf("Separate failed for %d: %v", userID, err)
			sendMessage(h.Bot, tgbotapi.NewMessage(chatID, "Could not separate the file, try again."))
		}
		return
	}

	for _, key := range append(account.Buckets(), account.BucketUnclassified) {
		content, ok := buckets[key]
		if !ok {
			continue
		}
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
			Name:  string(key) + ".txt",
			Bytes: []byte(content),
		})
		sendMessage(h.Bot, doc)
	}
}

// HandleBroadcast - /broadcast <text>, admin only.
func (h *Handler) HandleBroadcast(ctx context.Context, msg *tgbotapi.Message) {
	if !h.Config.IsAdmin(msg.From.ID) {
		return
	}
	text := strings.TrimSpace(msg.CommandArguments())
	if text == "" {
		sendMessage(h.Bot, tgbotapi.NewMessage(msg.Chat.ID, "Usage: /broadcast <text>"))
		return
	}

	ids, err := h.Service.AllUserIDs(ctx)
	if err != nil {
		log.Printf("Broadcast failed to load users: %v", err)
		return
	}

	g := &errgroup.Group{}
	g.SetLimit(8)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if _, err := h.Bot.Send(tgbotapi.NewMessage(id, text)); err != nil {
				log.Printf("Broadcast to %d failed: %v", id, err)
			}
			return nil
		})
	}
	g.Wait()
	sendMessage(h.Bot, tgbotapi.NewMessage(msg.Chat.ID, fmt.Sprintf("Broadcast sent to %d users.", len(ids))))
}

// HandleSendHere binds the current chat as the target group for one label
// type, e.g. /sendheregood.
func (h *Handler) HandleSendHere(ctx context.Context, msg *tgbotapi.Message) {
	if !h.Config.IsAdmin(msg.From.ID) {
		return
	}
	label := strings.TrimPrefix(msg.Command(), "sendhere")
	if err := h.Service.BindGroup(ctx, label, msg.Chat.ID); err != nil {
		log.Printf("Failed to bind group for %q: %v", label, err)
		sendMessage(h.Bot, tgbotapi.NewMessage(msg.Chat.ID, "Could not bind this chat."))
		return
	}
	sendMessage(h.Bot, tgbotapi.NewMessage(msg.Chat.ID, fmt.Sprintf("This chat now receives %q files.", label)))
}

// HandleDeleteData - /deletedata wipes the calling user's stored files.
func (h *Handler) HandleDeleteData(msg *tgbotapi.Message) {
	if err := h.Service.DeleteUserData(msg.From.ID); err != nil {
		log.Printf("Failed to delete data for %d: %v", msg.From.ID, err)
		sendMessage(h.Bot, tgbotapi.NewMessage(msg.Chat.ID, "Could not delete your data, try again."))
		return
	}
	sendMessage(h.Bot, tgbotapi.NewMessage(msg.Chat.ID, "🧹 Your stored files were deleted."))
}

// HandleAdminUpload - /upload selector, admin only.
func (h *Handler) HandleAdminUpload(msg *tgbotapi.Message) {
	if !h.Config.IsAdmin(msg.From.ID) {
		return
	}
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Raw", "admin_up|Raw"),
			tgbotapi.NewInlineKeyboardButtonData("Separated", "admin_up|Separated"),
			tgbotapi.NewInlineKeyboardButtonData("Separated-Clean", "admin_up|Separated-Clean"),
		),
	)
	reply := tgbotapi.NewMessage(msg.Chat.ID, "Choose upload type:")
	reply.ReplyMarkup = keyboard
	sendMessage(h.Bot, reply)
}

// HandleAdminUploadCallback forwards every user's uploaded files to the group
// bound for the chosen type.
func (h *Handler) HandleAdminUploadCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if !h.Config.IsAdmin(callback.From.ID) {
		return
	}
	_, typ, ok := strings.Cut(callback.Data, "|")
	if !ok {
		return
	}
	label := strings.ToLower(typ)

	groupID, err := h.Service.GroupTarget(ctx, label)
	if err != nil || groupID == 0 {
		answerCallback(h.Bot, callback.ID)
		sendMessage(h.Bot, tgbotapi.NewMessage(callback.Message.Chat.ID,
			fmt.Sprintf("No group bound for %q. Use /sendhere%s there first.", typ, strings.ReplaceAll(label, "-", ""))))
		return
	}

	ids, err := h.Service.AllUserIDs(ctx)
	if err != nil {
		log.Printf("Admin upload failed to load users: %v", err)
		return
	}

	g := &errgroup.Group{}
	g.SetLimit(4)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			h.forwardUserFiles(ctx, groupID, id, typ)
			return nil
		})
	}
	g.Wait()

	if _, err := h.Bot.Request(tgbotapi.NewCallback(callback.ID, "Done.")); err != nil {
		log.Printf("Failed to answer admin upload callback: %v", err)
	}
}

func (h *Handler) forwardUserFiles(ctx context.Context, groupID, userID int64, typ string) {
	paths, err := h.Service.UploadedFiles(userID)
	if err != nil {
		log.Printf("Failed to list uploads for %d: %v", userID, err)
		return
	}
	username, err := h.Service.Username(ctx, userID)
	if err != nil || username == "" {
		username = "Unknown"
	}

	for _, path := range paths {
		lines, err := files.CountLines(path)
		if err != nil {
			log.Printf("Failed to count lines of %s: %v", path, err)
			continue
		}
		doc := tgbotapi.NewDocument(groupID, tgbotapi.FilePath(path))
		doc.Caption = fmt.Sprintf("📎 %s\n📤 File sent!\n\nType: %s\nLines: %d\nSize: %s\nFrom User: @%s",
			filepath.Base(path), typ, lines, files.ReadableSize(path), username)
		sendMessage(h.Bot, doc)
	}
}
