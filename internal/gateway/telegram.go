package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

type telegramClient interface {
	Send(tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Options tune the Telegram transport.
type Options struct {
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	Debug         bool
}

// Telegram implements Gateway over the Bot API. Every call is bounded by the
// HTTP client timeout and throttled by a shared token bucket.
type Telegram struct {
	tg       telegramClient
	limiter  *rate.Limiter
	username string
}

// NewTelegram authorizes token against the Bot API.
func NewTelegram(token string, opts Options) (*Telegram, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	client := &http.Client{Timeout: opts.Timeout}
	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("connect bot api: %w", err)
	}
	api.Debug = opts.Debug

	t := newTelegram(api, opts)
	t.username = api.Self.UserName
	return t, nil
}

func newTelegram(tg telegramClient, opts Options) *Telegram {
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 25
	}
	if opts.Burst <= 0 {
		opts.Burst = 5
	}
	return &Telegram{
		tg:      tg,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.Burst),
	}
}

// Username is the bot account name.
func (t *Telegram) Username() string {
	return t.username
}

// SetWebhook registers url with Telegram.
func (t *Telegram) SetWebhook(url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("build webhook: %w", err)
	}
	if _, err := t.tg.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}

// SendMessage sends text with optional reply or inline markup and returns the message id.
func (t *Telegram) SendMessage(ctx context.Context, chatID int64, text string, markup interface{}) (int, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	sent, err := t.tg.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// EditMessage replaces the text and inline keyboard of a sent message.
func (t *Telegram) EditMessage(ctx context.Context, chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	var edit tgbotapi.EditMessageTextConfig
	if markup != nil {
		edit = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, *markup)
	} else {
		edit = tgbotapi.NewEditMessageText(chatID, messageID, text)
	}
	_, err := t.tg.Request(edit)
	return err
}

var errEmptyMedia = errors.New("media has neither file id nor data")

// SendMedia sends a photo or document by file id or uploaded bytes.
func (t *Telegram) SendMedia(ctx context.Context, chatID int64, media Media) error {
	var file tgbotapi.RequestFileData
	switch {
	case media.FileID != "":
		file = tgbotapi.FileID(media.FileID)
	case len(media.Data) > 0:
		file = tgbotapi.FileBytes{Name: media.Name, Bytes: media.Data}
	default:
		return errEmptyMedia
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}

	var c tgbotapi.Chattable
	switch media.Kind {
	case MediaPhoto:
		p := tgbotapi.NewPhoto(chatID, file)
		p.Caption = media.Caption
		c = p
	default:
		d := tgbotapi.NewDocument(chatID, file)
		d.Caption = media.Caption
		c = d
	}
	_, err := t.tg.Send(c)
	return err
}

// AnswerCallback stops the client spinner for a callback query.
func (t *Telegram) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if callbackID == "" {
		return nil
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := t.tg.Request(tgbotapi.NewCallback(callbackID, text))
	return err
}
