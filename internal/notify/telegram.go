// Package notify pushes finished reports to a Telegram chat. It is a
// send-only client: no polling, no command handling, just the report image
// and its text summary delivered to the configured chat.
package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
	"golang.org/x/time/rate"

	"netcomfort/pkg/logx"
)

type Config struct {
	Token  string
	ChatID int64
	// RatePerMin caps outgoing sends; zero means the default of 20/min,
	// which stays under Telegram's per-chat limits.
	RatePerMin int
}

type Notifier struct {
	bot     *tele.Bot
	chat    *tele.Chat
	limiter *rate.Limiter
	log     logx.Logger
}

func New(cfg Config, log logx.Logger) (*Notifier, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat id is empty")
	}
	b, err := tele.NewBot(tele.Settings{
		Token: cfg.Token,
		// Send-only: offline client construction, no getMe round-trip at
		// startup so a flaky network does not block the daemon.
		Offline: true,
	})
	if err != nil {
		return nil, err
	}
	perMin := cfg.RatePerMin
	if perMin <= 0 {
		perMin = 20
	}
	return &Notifier{
		bot:     b,
		chat:    &tele.Chat{ID: cfg.ChatID},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMin)), 1),
		log:     log,
	}, nil
}

// SendReport posts the rendered report image with the summary as caption.
// Telegram caps captions at 1024 characters; longer summaries are sent as a
// follow-up text message instead.
func (n *Notifier) SendReport(ctx context.Context, imagePath, summary string) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}

	photo := &tele.Photo{File: tele.FromDisk(imagePath)}
	caption := summary
	overflow := ""
	if len(caption) > 1024 {
		caption, overflow = "", summary
	}
	photo.Caption = caption

	if _, err := n.bot.Send(n.chat, photo); err != nil {
		return err
	}
	n.log.Info("report image sent", logx.String("path", imagePath))

	if overflow != "" {
		return n.SendText(ctx, overflow)
	}
	return nil
}

// SendText posts a plain text message, used for the summary overflow path
// and for failure alerts.
func (n *Notifier) SendText(ctx context.Context, text string) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := n.bot.Send(n.chat, text)
	return err
}
