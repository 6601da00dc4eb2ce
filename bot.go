package main

import (
	"bytes"
	"context"
	cryptorand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"

	"github.com/meownoid/genre-covers/internal/cover"
)

// stopTimeout bounds how long Run waits for workers after cancellation.
const stopTimeout = 10 * time.Second

type Bot struct {
	api     *tgbotapi.BotAPI
	cfg     *Config
	updates tgbotapi.UpdatesChannel
	errors  chan error
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  *log.Logger
	client  *http.Client

	whitelist map[int64]struct{}
	blacklist map[int64]struct{}

	renderer *cover.Renderer

	randMu sync.Mutex
	rand   *rand.Rand
}

func NewBot(cfg *Config, renderer *cover.Renderer, logger *log.Logger) (*Bot, error) {
	if cfg.Bot.Workers <= 0 {
		return nil, errors.New("number of workers must be positive")
	}

	api, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		return nil, err
	}
	api.Debug = cfg.Debug

	ctx, cancel := context.WithCancel(context.Background())

	return &Bot{
		api:    api,
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
		client: &http.Client{Timeout: 30 * time.Second},

		whitelist: idSet(cfg.Bot.Whitelist),
		blacklist: idSet(cfg.Bot.Blacklist),

		renderer: renderer,
		rand:     newRand(),
	}, nil
}

func idSet(ids []int64) map[int64]struct{} {
	if ids == nil {
		return nil
	}
	set := make(map[int64]struct{}, len(ids))
	for _, x := range ids {
		set[x] = struct{}{}
	}
	return set
}

func newRand() *rand.Rand {
	var b [8]byte
	_, err := cryptorand.Read(b[:])
	if err != nil {
		panic("cannot seed math/rand package with cryptographically secure random number generator")
	}
	return rand.New(rand.NewSource(int64(binary.LittleEndian.Uint64(b[:]))))
}

// Run starts the bot and blocks until ctx is cancelled or a worker fails.
func (bot *Bot) Run(ctx context.Context) error {
	done, err := bot.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start bot: %w", err)
	}

	select {
	case <-ctx.Done():
		bot.logger.Info("stopping bot", "timeout", stopTimeout)
		select {
		case err = <-done:
		case <-time.After(stopTimeout):
			return fmt.Errorf("bot did not stop after %v", stopTimeout)
		}
	case err = <-done:
	}

	if err != nil {
		bot.logger.Error("bot stopped with error", "err", err)
		return err
	}
	bot.logger.Info("bot stopped without error")
	return nil
}

func (bot *Bot) Start(ctx context.Context) (chan error, error) {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60

	updates, err := bot.api.GetUpdatesChan(updateConfig)
	if err != nil {
		return nil, err
	}

	bot.updates = updates
	bot.errors = make(chan error, bot.cfg.Bot.Workers)

	for i := 0; i < bot.cfg.Bot.Workers; i++ {
		bot.wg.Add(1)
		go bot.worker()
	}

	done := make(chan error)

	go func() {
		select {
		case <-ctx.Done():
		case err := <-bot.errors:
			done <- err
		}

		bot.cancel()
		bot.wg.Wait()
		bot.api.StopReceivingUpdates()
		close(bot.errors)
		close(done)
	}()

	return done, nil
}

func (bot *Bot) worker() {
	defer bot.wg.Done()

loop:
	for {
		select {
		case update := <-bot.updates:
			err := bot.processUpdate(update)
			if err != nil {
				bot.errors <- err
				break loop
			}
		case <-bot.ctx.Done():
			break loop
		}
	}
}

func (bot *Bot) processUpdate(update tgbotapi.Update) error {
	if update.Message == nil {
		bot.logger.Debug("message is missing")
		return nil
	}

	msg := update.Message
	fromID := msg.Chat.ID

	if !bot.isAllowed(fromID) {
		bot.logger.Debug("from id is not allowed", "id", fromID)
		return nil
	}

	if msg.Photo == nil {
		bot.logger.Debug("no photo")
		return nil
	}

	caption, ok := bot.captionFor(msg)
	if !ok {
		return nil
	}

	// Get photo with maximum width
	maxWidth := 0
	fileID := ""
	for _, photo := range *msg.Photo {
		if photo.Width > maxWidth {
			maxWidth = photo.Width
			fileID = photo.FileID
		}
	}

	file, err := bot.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return err
	}
	fileURL := file.Link(bot.cfg.Bot.Token)

	bot.logger.Debug("downloading file", "file", file.FilePath)

	resp, err := bot.client.Get(fileURL)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	img, err := imaging.Decode(resp.Body, imaging.AutoOrientation(true))
	if err != nil {
		// A broken upload only affects its own reply.
		bot.logger.Warn("cannot decode photo", "chat", fromID, "err", err)
		return nil
	}

	out, err := bot.renderer.RenderImage(img, bot.cfg.Cover.Options(caption))
	if err != nil {
		// A missing configured font breaks every reply, so stop the bot.
		var fontErr *cover.FontLoadError
		if errors.As(err, &fontErr) {
			return fmt.Errorf("render cover: %w", err)
		}
		bot.logger.Warn("cannot render cover", "caption", caption, "err", err)
		return nil
	}

	buf := new(bytes.Buffer)
	if err := cover.Encode(buf, out, imaging.JPEG); err != nil {
		return err
	}

	bot.logger.Debug("encoded cover", "caption", caption, "bytes", buf.Len())

	_, err = bot.api.Send(tgbotapi.NewPhotoUpload(
		fromID,
		tgbotapi.FileReader{
			Name:   cover.SanitizeToFilename(caption) + ".jpeg",
			Reader: buf,
			Size:   int64(buf.Len()),
		},
	))

	bot.logger.Debug("sent photo", "chat", fromID)

	return err
}

func (bot *Bot) isAllowed(id int64) bool {
	if bot.blacklist != nil {
		if _, ok := bot.blacklist[id]; ok {
			return false
		}
	}

	if bot.whitelist != nil {
		_, ok := bot.whitelist[id]
		return ok
	}

	return true
}
