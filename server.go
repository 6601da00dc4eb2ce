package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"

	"github.com/meownoid/genre-covers/internal/cover"
)

type server struct {
	cfg      *Config
	renderer *cover.Renderer
	logger   *log.Logger
}

func newServer(cfg *Config, renderer *cover.Renderer, logger *log.Logger) *server {
	return &server{cfg: cfg, renderer: renderer, logger: logger}
}

func (s *server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests)
	r.MaxMultipartMemory = s.cfg.Server.MaxUploadMiB << 20

	api := r.Group("/api")
	{
		api.GET("/health", health)
		api.POST("/covers", s.coverHandler)
	}
	return r
}

func (s *server) run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *server) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.logger.Debug("request",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", c.Writer.Status(),
		"elapsed", time.Since(start).Round(time.Millisecond))
}

func health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// coverHandler renders the uploaded "image" with the "text" caption.
func (s *server) coverHandler(c *gin.Context) {
	limits := s.cfg.Server
	maxBytes := limits.MaxUploadMiB << 20
	if c.Request.ContentLength > maxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("upload exceeds %d MiB", limits.MaxUploadMiB)})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	if err := c.Request.ParseMultipartForm(maxBytes); err != nil {
		if bodyTooLarge(c.Request.Body, err) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("upload exceeds %d MiB", limits.MaxUploadMiB)})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	text := c.PostForm("text")
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}

	opts := s.cfg.Cover.Options(text)
	var err error
	if opts.Geometry.Width, err = formInt(c, "width", opts.Geometry.Width); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if opts.Geometry.Height, err = formInt(c, "height", opts.Geometry.Height); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := opts.Geometry.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if opts.Geometry.Width > limits.MaxDimension || opts.Geometry.Height > limits.MaxDimension {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("width and height must not exceed %d", limits.MaxDimension)})
		return
	}
	size, err := formInt(c, "fontsize", int(opts.Font.Size))
	if err != nil || size <= 0 || size > limits.MaxFontSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("fontsize must be between 1 and %d", limits.MaxFontSize)})
		return
	}
	opts.Font.Size = float64(size)

	format, contentType := imaging.PNG, "image/png"
	switch c.DefaultPostForm("format", "png") {
	case "png":
	case "jpeg", "jpg":
		format, contentType = imaging.JPEG, "image/jpeg"
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be png or jpeg"})
		return
	}

	fh, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	// Check the header before decoding so a small file cannot expand into
	// a huge pixel buffer.
	hdr, _, err := image.DecodeConfig(f)
	if err != nil {
		err = &cover.ImageLoadError{Path: fh.Filename, Err: err}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if hdr.Width > limits.MaxDimension || hdr.Height > limits.MaxDimension {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": fmt.Sprintf("image is %dx%d, limit is %d per side", hdr.Width, hdr.Height, limits.MaxDimension)})
		return
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	src, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		err = &cover.ImageLoadError{Path: fh.Filename, Err: err}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	out, err := s.renderer.RenderImage(src, opts)
	if err != nil {
		s.logger.Error("render failed", "caption", text, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	buf := new(bytes.Buffer)
	if err := cover.Encode(buf, out, format); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

// bodyTooLarge reports whether a form parse failed because the body hit its
// http.MaxBytesReader limit. The multipart parser does not always keep the
// error chain, but the limited reader repeats its error on the next read.
func bodyTooLarge(body io.Reader, err error) bool {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return true
	}
	_, err = body.Read(make([]byte, 1))
	return errors.As(err, &tooLarge)
}

func formInt(c *gin.Context, key string, def int) (int, error) {
	v, ok := c.GetPostForm(key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}
