package server

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tracker/internal/domain/errors"
	"tracker/internal/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	userKey         = "user"
)

func RequestID() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id := ctx.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.New().String()
		}
		ctx.Set(requestIDKey, id)
		ctx.Header(requestIDHeader, id)
		ctx.Next()
	}
}

func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		status := ctx.Writer.Status()
		event := logger.Info()
		switch {
		case status >= http.StatusInternalServerError:
			event = logger.Error()
		case status >= http.StatusBadRequest:
			event = logger.Warn()
		}
		event.
			Str("method", ctx.Request.Method).
			Str("path", ctx.FullPath()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("request_id", ctx.GetString(requestIDKey)).
			Str("client_ip", ctx.ClientIP()).
			Msg("request handled")
	}
}

// RateLimit rejects requests above the limiter's budget, keyed by client IP.
// Limiter failures let the request through.
func RateLimit(limiter ratelimit.Limiter, scope string, logger zerolog.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		res, err := limiter.Allow(ctx.Request.Context(), scope+":"+ctx.ClientIP())
		if err != nil {
			logger.Error().
				Err(err).
				Str("scope", scope).
				Msg("rate limiter unavailable")
			ctx.Next()
			return
		}
		if !res.Allowed {
			ctx.Header("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())+1))
			ctx.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": errors.ErrRateLimited.Error()})
			return
		}
		ctx.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		ctx.Next()
	}
}

type gzipBody struct {
	io.Reader
	gz   *gzip.Reader
	body io.Closer
}

func (b *gzipBody) Close() error {
	gzErr := b.gz.Close()
	if err := b.body.Close(); err != nil {
		return err
	}
	return gzErr
}

func GzipRequestDecompress() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !strings.Contains(strings.ToLower(ctx.GetHeader("Content-Encoding")), "gzip") {
			ctx.Next()
			return
		}

		gz, err := gzip.NewReader(ctx.Request.Body)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": errors.ErrInvalidGzipRequest.Error()})
			return
		}
		ctx.Request.Body = &gzipBody{Reader: gz, gz: gz, body: ctx.Request.Body}
		ctx.Request.Header.Del("Content-Encoding")
		ctx.Request.Header.Del("Content-Length")
		ctx.Request.ContentLength = -1
		ctx.Next()
	}
}

const minCompressSize = 1024

var compressibleTypes = []string{
	"application/json",
	"application/xml",
	"application/javascript",
	"text/",
}

func isCompressibleContentType(ct string) bool {
	ct = strings.ToLower(ct)
	if ct == "" || strings.HasPrefix(ct, "text/event-stream") {
		return false
	}
	for _, prefix := range compressibleTypes {
		if strings.HasPrefix(ct, prefix) {
			return true
		}
	}
	return false
}

// gzipWriter buffers the first minCompressSize bytes and only switches to
// gzip once the body is known to be large enough and compressible.
type gzipWriter struct {
	gin.ResponseWriter
	buf   bytes.Buffer
	gz    *gzip.Writer
	plain bool
}

func (w *gzipWriter) Write(data []byte) (int, error) {
	if w.plain {
		return w.ResponseWriter.Write(data)
	}
	if w.gz != nil {
		n, err := w.gz.Write(data)
		if err != nil {
			return n, errors.ErrGzipCompressionFailed
		}
		return n, nil
	}

	w.buf.Write(data)
	if w.buf.Len() < minCompressSize {
		return len(data), nil
	}
	if !w.mayCompress() {
		w.plain = true
		if _, err := w.ResponseWriter.Write(w.buf.Bytes()); err != nil {
			return 0, err
		}
		w.buf.Reset()
		return len(data), nil
	}

	w.Header().Del("Content-Length")
	w.Header().Set("Content-Encoding", "gzip")
	w.gz = gzip.NewWriter(w.ResponseWriter)
	if _, err := w.gz.Write(w.buf.Bytes()); err != nil {
		return 0, errors.ErrGzipCompressionFailed
	}
	w.buf.Reset()
	return len(data), nil
}

func (w *gzipWriter) WriteString(s string) (int, error) { return w.Write([]byte(s)) }

func (w *gzipWriter) mayCompress() bool {
	switch w.ResponseWriter.Status() {
	case http.StatusNoContent, http.StatusNotModified, http.StatusPartialContent:
		return false
	}
	if w.Header().Get("Content-Encoding") != "" {
		return false
	}
	return isCompressibleContentType(w.Header().Get("Content-Type"))
}

func (w *gzipWriter) finish() error {
	if w.gz != nil {
		return w.gz.Close()
	}
	if w.buf.Len() > 0 {
		_, err := w.ResponseWriter.Write(w.buf.Bytes())
		w.buf.Reset()
		return err
	}
	return nil
}

func GzipResponseCompress() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.Method == http.MethodHead ||
			!strings.Contains(strings.ToLower(ctx.GetHeader("Accept-Encoding")), "gzip") {
			ctx.Next()
			return
		}

		vary := ctx.Writer.Header().Get("Vary")
		if !strings.Contains(vary, "Accept-Encoding") {
			ctx.Writer.Header().Add("Vary", "Accept-Encoding")
		}

		gw := &gzipWriter{ResponseWriter: ctx.Writer}
		ctx.Writer = gw
		ctx.Next()

		if err := gw.finish(); err != nil {
			_ = ctx.Error(errors.ErrGzipCompressionFailed)
		}
	}
}
