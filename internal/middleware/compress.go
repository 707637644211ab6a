package middleware

import (
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

// compressMinLength is the body size below which responses are sent as is.
const compressMinLength = 1024

// brotliWriter holds the body back until it is large enough to be worth
// compressing, then streams the rest through the encoder.
type brotliWriter struct {
	gin.ResponseWriter
	enc     *brotli.Writer
	pending []byte
	active  bool
}

func (w *brotliWriter) Write(data []byte) (int, error) {
	if w.active {
		return w.enc.Write(data)
	}
	w.pending = append(w.pending, data...)
	if len(w.pending) < compressMinLength {
		return len(data), nil
	}

	h := w.ResponseWriter.Header()
	if h.Get("Content-Encoding") != "" {
		// Handler already encoded the body.
		_, err := w.ResponseWriter.Write(w.pending)
		w.pending = nil
		return len(data), err
	}
	h.Set("Content-Encoding", "br")
	h.Del("Content-Length")
	w.active = true
	w.enc = brotli.NewWriterLevel(w.ResponseWriter, brotli.DefaultCompression)
	_, err := w.enc.Write(w.pending)
	w.pending = nil
	return len(data), err
}

func (w *brotliWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func (w *brotliWriter) finish() error {
	if w.active {
		return w.enc.Close()
	}
	if len(w.pending) == 0 {
		return nil
	}
	_, err := w.ResponseWriter.Write(w.pending)
	return err
}

// Compress brotli-encodes large JSON responses for clients that accept br.
// Log scans and exam listings are the main beneficiaries.
func Compress() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") || !acceptsBrotli(c.Request) {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")
		bw := &brotliWriter{ResponseWriter: c.Writer}
		c.Writer = bw
		c.Next()

		if err := bw.finish(); err != nil {
			_ = c.Error(err)
		}
	}
}

func acceptsBrotli(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(enc), ";")
		if strings.EqualFold(name, "br") {
			return true
		}
	}
	return false
}
