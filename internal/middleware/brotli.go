package middleware

import (
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

// brotliMinLength is the body size below which responses go out plain.
const brotliMinLength = 1024

// brotliWriter holds back the first bytes of a response until it knows
// whether the body is large enough to be worth compressing.
type brotliWriter struct {
	gin.ResponseWriter
	enc  *brotli.Writer
	held []byte
	on   bool
}

func (w *brotliWriter) Write(data []byte) (int, error) {
	if w.on {
		return w.enc.Write(data)
	}
	w.held = append(w.held, data...)
	if len(w.held) < brotliMinLength {
		return len(data), nil
	}

	w.on = true
	h := w.ResponseWriter.Header()
	h.Set("Content-Encoding", "br")
	h.Del("Content-Length")
	if _, err := w.enc.Write(w.held); err != nil {
		return 0, err
	}
	w.held = nil
	return len(data), nil
}

func (w *brotliWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// finish writes whatever is still held back, compressed or not.
func (w *brotliWriter) finish() error {
	if w.on {
		return w.enc.Close()
	}
	if len(w.held) == 0 {
		return nil
	}
	_, err := w.ResponseWriter.Write(w.held)
	return err
}

// Brotli compresses responses for clients that accept "br". WebSocket
// upgrades pass through untouched.
func Brotli() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isUpgrade(c.Request) || !acceptsBrotli(c.Request) {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")
		bw := &brotliWriter{
			ResponseWriter: c.Writer,
			enc:            brotli.NewWriterLevel(c.Writer, brotli.DefaultCompression),
		}
		c.Writer = bw
		defer func() {
			if err := bw.finish(); err != nil {
				_ = c.Error(err)
			}
		}()
		c.Next()
	}
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func acceptsBrotli(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		if strings.EqualFold(strings.TrimSpace(enc), "br") {
			return true
		}
	}
	return false
}
