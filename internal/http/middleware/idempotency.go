package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	redisclient "github.com/yungbote/escrow-backend/internal/clients/redis"
	"github.com/yungbote/escrow-backend/internal/http/response"
	"github.com/yungbote/escrow-backend/internal/platform/ctxutil"
	"github.com/yungbote/escrow-backend/internal/platform/logger"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"
	maxIdempotencyKey    = 128
)

// Idempotency replays the stored response for a repeated POST carrying the
// same Idempotency-Key. Keys are scoped per caller. Without a store, or when
// the store fails, requests pass through unchanged.
func Idempotency(store redisclient.IdempotencyStore, log *logger.Logger) gin.HandlerFunc {
	if store == nil {
		return func(c *gin.Context) { c.Next() }
	}
	if log == nil {
		log = logger.Nop()
	}
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(headerIdempotencyKey))
		if key == "" || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKey {
			response.AbortError(c, http.StatusBadRequest, "invalid_idempotency_key", errors.New("Idempotency-Key too long"))
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			response.AbortError(c, http.StatusBadRequest, "invalid_body", err)
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		ctx := c.Request.Context()
		scoped := scopeKey(ctx, key)
		fp := fingerprint(c.Request.Method, c.Request.URL.Path, body)

		existing, claimed, err := store.Begin(ctx, scoped, fp)
		if err != nil {
			log.Warn("idempotency store unavailable; passing through", "error", err)
			c.Next()
			return
		}
		if !claimed {
			replay(c, existing, fp)
			return
		}

		rec := &recordingWriter{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		// Detached so a client disconnect does not lose the record.
		storeCtx := context.WithoutCancel(ctx)
		status := rec.Status()
		if status >= http.StatusInternalServerError {
			if err := store.Release(storeCtx, scoped); err != nil {
				log.Warn("idempotency release failed", "error", err)
			}
			return
		}
		if err := store.Complete(storeCtx, scoped, redisclient.IdempotencyRecord{
			Fingerprint: fp,
			Status:      status,
			ContentType: rec.Header().Get("Content-Type"),
			Body:        rec.body.Bytes(),
		}); err != nil {
			log.Warn("idempotency complete failed", "error", err)
		}
	}
}

func replay(c *gin.Context, rec *redisclient.IdempotencyRecord, fp string) {
	switch {
	case rec == nil:
		response.AbortError(c, http.StatusConflict, "request_in_progress", errors.New("request with this Idempotency-Key is in progress"))
	case rec.Fingerprint != fp:
		response.AbortError(c, http.StatusUnprocessableEntity, "idempotency_key_reused", errors.New("Idempotency-Key was used with a different request"))
	case !rec.Done:
		response.AbortError(c, http.StatusConflict, "request_in_progress", errors.New("request with this Idempotency-Key is in progress"))
	default:
		c.Header(headerReplayed, "true")
		ct := rec.ContentType
		if ct == "" {
			ct = "application/json; charset=utf-8"
		}
		c.Data(rec.Status, ct, rec.Body)
		c.Abort()
	}
}

func scopeKey(ctx context.Context, key string) string {
	owner := "anonymous"
	if a := ctxutil.GetActor(ctx); a != nil {
		owner = a.UserID.String()
	}
	return owner + ":" + key
}

func fingerprint(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

type recordingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *recordingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
