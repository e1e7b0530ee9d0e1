package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	idempotencyPrefix    = "idempotency:v2:"
	inProgressMarker     = "__in_progress__"
	replayedHeader       = "Idempotent-Replayed"
	cacheOpTimeout       = 2 * time.Second
)

// storedResponse is what a completed request leaves behind. Fingerprint binds
// the key to one method, path and body. Unknown marks a server-side failure
// after which the write may or may not have committed.
type storedResponse struct {
	Fingerprint string            `json:"fingerprint"`
	Status      int               `json:"status"`
	Body        string            `json:"body"`
	Headers     map[string]string `json:"headers"`
	Unknown     bool              `json:"unknown,omitempty"`
}

type idempotencyCache struct {
	client *redis.Client
	ttl    time.Duration
}

func (s idempotencyCache) load(key string) (storedResponse, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	raw, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return storedResponse{}, false, nil
	}
	if err != nil {
		return storedResponse{}, false, err
	}
	if raw == inProgressMarker {
		return storedResponse{}, true, nil
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return storedResponse{}, true, err
	}
	return stored, true, nil
}

// reserve claims the key. It reports false when another request got there first.
func (s idempotencyCache) reserve(key string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	return s.client.SetNX(ctx, key, inProgressMarker, s.ttl).Result()
}

func (s idempotencyCache) save(key string, stored storedResponse) error {
	payload, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	return s.client.Set(ctx, key, payload, s.ttl).Err()
}

func (s idempotencyCache) release(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	s.client.Del(ctx, key) // best effort cleanup
}

// errorStatus reports the status and client message the error handler will
// render for err.
func errorStatus(err error) (int, string) {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, fe.Message
	}
	return fiber.StatusInternalServerError, fiber.ErrInternalServerError.Message
}

func fingerprint(c *fiber.Ctx) string {
	h := sha256.New()
	h.Write([]byte(c.Method()))
	h.Write([]byte{0})
	h.Write([]byte(c.Path()))
	h.Write([]byte{0})
	h.Write(c.Body())
	return hex.EncodeToString(h.Sum(nil))
}

// Idempotency makes money-moving requests safe to retry. Responses are kept
// in Redis under the Idempotency-Key header, scoped to the session user when
// one is set. Reusing a key with a different request is rejected with 422.
// A 4xx releases the key so the corrected request can be retried. A 5xx keeps
// it: the write may have committed, so replays get the stored failure instead
// of running the operation again.
func Idempotency(cache *redis.Client, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	store := idempotencyCache{client: cache, ttl: ttl}
	return func(c *fiber.Ctx) error {
		switch strings.ToUpper(c.Method()) {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		key := strings.TrimSpace(c.Get(idempotencyKeyHeader))
		if key == "" {
			return fiber.NewError(fiber.StatusBadRequest, "missing Idempotency-Key header")
		}
		if len(key) > 255 {
			return fiber.NewError(fiber.StatusBadRequest, "Idempotency-Key too long")
		}

		cacheKey := idempotencyPrefix + key
		if uid, _ := c.Locals("user_id").(string); uid != "" {
			cacheKey = idempotencyPrefix + uid + ":" + key
		}
		fp := fingerprint(c)

		stored, found, err := store.load(cacheKey)
		if err != nil && !found {
			logger.Error("idempotency lookup failed", slog.String("key", key), slog.Any("error", err))
			return fiber.NewError(fiber.StatusServiceUnavailable, "idempotency store failure")
		}
		if found {
			switch {
			case err != nil:
				logger.Warn("failed to decode stored idempotent response", slog.String("key", key), slog.Any("error", err))
				return fiber.NewError(fiber.StatusConflict, "duplicate request")
			case stored.Status == 0:
				return fiber.NewError(fiber.StatusConflict, "duplicate request currently processing")
			case stored.Fingerprint != fp:
				return fiber.NewError(fiber.StatusUnprocessableEntity, "Idempotency-Key reused with a different request")
			}
			for header, value := range stored.Headers {
				if strings.EqualFold(header, fiber.HeaderContentLength) {
					continue
				}
				c.Set(header, value)
			}
			c.Set(replayedHeader, "true")
			if stored.Unknown {
				return fiber.NewError(stored.Status, stored.Body)
			}
			return c.Status(stored.Status).SendString(stored.Body)
		}

		reserved, err := store.reserve(cacheKey)
		if err != nil {
			logger.Error("idempotency reservation failed", slog.String("key", key), slog.Any("error", err))
			return fiber.NewError(fiber.StatusServiceUnavailable, "idempotency reservation failure")
		}
		if !reserved {
			return fiber.NewError(fiber.StatusConflict, "duplicate request currently processing")
		}

		if err := c.Next(); err != nil {
			status, message := errorStatus(err)
			if status < fiber.StatusInternalServerError {
				store.release(cacheKey)
				return err
			}
			keepUnknown(store, cacheKey, storedResponse{Fingerprint: fp, Status: status, Body: message}, logger)
			return err
		}

		status := c.Response().StatusCode()
		if status >= fiber.StatusInternalServerError {
			keepUnknown(store, cacheKey, storedResponse{Fingerprint: fp, Status: status, Body: string(c.Response().Body())}, logger)
			return nil
		}
		if status >= fiber.StatusBadRequest {
			store.release(cacheKey)
			return nil
		}

		result := storedResponse{
			Fingerprint: fp,
			Status:      status,
			Body:        string(c.Response().Body()),
			Headers:     map[string]string{},
		}
		c.Response().Header.VisitAll(func(k, v []byte) {
			result.Headers[string(k)] = string(v)
		})

		if err := store.save(cacheKey, result); err != nil {
			logger.Error("failed to persist idempotent response", slog.String("key", key), slog.Any("error", err))
			store.release(cacheKey)
			return fiber.NewError(fiber.StatusServiceUnavailable, "idempotency persistence failure")
		}

		return nil
	}
}

// keepUnknown records a failure whose outcome is unknown. When the write fails
// the in-progress marker stays until the TTL expires, which still blocks a
// second run.
func keepUnknown(store idempotencyCache, key string, stored storedResponse, logger *slog.Logger) {
	stored.Unknown = true
	if err := store.save(key, stored); err != nil {
		logger.Error("failed to persist unknown outcome", slog.String("key", key), slog.Any("error", err))
		return
	}
	logger.Warn("request outcome unknown, key kept", slog.String("key", key), slog.Int("status", stored.Status))
}
