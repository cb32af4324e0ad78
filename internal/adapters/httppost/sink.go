// Package httppost reports each sample as a single form-encoded POST.
package httppost

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pulsemeter/internal/config"
	"pulsemeter/internal/domain"
	"pulsemeter/internal/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const maxDiagnosticBody = 512

type Sink struct {
	url      string
	secret   []byte
	deviceID uuid.UUID
	client   *http.Client
	log      logger.Logger
	now      func() time.Time
}

func NewSink(cfg config.HTTPSinkConfig, deviceID uuid.UUID, timeout time.Duration, log logger.Logger) *Sink {
	var secret []byte
	if cfg.Secret != "" {
		secret = []byte(cfg.Secret)
	}

	return &Sink{
		url:      cfg.URL,
		secret:   secret,
		deviceID: deviceID,
		client:   &http.Client{Timeout: timeout},
		log:      log,
		now:      time.Now,
	}
}

func (s *Sink) Name() string {
	return "http"
}

// EncodeBody renders the three values in the form the endpoint expects.
func EncodeBody(sample domain.Sample) string {
	return fmt.Sprintf("pulses=%d&energy=%f&power=%f", sample.Pulses, sample.Energy, sample.Power)
}

// Send issues the POST. The response is read only for diagnostics; a non-2xx
// status is still reported as a failure for this cycle.
func (s *Sink) Send(ctx context.Context, sample domain.Sample) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, strings.NewReader(EncodeBody(sample)))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")

	if s.secret != nil {
		token, err := s.bearer()
		if err != nil {
			return fmt.Errorf("sign token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(res.Body, maxDiagnosticBody))
	s.log.Debug("http sink response", "status", res.StatusCode, "body", string(body))

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("post: unexpected status %d", res.StatusCode)
	}

	return nil
}

func (s *Sink) bearer() (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   s.deviceID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}
