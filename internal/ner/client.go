// Package ner calls the optional medical named-entity recognition
// collaborator. The collaborator is an enhancement layer only: every
// transport failure, timeout, or malformed response degrades to "no
// entities" so the core matcher path never depends on it.
package ner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/researchflow/phi-sentinel/internal/elevate"
)

// Config contains NER collaborator connection settings.
type Config struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	Endpoint string        `yaml:"endpoint" mapstructure:"endpoint"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// Client is an HTTP client for the collaborator contract:
// request {"text": ...}, response {"entities": [{text, label, start, end,
// confidence}]}.
type Client struct {
	config Config
	http   *http.Client
	logger *zap.Logger
}

type extractRequest struct {
	Text string `json:"text"`
}

type extractResponse struct {
	Entities []elevate.MedicalEntity `json:"entities"`
}

// NewClient creates a collaborator client. A zero timeout defaults to 2s so
// a stalled collaborator cannot stall a scan.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Client{
		config: cfg,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Extract returns the entities the collaborator found in text, or nil when
// the collaborator is disabled, unreachable, or returns malformed data.
// A nil result is the documented degraded mode, never an error.
func (c *Client) Extract(ctx context.Context, text string) []elevate.MedicalEntity {
	if !c.config.Enabled || c.config.Endpoint == "" || text == "" {
		return nil
	}

	body, err := json.Marshal(extractRequest{Text: text})
	if err != nil {
		c.logger.Warn("NER request encoding failed, proceeding pattern-only", zap.Error(err))
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		c.logger.Warn("NER request construction failed, proceeding pattern-only", zap.Error(err))
		return nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("NER collaborator unavailable, proceeding pattern-only", zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("NER collaborator returned non-OK status, proceeding pattern-only",
			zap.Error(fmt.Errorf("unexpected status %d", resp.StatusCode)))
		return nil
	}

	var decoded extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		c.logger.Warn("NER response malformed, proceeding pattern-only", zap.Error(err))
		return nil
	}

	return validEntities(decoded.Entities, len(text))
}

// validEntities drops entities whose spans do not address the scanned text;
// a malformed span would poison the elevator's distance math.
func validEntities(entities []elevate.MedicalEntity, textLen int) []elevate.MedicalEntity {
	valid := entities[:0]
	for _, entity := range entities {
		if entity.StartOffset < 0 || entity.EndOffset > textLen || entity.StartOffset >= entity.EndOffset {
			continue
		}
		if entity.Label == "" {
			continue
		}
		valid = append(valid, entity)
	}
	if len(valid) == 0 {
		return nil
	}
	return valid
}
