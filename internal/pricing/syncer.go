package pricing

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	DefaultURL            = "https://models.dev/api.json"
	defaultSyncInterval   = 6 * time.Hour
	defaultRequestTimeout = 15 * time.Second
)

// Syncer keeps the model_prices table synced with models.dev.
type Syncer struct {
	db       *gorm.DB
	url      string
	interval time.Duration
	client   *http.Client
	now      func() time.Time
}

// NewSyncer constructs a price syncer. Empty url and zero interval use defaults.
func NewSyncer(db *gorm.DB, url string, interval time.Duration) *Syncer {
	if db == nil {
		return nil
	}
	if strings.TrimSpace(url) == "" {
		url = DefaultURL
	}
	if interval <= 0 {
		interval = defaultSyncInterval
	}
	return &Syncer{
		db:       db,
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: defaultRequestTimeout},
		now:      time.Now,
	}
}

// Start runs the sync loop in the background.
func (s *Syncer) Start(ctx context.Context) {
	if s == nil {
		return
	}
	go s.run(ctx)
	log.Infof("pricing syncer started (interval=%s)", s.interval)
}

func (s *Syncer) run(ctx context.Context) {
	if err := s.SyncOnce(ctx); err != nil {
		log.WithError(err).Warn("pricing syncer: initial sync failed")
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SyncOnce(ctx); err != nil {
				log.WithError(err).Warn("pricing syncer: sync failed")
			}
		}
	}
}

// SyncOnce fetches and persists the latest prices.
func (s *Syncer) SyncOnce(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("pricing syncer: nil db")
	}
	client := s.client
	if client == nil {
		client = &http.Client{Timeout: defaultRequestTimeout}
	}
	clock := s.now
	if clock == nil {
		clock = time.Now
	}

	requestCtx, cancel := context.WithTimeout(ctx, defaultRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("pricing syncer: build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("pricing syncer: request failed: %w", err)
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.WithError(errClose).Warn("pricing syncer: close response body failed")
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("pricing syncer: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("pricing syncer: read response: %w", err)
	}

	rows, err := ParsePayload(body)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("pricing syncer: empty payload")
	}
	if err := StorePrices(ctx, s.db, rows, clock().UTC()); err != nil {
		return err
	}
	log.Debugf("pricing syncer: stored %d model prices", len(rows))
	return nil
}
