package alert

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hazz-dev/cratecheck/internal/checker"
)

// Alerter sends webhook notifications when a watched name changes availability.
type Alerter struct {
	webhookURL string
	cooldown   time.Duration
	client     *http.Client
	lastAlert  map[string]time.Time
	mu         sync.Mutex
	wg         sync.WaitGroup
	logger     *slog.Logger
}

// New creates a new Alerter. Pass nil logger to use the default logger.
func New(webhookURL string, cooldown time.Duration, logger *slog.Logger) *Alerter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Alerter{
		webhookURL: webhookURL,
		cooldown:   cooldown,
		client:     &http.Client{Timeout: 10 * time.Second},
		lastAlert:  make(map[string]time.Time),
		logger:     logger,
	}
}

type webhookPayload struct {
	Name                 string `json:"name"`
	Availability         string `json:"availability"`
	PreviousAvailability string `json:"previous_availability"`
	StatusCode           int    `json:"status_code"`
	Error                string `json:"error"`
	CheckedAt            string `json:"checked_at"`
	Source               string `json:"source"`
}

// Notify sends a webhook if the availability has changed and the cooldown has elapsed.
func (a *Alerter) Notify(result checker.Result, previous *checker.Availability) {
	// First lookup for this name.
	if previous == nil {
		return
	}
	if result.Availability == *previous {
		return
	}

	a.mu.Lock()
	last, exists := a.lastAlert[result.Name]
	if exists && time.Since(last) < a.cooldown {
		a.mu.Unlock()
		a.logger.Info("alert suppressed by cooldown", "name", result.Name)
		return
	}
	a.lastAlert[result.Name] = time.Now()
	a.mu.Unlock()

	// Send asynchronously so Notify doesn't block the scheduler.
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.send(result, *previous)
	}()
}

// Wait blocks until in-flight webhooks have been sent.
func (a *Alerter) Wait() {
	a.wg.Wait()
}

func (a *Alerter) send(result checker.Result, previous checker.Availability) {
	payload := webhookPayload{
		Name:                 result.Name,
		Availability:         result.Availability.String(),
		PreviousAvailability: previous.String(),
		StatusCode:           result.StatusCode,
		Error:                result.Error,
		CheckedAt:            result.CheckedAt.UTC().Format(time.RFC3339),
		Source:               "cratecheck",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		a.logger.Error("marshaling webhook payload", "name", result.Name, "error", err)
		return
	}

	resp, err := a.client.Post(a.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		a.logger.Error("sending webhook", "name", result.Name, "url", a.webhookURL, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		a.logger.Warn("webhook returned non-2xx status",
			"name", result.Name,
			"status", resp.StatusCode,
		)
	}
}
