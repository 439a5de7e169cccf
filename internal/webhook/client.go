// internal/webhook/client.go
// Posts batch lifecycle events as JSON to a configured URL.
// Delivery is best effort: failures are logged and never reach the caller.
package webhook

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	"openai-cli/internal/logging"
	"openai-cli/internal/models"
	"openai-cli/internal/orchestrator"
)

const (
	EventBatchStarted   = "batch_started"
	EventWinnerSelected = "winner_selected"
	EventBatchCompleted = "batch_completed"
)

// Event is the JSON body of one post
type Event struct {
	Type      string            `json:"type"`
	Source    string            `json:"source"`
	Timestamp int64             `json:"timestamp"`
	Data      map[string]string `json:"data,omitempty"`
}

// Client delivers events to one endpoint
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
	wg         sync.WaitGroup

	mu              sync.Mutex
	connErrorLogged bool // only log connection errors once
}

// New creates a client posting to endpoint. A nil logger discards.
func New(endpoint string, logger *slog.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 2 * time.Second,
		},
		logger: logging.OrDiscard(logger).With("component", "webhook"),
	}
}

// Emit posts an event in the background.
func (c *Client) Emit(eventType string, data map[string]string) {
	event := Event{
		Type:      eventType,
		Source:    "openai-cli",
		Timestamp: time.Now().Unix(),
		Data:      data,
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.send(event)
	}()
}

// Flush waits for in-flight posts.
func (c *Client) Flush() {
	c.wg.Wait()
}

func (c *Client) send(event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		c.logger.Warn("marshal event", "type", event.Type, "error", err)
		return
	}

	resp, err := c.httpClient.Post(c.endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		c.mu.Lock()
		first := !c.connErrorLogged
		c.connErrorLogged = true
		c.mu.Unlock()
		if first {
			c.logger.Warn("hook unreachable", "endpoint", c.endpoint, "error", err)
		}
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		c.logger.Warn("event rejected", "type", event.Type, "status", resp.StatusCode)
	}
}

// BatchStarted announces the models about to race.
func (c *Client) BatchStarted(command string, specs []models.Spec) {
	c.Emit(EventBatchStarted, map[string]string{
		"command": command,
		"models":  joinSpecs(specs),
	})
}

// Attach reports the winner's completion and the batch summary from a
// coordinator. The returned function detaches it.
func (c *Client) Attach(coord *orchestrator.Coordinator) (detach func()) {
	unsubs := []func(){
		coord.OnWinnerCompleted(func(r orchestrator.ModelResult) {
			data := map[string]string{
				"model":       r.Spec.String(),
				"success":     strconv.FormatBool(r.Success),
				"duration_ms": strconv.FormatInt(r.Duration.Milliseconds(), 10),
			}
			if r.Err != nil {
				data["error"] = truncate(r.Err.Error(), 200)
			}
			c.Emit(EventWinnerSelected, data)
		}),
		coord.OnAllCompleted(func(rs []orchestrator.ModelResult) {
			s := orchestrator.Summarize(rs)
			c.Emit(EventBatchCompleted, map[string]string{
				"total":     strconv.Itoa(s.Total),
				"succeeded": strconv.Itoa(s.Succeeded),
				"cancelled": strconv.FormatBool(s.Cancelled()),
			})
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func joinSpecs(specs []models.Spec) string {
	var b bytes.Buffer
	for i, s := range specs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s.String())
	}
	return b.String()
}

// truncate limits a string to maxLen bytes without splitting a rune
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
