package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	appErrors "github.com/disparoja/dispatch-backend/internal/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	sendTimeout = 30 * time.Second

	// Ceiling on outbound API calls. The real pacing is the per-job jitter;
	// this only stops retry bursts from hammering the provider.
	requestsPerSecond = 2
)

// EvolutionClient talks to an Evolution API deployment, the unofficial
// WhatsApp bridge. One client serves every instance; the instance is chosen
// per call.
type EvolutionClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

func NewEvolutionClient(baseURL, apiKey string, log *zap.Logger) *EvolutionClient {
	return &EvolutionClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: sendTimeout},
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		log:     log,
	}
}

type sendTextRequest struct {
	Number      string `json:"number"`
	Text        string `json:"text"`
	Delay       int    `json:"delay"`
	LinkPreview bool   `json:"linkPreview"`
}

type sendTextResponse struct {
	Key struct {
		ID string `json:"id"`
	} `json:"key"`
}

// SendText runs the normalization ladder: each candidate number is tried in
// order, moving to the next only when the provider says the number does not
// exist. Any other failure aborts immediately.
func (c *EvolutionClient) SendText(ctx context.Context, tenantID, instanceName, recipient, text string) (string, error) {
	candidates := Candidates(recipient)

	var lastErr error
	for i, number := range candidates {
		if i > 0 {
			c.log.Info("retrying with adjusted number",
				zap.String("instance", instanceName),
				zap.String("number", number))
		}
		id, err := c.sendOnce(ctx, instanceName, number, text)
		if err == nil {
			return id, nil
		}
		lastErr = err

		var notFound *appErrors.RecipientNotFoundError
		if !errors.As(err, &notFound) {
			return "", err
		}
	}
	return "", lastErr
}

func (c *EvolutionClient) sendOnce(ctx context.Context, instanceName, number, text string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	payload := sendTextRequest{
		Number:      number + "@s.whatsapp.net",
		Text:        text,
		Delay:       1200,
		LinkPreview: true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/message/sendText/%s", c.baseURL, instanceName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &appErrors.ChannelError{StatusCode: 0, Detail: err.Error()}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := string(respBody)
		if isRecipientNotFound(detail) {
			return "", appErrors.NewRecipientNotFound(number, detail)
		}
		return "", &appErrors.ChannelError{StatusCode: resp.StatusCode, Detail: detail}
	}

	var parsed sendTextResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		// Some deployments answer with non-standard bodies; a 2xx is still
		// a successful send.
		return "", nil
	}
	return parsed.Key.ID, nil
}

// isRecipientNotFound matches the provider's ways of saying the number has
// no account behind it.
func isRecipientNotFound(detail string) bool {
	lower := strings.ToLower(detail)
	return strings.Contains(lower, `"exists":false`) ||
		strings.Contains(lower, "does not exist") ||
		strings.Contains(lower, "not found")
}

var _ Adapter = (*EvolutionClient)(nil)
