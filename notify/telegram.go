package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"willhaben-monitor/models"
	"willhaben-monitor/utils"
)

const (
	defaultAPIBaseURL = "https://api.telegram.org"

	// messageLimit keeps batched messages under Telegram's 4096-char cap.
	messageLimit     = 4000
	truncationMarker = "\n... (truncated)"

	// dedupWindowLife is how long sent-listing fingerprints are remembered.
	// The whole window is dropped at once; entries have no individual TTL.
	dedupWindowLife = 24 * time.Hour
)

// ValidationError reports an unnotifiable batch; the whole message is
// rejected, nothing partial is sent.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "notify: " + e.Reason
}

// DedupWindow suppresses repeat notifications for listings already sent
// within the current window.
type DedupWindow struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewDedupWindow creates an empty window.
func NewDedupWindow() *DedupWindow {
	return &DedupWindow{seen: make(map[string]struct{})}
}

// Add returns true if the fingerprint was newly added.
func (w *DedupWindow) Add(fingerprint string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, dup := w.seen[fingerprint]; dup {
		return false
	}
	w.seen[fingerprint] = struct{}{}
	return true
}

// Clear swaps in a fresh set, so a concurrent reader can never observe a
// partially cleared window.
func (w *DedupWindow) Clear() {
	w.mu.Lock()
	w.seen = make(map[string]struct{})
	w.mu.Unlock()
}

// Size returns the number of remembered fingerprints.
func (w *DedupWindow) Size() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.seen)
}

// Fingerprint identifies a listing for dedup purposes independent of its ID,
// so the same flat re-posted under a new advert ID is still suppressed.
func Fingerprint(l *models.Listing) string {
	return l.Location + "|" + numString(l.EstateSize) + "|" + numString(l.Price) + "|" + numString(l.Rooms)
}

func numString(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// TelegramNotifier delivers batched listing notifications to a Telegram chat
// via the Bot API.
type TelegramNotifier struct {
	logger  *utils.Logger
	http    *http.Client
	baseURL string
	token   string
	chatID  string
	window  *DedupWindow
}

// NewTelegramNotifier creates a notifier with a fresh dedup window. The
// window reset loop is started separately via ResetWindowLoop.
func NewTelegramNotifier(token, chatID string, logger *utils.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		logger:  logger,
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: defaultAPIBaseURL,
		token:   token,
		chatID:  chatID,
		window:  NewDedupWindow(),
	}
}

// ResetWindowLoop clears the dedup window on a fixed timer until ctx is
// cancelled. Coarse and non-sliding on purpose.
func (n *TelegramNotifier) ResetWindowLoop(ctx context.Context) {
	ticker := time.NewTicker(dedupWindowLife)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n.window.Clear()
			n.logger.Debug("[telegram] Dedup window cleared")
		case <-ctx.Done():
			return
		}
	}
}

// SendIfNew drops listings already notified within the dedup window, then
// delivers the survivors as one batched Markdown message. It returns the
// listings that were actually sent.
func (n *TelegramNotifier) SendIfNew(listings []*models.Listing) ([]*models.Listing, error) {
	fresh := make([]*models.Listing, 0, len(listings))
	for _, l := range listings {
		if n.window.Add(Fingerprint(l)) {
			fresh = append(fresh, l)
		} else {
			n.logger.Debug("[telegram] Listing %s already notified, skipping", l.ID)
		}
	}
	if len(fresh) == 0 {
		n.logger.Debug("[telegram] No new unique listings to send")
		return nil, nil
	}

	message, truncated, err := FormatMessage(fresh)
	if err != nil {
		return nil, err
	}
	if truncated {
		n.logger.Warn("[telegram] Message truncated to %d characters", messageLimit)
	}

	if n.token == "" || n.chatID == "" {
		return nil, &ValidationError{Reason: "missing API token or chat ID"}
	}

	if err := n.checkBot(); err != nil {
		return nil, err
	}
	if err := n.sendMessage(message, true); err != nil {
		return nil, err
	}

	return fresh, nil
}

// SendErrorNotification posts an error summary to the chat. Failures here are
// logged and swallowed so a broken channel cannot amplify the original error.
func (n *TelegramNotifier) SendErrorNotification(cause error) {
	if n.token == "" || n.chatID == "" {
		n.logger.Error("[telegram] Cannot send error notification: missing API token or chat ID")
		return
	}

	message := "⚠️ *Property Search Bot Error*\n\n" + cause.Error()
	if err := n.sendMessage(message, false); err != nil {
		n.logger.Error("[telegram] Failed to send error notification: %v", err)
	}
}

// FormatMessage renders the batched Markdown notification. A listing without
// a resolvable detail-page URL rejects the whole batch. The second return
// reports whether the message was truncated to the character budget.
func FormatMessage(listings []*models.Listing) (string, bool, error) {
	if len(listings) == 0 {
		return "", false, &ValidationError{Reason: "empty listings batch"}
	}

	blocks := make([]string, 0, len(listings))
	for _, l := range listings {
		if l.URL == "" {
			return "", false, &ValidationError{
				Reason: fmt.Sprintf("listing %s has no detail-page URL", l.ID),
			}
		}
		blocks = append(blocks, fmt.Sprintf(
			"📍 %s - €%s\n🏠 %sm² - %s rooms\n🔗 [View Listing](%s)",
			textOrNA(l.Location), valueOrNA(l.Price), valueOrNA(l.EstateSize), valueOrNA(l.Rooms), l.URL))
	}

	message := "New listings found:\n\n" + strings.Join(blocks, "\n\n")
	if len(message) <= messageLimit {
		return message, false, nil
	}

	cut := messageLimit
	for cut > 0 && !utf8.RuneStart(message[cut]) {
		cut--
	}
	return message[:cut] + truncationMarker, true, nil
}

func textOrNA(s string) string {
	if s == "" {
		return "Location N/A"
	}
	return s
}

func valueOrNA(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// checkBot verifies the bot identity before the main send.
func (n *TelegramNotifier) checkBot() error {
	resp, err := n.http.Get(fmt.Sprintf("%s/bot%s/getMe", n.baseURL, n.token))
	if err != nil {
		return fmt.Errorf("telegram: getMe: %w", err)
	}
	defer resp.Body.Close()

	var r apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return fmt.Errorf("telegram: decode getMe response: %w", err)
	}
	if !r.OK {
		return fmt.Errorf("telegram: invalid bot token")
	}
	return nil
}

func (n *TelegramNotifier) sendMessage(text string, disablePreview bool) error {
	payload, err := json.Marshal(map[string]any{
		"chat_id":                  n.chatID,
		"text":                     text,
		"parse_mode":               "Markdown",
		"disable_web_page_preview": disablePreview,
	})
	if err != nil {
		return fmt.Errorf("telegram: encode payload: %w", err)
	}

	resp, err := n.http.Post(
		fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.token),
		"application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("telegram: send message: %w", err)
	}
	defer resp.Body.Close()

	var r apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return fmt.Errorf("telegram: decode sendMessage response: %w", err)
	}
	if !r.OK {
		return fmt.Errorf("telegram: API error: %s", r.Description)
	}
	return nil
}
