package notify

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"willhaben-monitor/models"
	"willhaben-monitor/utils"
)

func fptr(v float64) *float64 { return &v }

func testListing(id string) *models.Listing {
	return &models.Listing{
		ID:         id,
		Price:      fptr(850),
		Rooms:      fptr(3),
		EstateSize: fptr(72),
		Location:   "Wien, 02. Bezirk, Leopoldstadt",
		Heading:    "Schöne Wohnung",
		URL:        "https://www.willhaben.at/iad/immobilien/d/mietwohnungen/wien/wien-0290-leopoldstadt/schoene-wohnung-" + id + "/",
		ObservedAt: time.Now(),
	}
}

// telegramStub runs a fake Bot API recording sendMessage payloads.
func telegramStub(t *testing.T, botOK bool) (*httptest.Server, *[]map[string]any) {
	t.Helper()
	var sends []map[string]any

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			json.NewEncoder(w).Encode(map[string]any{"ok": botOK, "description": "Unauthorized"})
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			body, _ := io.ReadAll(r.Body)
			var payload map[string]any
			json.Unmarshal(body, &payload)
			sends = append(sends, payload)
			json.NewEncoder(w).Encode(map[string]any{"ok": true})
		default:
			t.Errorf("unexpected API path %q", r.URL.Path)
		}
	}))
	return ts, &sends
}

func testNotifier(serverURL string) *TelegramNotifier {
	n := NewTelegramNotifier("test-token", "42", utils.NewLogger(false))
	n.baseURL = serverURL
	return n
}

func TestFingerprint(t *testing.T) {
	l := testListing("1")
	want := "Wien, 02. Bezirk, Leopoldstadt|72|850|3"
	if got := Fingerprint(l); got != want {
		t.Errorf("Fingerprint() = %q, want %q", got, want)
	}

	bare := &models.Listing{ID: "2", Location: "Wien"}
	if got := Fingerprint(bare); got != "Wien|||" {
		t.Errorf("Fingerprint() = %q, want empty segments for nil numerics", got)
	}

	// Same flat under a new advert ID keeps the same fingerprint.
	other := testListing("999")
	if Fingerprint(l) != Fingerprint(other) {
		t.Error("fingerprints differ across IDs for identical listings")
	}
}

func TestSendIfNewDeliversBatch(t *testing.T) {
	ts, sends := telegramStub(t, true)
	defer ts.Close()
	n := testNotifier(ts.URL)

	sent, err := n.SendIfNew([]*models.Listing{testListing("1")})
	if err != nil {
		t.Fatalf("SendIfNew() error = %v", err)
	}
	if len(sent) != 1 {
		t.Fatalf("sent = %d listings, want 1", len(sent))
	}
	if len(*sends) != 1 {
		t.Fatalf("API received %d sends, want 1", len(*sends))
	}

	payload := (*sends)[0]
	if payload["chat_id"] != "42" {
		t.Errorf("chat_id = %v, want 42", payload["chat_id"])
	}
	if payload["parse_mode"] != "Markdown" {
		t.Errorf("parse_mode = %v, want Markdown", payload["parse_mode"])
	}
	if payload["disable_web_page_preview"] != true {
		t.Errorf("disable_web_page_preview = %v, want true", payload["disable_web_page_preview"])
	}
	text, _ := payload["text"].(string)
	if !strings.HasPrefix(text, "New listings found:\n\n") {
		t.Errorf("text = %q, want the batch prefix", text)
	}
	if !strings.Contains(text, "📍 Wien, 02. Bezirk, Leopoldstadt - €850") {
		t.Errorf("text = %q, want the location/price line", text)
	}
	if !strings.Contains(text, "[View Listing](") {
		t.Errorf("text = %q, want the Markdown link", text)
	}
}

func TestSendIfNewSuppressesDuplicates(t *testing.T) {
	ts, sends := telegramStub(t, true)
	defer ts.Close()
	n := testNotifier(ts.URL)

	if _, err := n.SendIfNew([]*models.Listing{testListing("1")}); err != nil {
		t.Fatalf("first SendIfNew() error = %v", err)
	}

	sent, err := n.SendIfNew([]*models.Listing{testListing("1")})
	if err != nil {
		t.Fatalf("second SendIfNew() error = %v", err)
	}
	if len(sent) != 0 {
		t.Errorf("second send delivered %d listings, want 0", len(sent))
	}
	if len(*sends) != 1 {
		t.Errorf("API received %d sends, want 1 (duplicate fully suppressed)", len(*sends))
	}
}

func TestSendIfNewWindowClearAllowsResend(t *testing.T) {
	ts, sends := telegramStub(t, true)
	defer ts.Close()
	n := testNotifier(ts.URL)

	n.SendIfNew([]*models.Listing{testListing("1")})
	n.window.Clear()
	n.SendIfNew([]*models.Listing{testListing("1")})

	if len(*sends) != 2 {
		t.Errorf("API received %d sends, want 2 after window clear", len(*sends))
	}
}

func TestSendIfNewRejectsListingWithoutURL(t *testing.T) {
	ts, sends := telegramStub(t, true)
	defer ts.Close()
	n := testNotifier(ts.URL)

	l := testListing("1")
	l.URL = ""
	_, err := n.SendIfNew([]*models.Listing{l})

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("error = %v, want *ValidationError", err)
	}
	if len(*sends) != 0 {
		t.Errorf("API received %d sends, want 0 (whole batch rejected)", len(*sends))
	}
}

func TestSendIfNewMissingCredentials(t *testing.T) {
	n := NewTelegramNotifier("", "", utils.NewLogger(false))

	_, err := n.SendIfNew([]*models.Listing{testListing("1")})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("error = %v, want *ValidationError for missing credentials", err)
	}
}

func TestSendIfNewInvalidToken(t *testing.T) {
	ts, sends := telegramStub(t, false)
	defer ts.Close()
	n := testNotifier(ts.URL)

	_, err := n.SendIfNew([]*models.Listing{testListing("1")})
	if err == nil || !strings.Contains(err.Error(), "invalid bot token") {
		t.Fatalf("error = %v, want invalid bot token", err)
	}
	if len(*sends) != 0 {
		t.Errorf("API received %d sends, want 0 after failed identity check", len(*sends))
	}
}

func TestFormatMessage(t *testing.T) {
	msg, truncated, err := FormatMessage([]*models.Listing{testListing("1"), testListing("2")})
	if err != nil {
		t.Fatalf("FormatMessage() error = %v", err)
	}
	if truncated {
		t.Error("short message reported truncated")
	}
	if got := strings.Count(msg, "📍"); got != 2 {
		t.Errorf("message has %d listing blocks, want 2", got)
	}
}

func TestFormatMessageEmptyBatch(t *testing.T) {
	_, _, err := FormatMessage(nil)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("error = %v, want *ValidationError for empty batch", err)
	}
}

func TestFormatMessageNAFallbacks(t *testing.T) {
	l := &models.Listing{ID: "1", URL: "https://example.test/1"}
	msg, _, err := FormatMessage([]*models.Listing{l})
	if err != nil {
		t.Fatalf("FormatMessage() error = %v", err)
	}
	if !strings.Contains(msg, "Location N/A") {
		t.Errorf("message = %q, want Location N/A", msg)
	}
	if !strings.Contains(msg, "€N/A") || !strings.Contains(msg, "N/Am²") {
		t.Errorf("message = %q, want N/A numeric fallbacks", msg)
	}
}

func TestFormatMessageTruncation(t *testing.T) {
	var batch []*models.Listing
	for i := 0; i < 100; i++ {
		batch = append(batch, testListing("1"))
	}

	msg, truncated, err := FormatMessage(batch)
	if err != nil {
		t.Fatalf("FormatMessage() error = %v", err)
	}
	if !truncated {
		t.Fatal("oversized message not reported truncated")
	}
	if len(msg) > messageLimit+len(truncationMarker) {
		t.Errorf("message length = %d, want at most %d", len(msg), messageLimit+len(truncationMarker))
	}
	if !strings.HasSuffix(msg, truncationMarker) {
		t.Errorf("message does not end with the truncation marker")
	}
}

func TestSendErrorNotification(t *testing.T) {
	ts, sends := telegramStub(t, true)
	defer ts.Close()
	n := testNotifier(ts.URL)

	n.SendErrorNotification(errors.New("willhaben: HTTP error status: 403"))

	if len(*sends) != 1 {
		t.Fatalf("API received %d sends, want 1", len(*sends))
	}
	text, _ := (*sends)[0]["text"].(string)
	if !strings.HasPrefix(text, "⚠️ *Property Search Bot Error*") {
		t.Errorf("text = %q, want the error header", text)
	}
	if !strings.Contains(text, "403") {
		t.Errorf("text = %q, want the underlying error", text)
	}
}

func TestSendErrorNotificationSwallowsDeliveryFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": "chat not found"})
	}))
	defer ts.Close()
	n := testNotifier(ts.URL)

	// Must not panic or propagate; the failure only gets logged.
	n.SendErrorNotification(errors.New("original failure"))
}

func TestDedupWindow(t *testing.T) {
	w := NewDedupWindow()
	if !w.Add("a") {
		t.Error("first Add returned false")
	}
	if w.Add("a") {
		t.Error("duplicate Add returned true")
	}
	if !w.Add("b") {
		t.Error("distinct Add returned false")
	}
	if w.Size() != 2 {
		t.Errorf("Size() = %d, want 2", w.Size())
	}
	w.Clear()
	if w.Size() != 0 {
		t.Errorf("Size() after Clear = %d, want 0", w.Size())
	}
	if !w.Add("a") {
		t.Error("Add after Clear returned false")
	}
}
