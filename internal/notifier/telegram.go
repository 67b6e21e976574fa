package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"
)

const telegramAPI = "https://api.telegram.org"

type Telegram struct {
	baseURL  string
	botToken string
	chatIDs  []string
	client   *http.Client
}

func NewTelegram(botToken string, chatIDs []string) *Telegram {
	return &Telegram{
		baseURL:  telegramAPI,
		botToken: botToken,
		chatIDs:  chatIDs,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *Telegram) Notify(ctx context.Context, n Notification) error {
	text := formatMessage(n)

	for _, chatID := range t.chatIDs {
		if err := t.send(ctx, chatID, text); err != nil {
			return err
		}
	}

	return nil
}

func (t *Telegram) send(ctx context.Context, chatID, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)

	body, _ := json.Marshal(map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	})

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %d", resp.StatusCode)
	}

	return nil
}

func formatMessage(n Notification) string {
	var scores []string
	for _, s := range n.Analysis.ConfidenceScores {
		scores = append(scores, fmt.Sprintf("%s %.0f%%", html.EscapeString(s.Label), s.Score*100))
	}

	source := string(n.Submission.Source)
	if n.Submission.Author != "" {
		source += " / " + n.Submission.Author
	}

	msg := fmt.Sprintf(`🧠 <b>%s pattern detected</b>

<b>Source:</b> %s
<b>Confidence:</b> %.0f%%
<b>Scores:</b> %s
<b>Strategy:</b> %s

<b>Text:</b>
%s`,
		html.EscapeString(n.Analysis.TopPattern),
		html.EscapeString(source),
		n.Analysis.TopScore()*100,
		strings.Join(scores, ", "),
		n.Analysis.Strategy,
		html.EscapeString(n.Submission.Text),
	)

	if n.Submission.Link != "" {
		msg += "\n\n" + html.EscapeString(n.Submission.Link)
	}

	return msg
}
