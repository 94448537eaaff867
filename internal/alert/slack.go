package alert

import (
	"context"
	"time"

	"fmt"

	apphttp "auction_rebalancer/pkg/http"
)

type SlackChannel struct {
	client *apphttp.Client
}

// NewSlackChannel creates a channel posting to a Slack incoming webhook. The
// shared HTTP client supplies retry and circuit breaking.
func NewSlackChannel(webhookURL string) *SlackChannel {
	return &SlackChannel{
		client: apphttp.NewClient(webhookURL, 5*time.Second),
	}
}

func (s *SlackChannel) Name() string {
	return "slack"
}

func (s *SlackChannel) Send(ctx context.Context, alert AlertPayload) error {
	color := "#36a64f" // Green (Info)
	switch alert.Level {
	case Warning:
		color = "#ffcc00" // Yellow
	case Error:
		color = "#ff0000" // Red
	case Critical:
		color = "#8b0000" // Dark Red
	}

	var fields []map[string]interface{}
	for k, v := range alert.Fields {
		fields = append(fields, map[string]interface{}{
			"title": k,
			"value": v,
			"short": true,
		})
	}

	payload := map[string]interface{}{
		"attachments": []map[string]interface{}{
			{
				"color":   color,
				"pretext": fmt.Sprintf("[%s] %s", alert.Level, alert.Title),
				"text":    alert.Message,
				"fields":  fields,
				"ts":      alert.Timestamp.Unix(),
				"footer":  "Auction Rebalancer",
			},
		},
	}

	_, err := s.client.Post(ctx, "", payload)
	return err
}
