package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"hookrelay/internal/model"
)

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream delivery attempts for the organization as they happen",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := wsURL(serverURL)
		if err != nil {
			return err
		}
		hdr := http.Header{}
		hdr.Set("X-Organization-Id", orgID)
		c, _, err := websocket.DefaultDialer.Dial(u, hdr)
		if err != nil {
			return fmt.Errorf("dial %s: %w", u, err)
		}
		defer func() { _ = c.Close() }()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		go func() {
			<-ctx.Done()
			_ = c.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = c.Close()
		}()

		for {
			var msg wsMessage
			if err := c.ReadJSON(&msg); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			switch msg.Type {
			case "ping":
				_ = c.WriteJSON(wsMessage{Type: "pong"})
			case "delivery":
				if jsonOutput {
					fmt.Println(string(msg.Payload))
					continue
				}
				var rec model.DeliveryRecord
				if err := json.Unmarshal(msg.Payload, &rec); err != nil {
					fmt.Fprintf(os.Stderr, "Error decoding record: %v\n", err)
					continue
				}
				fmt.Printf("%s\t%s\n", rec.SubscriptionID, formatRecord(rec))
			}
		}
	},
}

// wsURL maps the API base URL to the delivery feed endpoint.
func wsURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/deliveries/ws"
	return u.String(), nil
}
