package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"hookrelay/internal/events"
	"hookrelay/internal/model"
)

var raiseCmd = &cobra.Command{
	Use:   "raise <event-type> [json-data]",
	Short: "Raise an event for the organization",
	Long:  "Raise an event for the organization. By default the event is posted to the API; with --nats it is published on the event bus instead.",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		natsURL, _ := cmd.Flags().GetString("nats")
		prefix, _ := cmd.Flags().GetString("subject-prefix")

		data := json.RawMessage("null")
		if len(args) == 2 {
			if !json.Valid([]byte(args[1])) {
				return fmt.Errorf("data is not valid JSON")
			}
			data = json.RawMessage(args[1])
		}
		ev := model.EventMessage{OrganizationID: orgID, EventType: args[0], Data: data}

		if natsURL != "" {
			pub, err := events.NewPublisher(natsURL, prefix)
			if err != nil {
				return err
			}
			defer pub.Close()
			if err := pub.Publish(ev); err != nil {
				return err
			}
			fmt.Printf("published %s on %s.%s\n", ev.EventType, prefix, ev.EventType)
			return nil
		}

		var res map[string]any
		if err := client.do(context.Background(), "POST", "/v1/events", ev, &res); err != nil {
			return err
		}
		if jsonOutput {
			printJSON(res)
		} else {
			fmt.Printf("accepted %s\n", ev.EventType)
		}
		return nil
	},
}

func init() {
	raiseCmd.Flags().String("nats", "", "publish via NATS at this URL instead of the API")
	raiseCmd.Flags().String("subject-prefix", "hookrelay.events", "NATS subject prefix")
}
