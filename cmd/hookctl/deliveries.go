package main

import (
	"context"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"hookrelay/internal/model"
)

var deliveriesCmd = &cobra.Command{
	Use:   "deliveries <subscription-id>",
	Short: "Show recent delivery attempts for a subscription, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		var page struct {
			Items []model.DeliveryRecord `json:"items"`
		}
		path := fmt.Sprintf("/v1/subscriptions/%s/deliveries?limit=%d", url.PathEscape(args[0]), limit)
		if err := client.do(context.Background(), "GET", path, nil, &page); err != nil {
			return err
		}
		if jsonOutput {
			printJSON(page.Items)
		} else {
			printDeliveryTable(page.Items)
		}
		return nil
	},
}

func init() {
	deliveriesCmd.Flags().Int("limit", 20, "number of records to show (max 100)")
}
