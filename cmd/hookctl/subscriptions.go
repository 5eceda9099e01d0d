package main

import (
	"context"

	"github.com/spf13/cobra"

	"hookrelay/internal/model"
)

var createCmd = &cobra.Command{
	Use:   "create <url> <event>...",
	Short: "Create a webhook subscription",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, _ := cmd.Flags().GetString("secret")
		req := model.SubscriptionRequest{URL: args[0], Events: args[1:], Secret: secret}
		var sub model.Subscription
		if err := client.do(context.Background(), "POST", "/v1/subscriptions", req, &sub); err != nil {
			return err
		}
		if jsonOutput {
			printJSON(sub)
		} else {
			printSubscription(sub)
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List webhook subscriptions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var all []model.Subscription
		cursor := ""
		for {
			var page struct {
				Items      []model.Subscription `json:"items"`
				NextCursor string               `json:"nextCursor"`
			}
			if err := client.do(context.Background(), "GET", "/v1/subscriptions?cursor="+cursor, nil, &page); err != nil {
				return err
			}
			all = append(all, page.Items...)
			if page.NextCursor == "" {
				break
			}
			cursor = page.NextCursor
		}
		if jsonOutput {
			printJSON(all)
		} else {
			printSubscriptionTable(all)
		}
		return nil
	},
}

func init() {
	createCmd.Flags().String("secret", "", "signing secret (generated when empty)")
}
