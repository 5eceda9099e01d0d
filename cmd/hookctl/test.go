package main

import (
	"context"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

type testResult struct {
	Success      bool   `json:"success"`
	StatusCode   *int   `json:"statusCode"`
	ErrorMessage string `json:"errorMessage"`
	DurationMs   int64  `json:"durationMs"`
}

var testCmd = &cobra.Command{
	Use:   "test <subscription-id>",
	Short: "Send a signed webhook.test delivery to a subscription",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var res testResult
		if err := client.do(context.Background(), "POST", "/v1/subscriptions/"+url.PathEscape(args[0])+"/test", nil, &res); err != nil {
			return err
		}
		if jsonOutput {
			printJSON(res)
			return nil
		}
		if res.Success {
			fmt.Printf("delivered: HTTP %d in %dms\n", *res.StatusCode, res.DurationMs)
			return nil
		}
		if res.StatusCode != nil {
			fmt.Printf("failed: HTTP %d in %dms: %s\n", *res.StatusCode, res.DurationMs, res.ErrorMessage)
		} else {
			fmt.Printf("failed after %dms: %s\n", res.DurationMs, res.ErrorMessage)
		}
		return nil
	},
}
