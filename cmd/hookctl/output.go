package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"hookrelay/internal/model"
)

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func printSubscription(s model.Subscription) {
	fmt.Printf("ID:            %s\n", s.ID)
	fmt.Printf("URL:           %s\n", s.URL)
	fmt.Printf("Events:        %s\n", strings.Join(s.Events, ", "))
	fmt.Printf("Active:        %t\n", s.IsActive)
	fmt.Printf("Failures:      %d\n", s.FailureCount)
	if s.Secret != "" {
		fmt.Printf("Secret:        %s\n", s.Secret)
	}
	if s.LastTriggeredAt != nil {
		fmt.Printf("Last success:  %s\n", s.LastTriggeredAt.Format("2006-01-02 15:04:05"))
	}
}

func printSubscriptionTable(subs []model.Subscription) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tACTIVE\tFAILURES\tEVENTS\tURL")
	for _, s := range subs {
		fmt.Fprintf(w, "%s\t%t\t%d\t%s\t%s\n", s.ID, s.IsActive, s.FailureCount, strings.Join(s.Events, ","), s.URL)
	}
	w.Flush()
	fmt.Printf("\n%d subscriptions\n", len(subs))
}

func formatRecord(r model.DeliveryRecord) string {
	status := "-"
	if r.StatusCode != nil {
		status = fmt.Sprint(*r.StatusCode)
	}
	result := "ok"
	if !r.Success {
		result = "FAIL"
	}
	line := fmt.Sprintf("%s\t%s\t%s\t%s\t%dms", r.Timestamp.Format("2006-01-02 15:04:05"), r.EventType, result, status, r.DurationMs)
	if r.ErrorMessage != "" {
		line += "\t" + r.ErrorMessage
	}
	return line
}

func printDeliveryTable(recs []model.DeliveryRecord) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tEVENT\tRESULT\tSTATUS\tDURATION\tERROR")
	for _, r := range recs {
		fmt.Fprintln(w, formatRecord(r))
	}
	w.Flush()
}
