package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AxeWatch/go-api/axewatch"
	"github.com/AxeWatch/go-api/axewatch/queue"
)

var (
	apiBase   string
	clearURL  string
	brokerURL string
	queueName string
)

var rootCmd = &cobra.Command{
	Use:   "axewatchctl",
	Short: "Admin client for the axewatch scan API",
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the aggregated scan statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getJSON("/api/v1/cache/stats")
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and clear the scan cache",
}

var cacheGetCmd = &cobra.Command{
	Use:   "get <url>",
	Short: "Fetch the cached snapshot for a URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getJSON("/api/v1/cache?url=" + url.QueryEscape(args[0]))
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the scan cache, or one URL with --url",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "/api/v1/cache/clear"
		if clearURL != "" {
			path += "?url=" + url.QueryEscape(clearURL)
		}
		return postJSON(path, nil)
	},
}

var cacheURLsCmd = &cobra.Command{
	Use:   "urls",
	Short: "List the scanned and scan-trigger URL registries",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getJSON("/api/v1/cache/urls")
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit <file.json>",
	Short: "Submit a scan result payload from a JSON file",
	Long: `Submit a scan result payload from a JSON file.

By default the payload is POSTed to the API. With --broker it is published
to the AMQP scan-results queue instead, exercising the same ingestion path
the browser-side scanner uses in queue-based deployments.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read payload file: %w", err)
		}

		// Validate the payload shape before sending it anywhere.
		var sub axewatch.ScanSubmission
		if err := json.Unmarshal(data, &sub); err != nil {
			return fmt.Errorf("parse payload: %w", err)
		}
		if sub.URL == "" {
			return fmt.Errorf("payload is missing required field: url")
		}

		if brokerURL != "" {
			if err := queue.Send(brokerURL, queueName, string(data)); err != nil {
				return fmt.Errorf("publish to queue %s: %w", queueName, err)
			}
			fmt.Printf("published scan for %s to queue %s\n", sub.URL, queueName)
			return nil
		}
		return postJSON("/api/v1/scan", data)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiBase, "api", "http://localhost:8090", "base URL of the axewatch API")

	cacheClearCmd.Flags().StringVar(&clearURL, "url", "", "clear only this URL's snapshot")

	submitCmd.Flags().StringVar(&brokerURL, "broker", "", "AMQP broker URL; publish to the queue instead of the API")
	submitCmd.Flags().StringVar(&queueName, "queue", "scan-results", "AMQP queue name used with --broker")

	cacheCmd.AddCommand(cacheGetCmd, cacheClearCmd, cacheURLsCmd)
	rootCmd.AddCommand(statsCmd, cacheCmd, submitCmd)
}

func getJSON(path string) error {
	resp, err := http.Get(apiBase + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printBody(resp)
}

func postJSON(path string, body []byte) error {
	resp, err := http.Post(apiBase+path, "application/json", strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printBody(resp)
}

func printBody(resp *http.Response) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	// Re-indent JSON payloads for readability; print anything else as-is.
	var pretty map[string]interface{}
	if err := json.Unmarshal(data, &pretty); err == nil {
		out, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Println(string(out))
	} else {
		fmt.Println(string(data))
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("API returned %s", resp.Status)
	}
	return nil
}
