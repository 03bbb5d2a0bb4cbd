package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/nomis52/cloudstats/activity"
	"github.com/nomis52/cloudstats/buildinfo"
	"github.com/nomis52/cloudstats/server/handlers"
)

const defaultServerURL = "http://localhost:8080"

type Args struct {
	ServerURL   string
	Timeout     time.Duration
	JSON        bool
	ShowVersion bool
}

// Report is everything the CLI prints.
type Report struct {
	Status     handlers.APIStatusResponse `json:"status"`
	Activities []activity.Snapshot        `json:"activities"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	args := parseArgs()

	if args.ShowVersion {
		fmt.Printf("cloudstats %s\n", buildinfo.Get())
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), args.Timeout)
	defer cancel()

	report, err := fetchReport(ctx, http.DefaultClient, args.ServerURL)
	if err != nil {
		return err
	}

	if args.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return printReport(os.Stdout, report)
}

func parseArgs() Args {
	serverURL := flag.String("server", defaultServerURL, "Base URL of the cloudstats server")
	timeout := flag.Duration("timeout", 10*time.Second, "Request timeout")
	asJSON := flag.Bool("json", false, "Print the raw report as JSON")
	version := flag.Bool("version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nPrints the cloud provisioning activity recorded by a cloudstats server.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	return Args{
		ServerURL:   *serverURL,
		Timeout:     *timeout,
		JSON:        *asJSON,
		ShowVersion: *version,
	}
}

func fetchReport(ctx context.Context, client *http.Client, baseURL string) (*Report, error) {
	baseURL = strings.TrimSuffix(baseURL, "/")

	var report Report
	if err := getJSON(ctx, client, baseURL+"/api/status", &report.Status); err != nil {
		return nil, err
	}
	if err := getJSON(ctx, client, baseURL+"/api/activities", &report.Activities); err != nil {
		return nil, err
	}
	return &report, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e handlers.ErrorResponse
		body, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return fmt.Errorf("fetching %s: %s: %s", url, resp.Status, e.Error)
		}
		return fmt.Errorf("fetching %s: %s", url, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding %s: %w", url, err)
	}
	return nil
}

// printReport writes the activities newest first, one per line.
func printReport(w io.Writer, report *Report) error {
	s := report.Status
	if !s.Active {
		fmt.Fprintln(w, "No cloud is configured.")
	}
	fmt.Fprintf(w, "%d of %d activities", s.Size, s.Capacity)
	if s.NextSweep.NextRun != nil {
		fmt.Fprintf(w, ", next sweep %s", s.NextSweep.NextRun.Format(time.RFC3339))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tCLOUD\tNAME\tNODE\tPHASE\tSTATUS\tDETAILS")
	for i := len(report.Activities) - 1; i >= 0; i-- {
		a := report.Activities[i]
		node := a.Node
		if node == "" {
			node = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			a.StartedAt.Format(time.RFC3339), a.Cloud, a.Name, node, a.Phase, a.Status, details(a))
	}
	return tw.Flush()
}

// details summarizes the attachments of all phases.
func details(a activity.Snapshot) string {
	var parts []string
	for _, p := range a.Phases {
		for _, att := range p.Attachments {
			part := att.Title
			if att.Cause != "" {
				part += ": " + att.Cause
			}
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, "; ")
}
