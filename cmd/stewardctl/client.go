package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"text/tabwriter"
	"time"

	"steward/internal/reconcile"
	"steward/internal/steward/models"
)

// apiClient is a thin wrapper over the service's HTTP API.
type apiClient struct {
	base  string
	token string
	http  *http.Client
}

func newAPIClient(base, token string) *apiClient {
	return &apiClient{
		base:  strings.TrimRight(base, "/"),
		token: token,
		http:  &http.Client{Timeout: 5 * time.Minute},
	}
}

func (c *apiClient) do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error       string `json:"error"`
			Description string `json:"error_description"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			if apiErr.Description != "" {
				return fmt.Errorf("%s: %s", apiErr.Error, apiErr.Description)
			}
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (c *apiClient) startRun(w io.Writer, policies []string, dryRun bool) error {
	req := map[string]any{"dry_run": dryRun}
	if len(policies) > 0 {
		req["policies"] = policies
	}
	var run models.AuditRun
	if err := c.do(http.MethodPost, "/steward/runs", req, &run); err != nil {
		return err
	}

	fmt.Fprintf(w, "run %s: %s\n", run.ID, run.Status)
	if run.Error != "" {
		fmt.Fprintf(w, "error: %s\n", run.Error)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "POLICY\tFINDINGS")
	for _, id := range run.Policies {
		fmt.Fprintf(tw, "%s\t%d\n", id, run.FindingCounts[id])
	}
	tw.Flush()
	if n := len(run.Actions); n > 0 {
		fmt.Fprintf(w, "remediations applied: %d\n", n)
	}
	return nil
}

func (c *apiClient) listRuns(w io.Writer, limit int) error {
	var resp struct {
		Runs []models.AuditRun `json:"runs"`
	}
	if err := c.do(http.MethodGet, fmt.Sprintf("/steward/runs?limit=%d", limit), nil, &resp); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tDRY\tSTARTED\tFINDINGS\tACTIONS")
	for _, run := range resp.Runs {
		total := 0
		for _, n := range run.FindingCounts {
			total += n
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%d\t%d\n",
			run.ID, run.Status, run.DryRun,
			run.StartedAt.Format(time.RFC3339), total, len(run.Actions))
	}
	return tw.Flush()
}

func (c *apiClient) listPolicies(w io.Writer) error {
	var resp struct {
		Policies []models.Policy `json:"policies"`
	}
	if err := c.do(http.MethodGet, "/steward/policies", nil, &resp); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tENABLED\tAUTO-FIX")
	for _, p := range resp.Policies {
		fix := "-"
		if p.AutoFixable {
			fix = fmt.Sprintf("%t", p.AutoFixEnabled)
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", p.ID, p.Category, p.Enabled, fix)
	}
	return tw.Flush()
}

func (c *apiClient) togglePolicy(w io.Writer, id, action string, enabled bool) error {
	var policy models.Policy
	path := fmt.Sprintf("/steward/policies/%s/%s", url.PathEscape(id), action)
	if err := c.do(http.MethodPost, path, map[string]bool{"enabled": enabled}, &policy); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: enabled=%t auto_fix_enabled=%t\n", policy.ID, policy.Enabled, policy.AutoFixEnabled)
	return nil
}

func (c *apiClient) coverage(w io.Writer, from, to string) error {
	query := url.Values{}
	if from != "" {
		query.Set("from", from)
	}
	if to != "" {
		query.Set("to", to)
	}
	path := "/integrity/coverage"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var resp struct {
		Gaps  []reconcile.CoverageGap `json:"gaps"`
		Count int                     `json:"count"`
	}
	if err := c.do(http.MethodGet, path, nil, &resp); err != nil {
		return err
	}
	if resp.Count == 0 {
		fmt.Fprintln(w, "no coverage gaps")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ELECTION\tDATE\tJURISDICTION\tTITLE")
	for _, g := range resp.Gaps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			g.ElectionID, g.Date.Format("2006-01-02"), g.Jurisdiction, g.Title)
	}
	return tw.Flush()
}

func (c *apiClient) summary(w io.Writer) error {
	var sum struct {
		TotalCandidates  int            `json:"total_candidates"`
		AuthenticPolling int            `json:"authentic_polling"`
		AuthenticVotes   int            `json:"authentic_votes"`
		UnsourcedPolling int            `json:"unsourced_polling"`
		StalePolling     int            `json:"stale_polling"`
		Tiers            map[string]int `json:"tiers"`
	}
	if err := c.do(http.MethodGet, "/integrity/summary", nil, &sum); err != nil {
		return err
	}

	fmt.Fprintf(w, "candidates: %d\n", sum.TotalCandidates)
	fmt.Fprintf(w, "authentic polling: %d, authentic votes: %d\n", sum.AuthenticPolling, sum.AuthenticVotes)
	fmt.Fprintf(w, "unsourced polling: %d, stale polling: %d\n", sum.UnsourcedPolling, sum.StalePolling)
	for _, tier := range []string{"excellent", "good", "fair", "poor"} {
		if n, ok := sum.Tiers[tier]; ok {
			fmt.Fprintf(w, "  %s: %d\n", tier, n)
		}
	}
	return nil
}
