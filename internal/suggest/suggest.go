// Package suggest asks Gemini for import hints: which columns hold which
// fields, and likely categories for uncategorized rows. Suggestions are
// advisory; the caller presents them for review and the import pipeline
// never depends on them.
package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"finledger/internal/core"
	"finledger/internal/importer"
)

const DefaultModelName = "gemini-2.0-flash"

type Client struct {
	genai *genai.Client
	model string
}

// NewClient reads API credentials from the environment (GEMINI_API_KEY or
// GOOGLE_API_KEY), like the rest of the genai SDK.
func NewClient(ctx context.Context) (*Client, error) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Client{genai: c, model: DefaultModelName}, nil
}

// SuggestColumnMapping asks the model which columns hold the date,
// description, amount and optional external id, given the header row and a
// few sample rows.
func (c *Client) SuggestColumnMapping(ctx context.Context, headers []string, sampleRows [][]string) (importer.ColumnMapping, error) {
	var sb strings.Builder
	sb.WriteString(
		"You are a bank statement column classifier.\n\n" +
			"Task:\n" +
			"- Given a CSV header row and sample rows, identify which column index holds each field.\n" +
			"- Output STRICT JSON only (no comments, no extra text).\n" +
			"- Output one JSON object with these fields, each an integer column index (0-based) or -1 if absent:\n" +
			"- \"date\": the transaction date column\n" +
			"- \"description\": the free-text description column\n" +
			"- \"amount\": the signed amount column\n" +
			"- \"externalId\": a bank-assigned unique transaction id column, or -1\n\n" +
			"Return ONLY valid raw JSON.\n" +
			"Do NOT wrap the response in code fences.\n" +
			"Do NOT use ```json or any Markdown.\n\n")

	sb.WriteString("Header: " + strings.Join(headers, " | ") + "\n")
	for i, row := range sampleRows {
		fmt.Fprintf(&sb, "Row %d: %s\n", i+1, strings.Join(row, " | "))
	}

	var out struct {
		Date        int `json:"date"`
		Description int `json:"description"`
		Amount      int `json:"amount"`
		ExternalID  int `json:"externalId"`
	}
	if err := c.generateJSON(ctx, sb.String(), &out); err != nil {
		return importer.ColumnMapping{}, err
	}

	mapping := importer.ColumnMapping{
		Date:        out.Date,
		Description: out.Description,
		Amount:      out.Amount,
		ExternalID:  out.ExternalID,
	}
	if err := mapping.Validate(len(headers)); err != nil {
		return importer.ColumnMapping{}, fmt.Errorf("model suggested unusable mapping: %w", err)
	}
	return mapping, nil
}

// SuggestCategories proposes a category id per line number for the given
// row descriptions, restricted to the provided catalog. Lines the model
// cannot place are omitted.
func (c *Client) SuggestCategories(ctx context.Context, rows map[int]string, catalog []core.Category) (map[int]string, error) {
	if len(rows) == 0 {
		return map[int]string{}, nil
	}

	var sb strings.Builder
	sb.WriteString(
		"You are a personal finance transaction categorizer.\n\n" +
			"Task:\n" +
			"- Assign each numbered transaction description to one category id from the catalog.\n" +
			"- Output STRICT JSON only: one object mapping the line number (as a string key) to a category id.\n" +
			"- Omit lines you cannot confidently categorize.\n" +
			"- Use ONLY ids from the catalog.\n\n" +
			"Return ONLY valid raw JSON.\n" +
			"Do NOT wrap the response in code fences.\n\n" +
			"Catalog:\n")
	for _, cat := range catalog {
		fmt.Fprintf(&sb, "- id=%q name=%q side=%s\n", cat.ID, cat.Name, cat.Type)
	}
	sb.WriteString("\nTransactions:\n")
	for line, desc := range rows {
		fmt.Fprintf(&sb, "%d: %s\n", line, desc)
	}

	raw := map[string]string{}
	if err := c.generateJSON(ctx, sb.String(), &raw); err != nil {
		return nil, err
	}

	known := make(map[string]struct{}, len(catalog))
	for _, cat := range catalog {
		known[cat.ID] = struct{}{}
	}

	suggestions := make(map[int]string, len(raw))
	for key, id := range raw {
		var line int
		if _, err := fmt.Sscanf(key, "%d", &line); err != nil {
			continue
		}
		if _, ok := known[id]; !ok {
			continue
		}
		if _, ok := rows[line]; !ok {
			continue
		}
		suggestions[line] = id
	}
	return suggestions, nil
}

func (c *Client) generateJSON(ctx context.Context, prompt string, out any) error {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := c.genai.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return fmt.Errorf("generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return fmt.Errorf("empty response from model")
	}

	clean := cleanModelJSON(rawText)
	if err := json.Unmarshal([]byte(clean), out); err != nil {
		return fmt.Errorf("unmarshal model JSON: %w\nraw response: %s", err, rawText)
	}
	return nil
}

// cleanModelJSON strips Markdown fences the model sometimes adds despite
// instructions.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	return strings.TrimSpace(s)
}
