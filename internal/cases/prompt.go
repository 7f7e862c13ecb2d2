package cases

import (
	"fmt"
	"strings"

	"github.com/claimy/claimy-admin/internal/models"
)

// BuildPrompt renders a plain-text brief of the case for an assistant
// model, followed by the review checklist.
func BuildPrompt(record models.Case) string {
	lines := []string{fmt.Sprintf("Case ID: %s", record.ID)}
	add := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			lines = append(lines, fmt.Sprintf("%s: %s", label, value))
		}
	}

	add("Store", record.StoreName)
	add("Product", record.ProductName)
	add("User Email", record.UserEmail)
	if record.ManualAnalysis != nil {
		add("Manual Analysis", record.ManualAnalysis.Text)
	}
	if record.Resolution != nil {
		add("Resolution Code", record.Resolution.Code)
	}
	lines = append(lines,
		fmt.Sprintf("Status: %s", record.Status),
		fmt.Sprintf("Emails Count: %d", len(record.Emails)),
	)

	return strings.Join(lines, "\n") +
		"\n\nNext steps:\n- Summarize key issue\n- Decide on shop outreach tone\n- Highlight missing data if any"
}
