// internal/ui/listing.go
package ui

import (
	"fmt"
	"strings"
	"time"

	"openai-cli/internal/db"
	"openai-cli/internal/models"
)

// ProviderRow is one configured provider as shown by /models
type ProviderRow struct {
	Name         string
	Kind         string
	DefaultModel string
	Usable       bool
}

// ModelListing renders the provider table and the active model list
func ModelListing(rows []ProviderRow, active []models.Spec) string {
	var content strings.Builder

	content.WriteString(TitleStyle.Render("PROVIDERS"))
	content.WriteString("\n")
	if len(rows) == 0 {
		content.WriteString(DimStyle.Render("No providers configured."))
		content.WriteString("\n")
	}
	for _, r := range rows {
		status := StatusOK.Render("●")
		if !r.Usable {
			status = DimStyle.Render("○")
		}
		name := ProviderStyle(r.Name).Width(12).Render(r.Name)
		line := fmt.Sprintf("%-10s %s", r.Kind, r.DefaultModel)
		content.WriteString("  " + status + " " + name + DimStyle.Render(line) + "\n")
	}

	content.WriteString("\n")
	content.WriteString(TitleStyle.Render("ACTIVE"))
	content.WriteString("\n")
	if len(active) == 0 {
		content.WriteString("  " + DimStyle.Render("default") + "\n")
	}
	for _, s := range active {
		content.WriteString("  " + ProviderStyle(s.Provider).Render(s.String()) + "\n")
	}
	return content.String()
}

// CatalogListing renders catalog commands
func CatalogListing(cmds []db.Command) string {
	var content strings.Builder

	content.WriteString(TitleStyle.Render("COMMANDS"))
	content.WriteString("\n")

	if len(cmds) == 0 {
		content.WriteString(DimStyle.Render("No commands found."))
		content.WriteString("\n")
		content.WriteString(DimStyle.Render("Add one with: openai-cli commands add <name> --prompt ..."))
		content.WriteString("\n")
		return content.String()
	}

	header := fmt.Sprintf("  %-12s  %-36s  %-16s  %s", "Name", "Description", "Updated", "Models")
	content.WriteString(DimStyle.Render(header))
	content.WriteString("\n")
	content.WriteString(DimStyle.Render(strings.Repeat("-", 90)))
	content.WriteString("\n")

	for _, c := range cmds {
		desc := c.Description
		if len(desc) > 34 {
			desc = desc[:34] + ".."
		}

		timeStr := c.UpdatedAt.Format("2006-01-02 15:04")
		if time.Since(c.UpdatedAt) < 24*time.Hour {
			timeStr = c.UpdatedAt.Format("Today 15:04")
		}

		specs := "default"
		if len(c.Models) > 0 {
			names := make([]string, len(c.Models))
			for i, s := range c.Models {
				names[i] = s.String()
			}
			specs = strings.Join(names, ", ")
		}

		line := fmt.Sprintf("%-12s  %-36s  %-16s  %s", c.Name, desc, timeStr, specs)
		content.WriteString("  " + line + "\n")
	}
	return content.String()
}
