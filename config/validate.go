package config

import (
	"fmt"
	"strings"
)

// Issue is a problem found by Check. Issues are reported before provisioning starts.
type Issue struct {
	Path    string
	Message string
}

func (i Issue) String() string {
	return i.Path + ": " + i.Message
}

// Check inspects a decoded setup for fields left empty by missing references
// or never filled in. misses are the references the resolver could not satisfy.
func Check(setup *SetupConfig, misses []Miss) []Issue {
	var issues []Issue

	for _, miss := range misses {
		issues = append(issues, Issue{
			Path:    miss.Path,
			Message: fmt.Sprintf("reference %s resolved to nothing", miss.Reference),
		})
	}

	switch setup.Directory.Pattern {
	case PatternSingleton, PatternMVC:
	default:
		issues = append(issues, Issue{
			Path:    "directory:pattern",
			Message: fmt.Sprintf("unknown pattern %q, the single entrypoint layout is used", setup.Directory.Pattern),
		})
	}

	for i, database := range setup.Databases {
		path := fmt.Sprintf("databases:%d", i)

		if database.Plugin == "" && database.Type == "" {
			issues = append(issues, Issue{Path: path + ":plugin", Message: "type or plugin is required"})
		}

		if database.Autoconnect && database.URI == "" && database.Options == nil && database.Type != "sqlite" {
			issues = append(issues, Issue{Path: path, Message: "autoconnect without uri or options"})
		}
	}

	for i, server := range setup.Servers {
		path := fmt.Sprintf("servers:%d", i)

		switch {
		case server.Type == "":
			issues = append(issues, Issue{Path: path + ":type", Message: "type is required"})
		case server.Type == HTTPType:
			if server.Application != nil && server.Application.Reference() == "" {
				issues = append(issues, Issue{Path: path + ":application", Message: "framework or plugin is required"})
			}
		default:
			if server.BindTo == "" && server.Port == 0 {
				issues = append(issues, Issue{
					Path:    path,
					Message: "neither bindTo nor PORT is set, HTTP_PORT must be defined",
				})
			}
		}
	}

	return issues
}

// FormatIssues joins issues one per line.
func FormatIssues(issues []Issue) string {
	lines := make([]string, 0, len(issues))
	for _, issue := range issues {
		lines = append(lines, issue.String())
	}

	return strings.Join(lines, "\n")
}
