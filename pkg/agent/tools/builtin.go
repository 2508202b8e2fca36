// Package tools provides the builtin tool catalog the model works with.
// Every tool operates on the session's virtual project, never on the
// host filesystem.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/atelier-agent-org/atelier-agent/pkg/tool"
	"github.com/atelier-agent-org/atelier-agent/pkg/types"
	"github.com/atelier-agent-org/atelier-agent/pkg/vfs"
)

// Definitions

var CreateFileTool = types.Tool{
	Name:        "create_file",
	Description: "Create a new file in the project with the given content. Fails if the file already exists.",
	Parameters: types.JSONSchema{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Project-relative path of the file to create",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "The content to write",
			},
		},
		"required": []string{"path", "content"},
	},
	Metadata: map[string]string{
		"category": "filesystem",
	},
}

var ReadFileTool = types.Tool{
	Name:        "read_file",
	Description: "Read the contents of a project file",
	Parameters: types.JSONSchema{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Project-relative path of the file to read",
			},
		},
		"required": []string{"path"},
	},
	Metadata: map[string]string{
		"category": "filesystem",
	},
}

var EditFileSectionTool = types.Tool{
	Name:        "edit_file_section",
	Description: "Edit a file by replacing one exact occurrence of a text section. The search text must match the file exactly, including whitespace.",
	Parameters: types.JSONSchema{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Project-relative path of the file to edit",
			},
			"search": map[string]any{
				"type":        "string",
				"description": "The exact text to find",
			},
			"replace": map[string]any{
				"type":        "string",
				"description": "The text to replace it with",
			},
		},
		"required": []string{"path", "search", "replace"},
	},
	Metadata: map[string]string{
		"category": "filesystem",
	},
}

var DeleteFileTool = types.Tool{
	Name:        "delete_file",
	Description: "Delete a project file",
	Parameters: types.JSONSchema{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Project-relative path of the file to delete",
			},
		},
		"required": []string{"path"},
	},
	Metadata: map[string]string{
		"category": "filesystem",
	},
}

var ListFilesTool = types.Tool{
	Name:        "list_files",
	Description: "List project files, optionally filtered by a glob pattern (e.g. '**/*.go', 'src/**')",
	Parameters: types.JSONSchema{
		"type": "object",
		"properties": map[string]any{
			"pattern": map[string]any{
				"type":        "string",
				"description": "Glob pattern to filter paths; empty lists everything",
			},
		},
	},
	Metadata: map[string]string{
		"category": "search",
	},
}

var SearchFilesTool = types.Tool{
	Name:        "search_files",
	Description: "Search all project files for a text query. Returns matching lines with file paths and line numbers.",
	Parameters: types.JSONSchema{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Text to search for, case-insensitive",
			},
		},
		"required": []string{"query"},
	},
	Metadata: map[string]string{
		"category": "search",
	},
}

// snippetLen bounds the echoed search text in a failed edit, so the
// model can see what it asked for without flooding the transcript.
const snippetLen = 80

// RegisterAll wires every builtin tool against the given project.
func RegisterAll(reg *tool.Registry, project *vfs.Project) error {
	entries := []struct {
		def     types.Tool
		handler tool.Handler
	}{
		{CreateFileTool, HandleCreateFile(project)},
		{ReadFileTool, HandleReadFile(project)},
		{EditFileSectionTool, HandleEditFileSection(project)},
		{DeleteFileTool, HandleDeleteFile(project)},
		{ListFilesTool, HandleListFiles(project)},
		{SearchFilesTool, HandleSearchFiles(project)},
	}
	for _, e := range entries {
		if err := reg.Register(e.def, e.handler); err != nil {
			return err
		}
	}
	return nil
}

// Implementations

type pathArgs struct {
	Path string `json:"path"`
}

type createFileArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type editFileSectionArgs struct {
	Path    string `json:"path"`
	Search  string `json:"search"`
	Replace string `json:"replace"`
}

type listFilesArgs struct {
	Pattern string `json:"pattern"`
}

type searchFilesArgs struct {
	Query string `json:"query"`
}

func HandleCreateFile(project *vfs.Project) tool.Handler {
	return func(ctx context.Context, argsJSON string) tool.Result {
		var args createFileArgs
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return failf("invalid arguments: %v", err)
		}
		if args.Path == "" {
			return failf("path is required")
		}

		rec, err := project.Create(args.Path, args.Content)
		if errors.Is(err, vfs.ErrFileExists) {
			return failf("file %s already exists; use edit_file_section to change it", args.Path)
		}
		if err != nil {
			return failf("%v", err)
		}
		return tool.Result{
			Success: true,
			Message: fmt.Sprintf("Created %s (%d bytes)", rec.Path, len(rec.Content)),
		}
	}
}

func HandleReadFile(project *vfs.Project) tool.Handler {
	return func(ctx context.Context, argsJSON string) tool.Result {
		var args pathArgs
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return failf("invalid arguments: %v", err)
		}
		if args.Path == "" {
			return failf("path is required")
		}

		rec, err := project.Read(args.Path)
		if errors.Is(err, vfs.ErrFileNotFound) {
			return failf("file %s does not exist", args.Path)
		}
		if err != nil {
			return failf("%v", err)
		}
		return tool.Result{Success: true, Message: rec.Content}
	}
}

func HandleEditFileSection(project *vfs.Project) tool.Handler {
	return func(ctx context.Context, argsJSON string) tool.Result {
		var args editFileSectionArgs
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return failf("invalid arguments: %v", err)
		}
		if args.Path == "" || args.Search == "" {
			return failf("path and search are required")
		}

		before, err := project.Read(args.Path)
		if errors.Is(err, vfs.ErrFileNotFound) {
			return failf("file %s does not exist", args.Path)
		}
		if err != nil {
			return failf("%v", err)
		}

		rec, err := project.ReplaceOnce(args.Path, args.Search, args.Replace)
		if errors.Is(err, vfs.ErrTextNotFound) {
			// Echo the attempted search so the model can re-read the
			// file and correct it on the next attempt.
			return failf("TEXT_NOT_FOUND in %s: could not find %q", args.Path, snippet(args.Search))
		}
		if err != nil {
			return failf("%v", err)
		}

		added, removed := vfs.DiffStats(before.Content, rec.Content)
		return tool.Result{
			Success: true,
			Message: fmt.Sprintf("Edited %s (+%d -%d lines)", rec.Path, added, removed),
		}
	}
}

func HandleDeleteFile(project *vfs.Project) tool.Handler {
	return func(ctx context.Context, argsJSON string) tool.Result {
		var args pathArgs
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return failf("invalid arguments: %v", err)
		}
		if args.Path == "" {
			return failf("path is required")
		}

		if err := project.Delete(args.Path); err != nil {
			if errors.Is(err, vfs.ErrFileNotFound) {
				return failf("file %s does not exist", args.Path)
			}
			return failf("%v", err)
		}
		return tool.Result{Success: true, Message: "Deleted " + args.Path}
	}
}

func HandleListFiles(project *vfs.Project) tool.Handler {
	return func(ctx context.Context, argsJSON string) tool.Result {
		var args listFilesArgs
		if argsJSON != "" {
			if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
				return failf("invalid arguments: %v", err)
			}
		}

		records, err := project.List(args.Pattern)
		if err != nil {
			return failf("invalid pattern %q: %v", args.Pattern, err)
		}
		if len(records) == 0 {
			return tool.Result{Success: true, Message: "No files matched."}
		}

		var sb strings.Builder
		for _, rec := range records {
			fmt.Fprintf(&sb, "%s (%d bytes)\n", rec.Path, len(rec.Content))
		}
		return tool.Result{Success: true, Message: sb.String(), Data: len(records)}
	}
}

func HandleSearchFiles(project *vfs.Project) tool.Handler {
	return func(ctx context.Context, argsJSON string) tool.Result {
		var args searchFilesArgs
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return failf("invalid arguments: %v", err)
		}
		if args.Query == "" {
			return failf("query is required")
		}

		matches := project.Search(args.Query)
		if len(matches) == 0 {
			return tool.Result{Success: true, Message: fmt.Sprintf("No matches for %q.", args.Query)}
		}

		var sb strings.Builder
		for _, m := range matches {
			fmt.Fprintf(&sb, "%s:%d: %s\n", m.Path, m.Line, m.Text)
		}
		return tool.Result{Success: true, Message: sb.String(), Data: len(matches)}
	}
}

func failf(format string, a ...any) tool.Result {
	msg := fmt.Sprintf(format, a...)
	return tool.Result{Success: false, Error: msg}
}

func snippet(s string) string {
	if len(s) <= snippetLen {
		return s
	}
	n := snippetLen
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
