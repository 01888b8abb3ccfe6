package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// syncFolderTool returns the tool definition for sync_folder
func syncFolderTool() mcp.Tool {
	return mcp.Tool{
		Name:        "sync_folder",
		Description: "Incrementally synchronize a folder into the vector index. Unchanged files are skipped, renames are detected without re-embedding, and deleted files are cleaned up.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the folder to synchronize (becomes the scope root)",
				},
			},
			Required: []string{"path"},
		},
	}
}

// searchIndexTool returns the tool definition for search_index
func searchIndexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_index",
		Description: "Search the vector index with a natural language query",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query text",
				},
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Optional scope root to search within; omit to search all indexed folders",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     5,
					"minimum":     1,
					"maximum":     100,
				},
			},
			Required: []string{"query"},
		},
	}
}

// indexStatusTool returns the tool definition for index_status
func indexStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_status",
		Description: "Report how many files and chunks are indexed for a folder",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path of the scope root to inspect",
				},
			},
			Required: []string{"path"},
		},
	}
}
