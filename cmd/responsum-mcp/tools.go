package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createRetrievePassagesTool returns the retrieve_passages tool definition
func createRetrievePassagesTool() mcp.Tool {
	return mcp.NewTool("retrieve_passages",
		mcp.WithDescription("Retrieve the most relevant passages from the Responsum corpus using semantic search"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural-language search query"),
		),
		mcp.WithNumber("top_k",
			mcp.Description("Maximum passages to return (default: 5, max: 20)"),
		),
		mcp.WithNumber("min_score",
			mcp.Description("Minimum cosine similarity score (0.0 - 1.0)"),
		),
	)
}

// createGetDocumentTool returns the get_document tool definition
func createGetDocumentTool() mcp.Tool {
	return mcp.NewTool("get_document",
		mcp.WithDescription("Retrieve a single document by its unique ID"),
		mcp.WithString("document_id",
			mcp.Required(),
			mcp.Description("Document ID (format: doc_{id})"),
		),
	)
}

// createCorpusStatsTool returns the corpus_stats tool definition
func createCorpusStatsTool() mcp.Tool {
	return mcp.NewTool("corpus_stats",
		mcp.WithDescription("Report corpus statistics: document counts by source type and index size"),
	)
}
