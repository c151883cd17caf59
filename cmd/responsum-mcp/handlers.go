package main

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsum/internal/interfaces"
	"github.com/ternarybob/responsum/internal/models"
)

// handleRetrievePassages implements the retrieve_passages tool
func handleRetrievePassages(retrieverService interfaces.RetrieverService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil || query == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Error: query parameter is required"),
				},
			}, nil
		}

		topK := request.GetInt("top_k", 0)
		if topK > 20 {
			topK = 20
		}

		var minScore *float64
		if v := request.GetFloat("min_score", -1); v >= 0 {
			minScore = &v
		}

		result, err := retrieverService.Retrieve(ctx, models.SearchQuery{
			Text:     query,
			TopK:     topK,
			MinScore: minScore,
		})
		if err != nil {
			logger.Error().Err(err).Msg("Retrieval failed")
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("Retrieval error: %v", err)),
				},
			}, nil
		}

		markdown := formatPassages(query, result.Entries)
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(markdown),
			},
		}, nil
	}
}

// handleGetDocument implements the get_document tool
func handleGetDocument(documents interfaces.DocumentStorage, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		docID, err := request.RequireString("document_id")
		if err != nil || docID == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Error: document_id parameter is required"),
				},
			}, nil
		}

		doc, err := documents.GetDocument(docID)
		if err != nil {
			logger.Error().Err(err).Str("doc_id", docID).Msg("GetDocument failed")
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("Document not found: %v", err)),
				},
			}, nil
		}

		markdown := formatDocument(doc)
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(markdown),
			},
		}, nil
	}
}

// handleCorpusStats implements the corpus_stats tool
func handleCorpusStats(documents interfaces.DocumentStorage, vectorIndex interfaces.VectorIndex, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		docCount, err := documents.CountDocuments()
		if err != nil {
			logger.Error().Err(err).Msg("CountDocuments failed")
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("Stats error: %v", err)),
				},
			}, nil
		}

		bySource, err := documents.CountBySourceType()
		if err != nil {
			logger.Error().Err(err).Msg("CountBySourceType failed")
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("Stats error: %v", err)),
				},
			}, nil
		}

		markdown := formatStats(docCount, bySource, vectorIndex.Stats())
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(markdown),
			},
		}, nil
	}
}
