package web

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/gin-gonic/gin"

	"github.com/hongjian03/FinalPSAssistant-sub000/internal/retrieval"
	"github.com/hongjian03/FinalPSAssistant-sub000/library/log"
)

// Retriever is the facade surface the HTTP handlers consume.
type Retriever interface {
	Search(ctx context.Context, query string) retrieval.SearchResponse
	Scrape(ctx context.Context, url string) retrieval.ScrapeResult
	SearchAndEnrich(ctx context.Context, query string, maxResults int) retrieval.SearchResponse
	Research(ctx context.Context, institution, program string, maxResults int) retrieval.SearchResponse
}

// Controller binds the retrieval facade to the JSON API routes.
type Controller struct {
	retriever Retriever
	logger    logSDK.Logger
}

// NewController constructs a Controller.
func NewController(retriever Retriever) (*Controller, error) {
	if retriever == nil {
		return nil, errors.New("retriever is required")
	}
	return &Controller{
		retriever: retriever,
		logger:    log.Logger.Named("web"),
	}, nil
}

// Search handles GET /api/search?q=...
func (c *Controller) Search(ctx *gin.Context) {
	query := strings.TrimSpace(ctx.Query("q"))
	if query == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}

	ctx.JSON(http.StatusOK, c.retriever.Search(ctx.Request.Context(), query))
}

// Scrape handles GET /api/scrape?url=...
func (c *Controller) Scrape(ctx *gin.Context) {
	target := strings.TrimSpace(ctx.Query("url"))
	if target == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	result := c.retriever.Scrape(ctx.Request.Context(), target)
	if !result.Ok() {
		ctx.JSON(http.StatusBadGateway, result)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// SearchAndEnrich handles GET /api/enrich?q=...&max=...
func (c *Controller) SearchAndEnrich(ctx *gin.Context) {
	query := strings.TrimSpace(ctx.Query("q"))
	if query == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}

	maxResults := 0
	if raw := ctx.Query("max"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "max must be a non-negative integer"})
			return
		}
		maxResults = n
	}

	ctx.JSON(http.StatusOK, c.retriever.SearchAndEnrich(ctx.Request.Context(), query, maxResults))
}

type researchRequest struct {
	Institution string `json:"institution" binding:"required"`
	Program     string `json:"program"`
	MaxResults  int    `json:"max_results"`
}

// Research handles POST /api/research with an institution/program pair.
func (c *Controller) Research(ctx *gin.Context) {
	var req researchRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp := c.retriever.Research(ctx.Request.Context(), req.Institution, req.Program, req.MaxResults)
	ctx.JSON(http.StatusOK, resp)
}
