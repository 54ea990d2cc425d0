package cmd

import (
	"context"

	gconfig "github.com/Laisky/go-config/v2"
	gcmd "github.com/Laisky/go-utils/v6/cmd"
	"github.com/Laisky/zap"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/hongjian03/FinalPSAssistant-sub000/internal/mcp"
	"github.com/hongjian03/FinalPSAssistant-sub000/internal/retrieval"
	"github.com/hongjian03/FinalPSAssistant-sub000/internal/retrieval/cache"
	"github.com/hongjian03/FinalPSAssistant-sub000/internal/retrieval/extract"
	"github.com/hongjian03/FinalPSAssistant-sub000/internal/retrieval/rank"
	"github.com/hongjian03/FinalPSAssistant-sub000/internal/retrieval/scrape"
	"github.com/hongjian03/FinalPSAssistant-sub000/internal/retrieval/serper"
	"github.com/hongjian03/FinalPSAssistant-sub000/internal/retrieval/toolsearch"
	"github.com/hongjian03/FinalPSAssistant-sub000/internal/web"
	"github.com/hongjian03/FinalPSAssistant-sub000/library/log"
)

const (
	searchCacheSize = 512
	scrapeCacheSize = 1024
)

var apiCMD = &cobra.Command{
	Use:   "api",
	Short: "api",
	Long:  `retrieval API and MCP service`,
	Args:  gcmd.NoExtraArgs,
	PreRun: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		if err := initialize(ctx, cmd); err != nil {
			log.Logger.Panic("init", zap.Error(err))
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		runAPI(context.Background())
	},
}

func init() {
	rootCMD.AddCommand(apiCMD)
}

func runAPI(ctx context.Context) {
	facade := buildFacade(ctx)

	mcpServer, err := mcp.NewServer(facade, log.Logger)
	if err != nil {
		log.Logger.Panic("new mcp server", zap.Error(err))
	}

	ctl, err := web.NewController(facade)
	if err != nil {
		log.Logger.Panic("new controller", zap.Error(err))
	}

	web.RunServer(gconfig.Shared.GetString("listen"), ctl, mcpServer.Handler())
}

func buildFacade(ctx context.Context) *retrieval.Facade {
	chain, err := retrieval.NewSearchChain(buildEngines())
	if err != nil {
		log.Logger.Panic("new search chain, configure a tool server or a serper key", zap.Error(err))
	}

	scraper := buildScraper()
	searchCache, scrapeCache := buildCaches()

	// Enrichment fetches share the facade's scrape store, so a URL scraped
	// on either path is served from cache afterwards.
	cachedScraper, err := retrieval.NewCachedScraper(scraper, scrapeCache)
	if err != nil {
		log.Logger.Panic("new cached scraper", zap.Error(err))
	}

	enricher, err := rank.NewEnricher(cachedScraper)
	if err != nil {
		log.Logger.Panic("new enricher", zap.Error(err))
	}

	facade, err := retrieval.NewFacade(chain, scraper, enricher, searchCache, scrapeCache)
	if err != nil {
		log.Logger.Panic("new facade", zap.Error(err))
	}
	return facade
}

// buildEngines assembles the fallback order: tool invocation first, the
// direct search API second. Engines without configuration are skipped.
func buildEngines() []retrieval.Engine {
	var engines []retrieval.Engine

	if serverURL := gconfig.Shared.GetString("settings.retrieval.tool_server.url"); serverURL != "" {
		session, err := toolsearch.NewSession(serverURL,
			toolsearch.WithHeaders(gconfig.Shared.GetStringMapString("settings.retrieval.tool_server.headers")),
		)
		if err != nil {
			log.Logger.Panic("new tool session", zap.Error(err))
		}

		engine, err := toolsearch.NewEngine(session)
		if err != nil {
			log.Logger.Panic("new tool engine", zap.Error(err))
		}
		engines = append(engines, engine)
	}

	if apiKey := gconfig.Shared.GetString("settings.retrieval.serper.api_key"); apiKey != "" {
		var opts []serper.Option
		if endpoint := gconfig.Shared.GetString("settings.retrieval.serper.endpoint"); endpoint != "" {
			opts = append(opts, serper.WithEndpoint(endpoint))
		}
		if params := gconfig.Shared.GetStringMapString("settings.retrieval.serper.params"); len(params) != 0 {
			extra := make(map[string]any, len(params))
			for k, v := range params {
				extra[k] = v
			}
			opts = append(opts, serper.WithDefaultParameters(extra))
		}
		engines = append(engines, serper.NewEngine(apiKey, opts...))
	}

	return engines
}

func buildScraper() retrieval.Scraper {
	readerBase := gconfig.Shared.GetString("settings.retrieval.reader.base_url")
	if readerBase == "" {
		readerBase = scrape.DefaultReaderBase
	}

	direct, err := scrape.NewDirect(extract.New())
	if err != nil {
		log.Logger.Panic("new direct fetcher", zap.Error(err))
	}

	chain, err := scrape.NewChain(scrape.NewReader(readerBase), direct)
	if err != nil {
		log.Logger.Panic("new scrape chain", zap.Error(err))
	}
	return chain
}

// buildCaches returns the search and scrape stores. Both always carry the
// in-process LRU level; a Redis level is added when an address is configured.
func buildCaches() (cache.Store[retrieval.SearchResponse], cache.Store[retrieval.ScrapeResult]) {
	searchMem, err := cache.NewMemory[retrieval.SearchResponse](searchCacheSize, retrieval.NormalizeQuery)
	if err != nil {
		log.Logger.Panic("new search cache", zap.Error(err))
	}

	scrapeMem, err := cache.NewMemory[retrieval.ScrapeResult](scrapeCacheSize, retrieval.NormalizeURL)
	if err != nil {
		log.Logger.Panic("new scrape cache", zap.Error(err))
	}

	redisAddr := gconfig.Shared.GetString("settings.retrieval.redis.addr")
	if redisAddr == "" {
		return searchMem, scrapeMem
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: gconfig.Shared.GetString("settings.retrieval.redis.password"),
		DB:       gconfig.Shared.GetInt("settings.retrieval.redis.db"),
	})

	searchRedis, err := cache.NewRedis[retrieval.SearchResponse](rdb, "retrieval:search", 0, retrieval.NormalizeQuery)
	if err != nil {
		log.Logger.Panic("new search redis cache", zap.Error(err))
	}
	scrapeRedis, err := cache.NewRedis[retrieval.ScrapeResult](rdb, "retrieval:scrape", 0, retrieval.NormalizeURL)
	if err != nil {
		log.Logger.Panic("new scrape redis cache", zap.Error(err))
	}

	searchTiered, err := cache.NewTiered[retrieval.SearchResponse](searchMem, searchRedis)
	if err != nil {
		log.Logger.Panic("new tiered search cache", zap.Error(err))
	}
	scrapeTiered, err := cache.NewTiered[retrieval.ScrapeResult](scrapeMem, scrapeRedis)
	if err != nil {
		log.Logger.Panic("new tiered scrape cache", zap.Error(err))
	}

	return searchTiered, scrapeTiered
}
