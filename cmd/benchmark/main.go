package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"rfprag/config"
	"rfprag/internal/adapter/analyzer"
	"rfprag/internal/adapter/embedding"
	"rfprag/internal/adapter/store"
	"rfprag/internal/adapter/vectorindex"
	"rfprag/internal/port"
	"rfprag/internal/retry"
	"rfprag/internal/usecase"
)

func main() {
	indexPath := flag.String("index", ".", "Path to the rfprag working directory")
	projectID := flag.Int64("p", 0, "Project ID")
	query := flag.String("q", "", "Query to test")
	topK := flag.Int("k", 10, "Number of results")
	flag.Parse()

	if *query == "" || *projectID == 0 {
		fmt.Println("Usage: go run ./cmd/benchmark -index . -p 12 -q \"query\"")
		fmt.Println("\nReports:")
		fmt.Println("  1. Embedding service and index health")
		fmt.Println("  2. Similarity of the top matches for the query")
		fmt.Println("  3. How much of the token budget the packed context uses")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*indexPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	st, err := store.NewBoltStore(config.IndexDBPath(*indexPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening index: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	embedder, index, err := setupIndex(st, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Semantic search not available: %v\n", err)
		os.Exit(1)
	}

	stats := index.Stats(*projectID)
	if stats.Chunks == 0 {
		fmt.Fprintf(os.Stderr, "Project %d has no chunks - run 'rfprag index -p %d'\n", *projectID, *projectID)
		os.Exit(1)
	}

	fmt.Println("RETRIEVAL BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Project %d: %d documents, %d chunks\n", *projectID, stats.Documents, stats.Chunks)
	fmt.Printf("Model: %s (%s)\n", embedder.ModelName(), cfg.Embedding.Provider)
	fmt.Printf("Dimension: %d\n", embedder.Dimension())
	fmt.Println()

	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	ctx := context.Background()
	batch := usecase.NewBatchEmbedder(embedder, 1, retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxDelay:    cfg.Retry.MaxDelay,
	}, nil, nil)

	start := time.Now()
	queryVec, err := batch.Embed(ctx, []string{*query})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedding error: %v\n", err)
		os.Exit(1)
	}
	embedTime := time.Since(start)
	fmt.Printf("Query embedded: %d dimensions in %s\n\n", len(queryVec[0]), embedTime.Round(time.Millisecond))

	start = time.Now()
	results, err := index.Search(ctx, *projectID, queryVec[0], *topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
		os.Exit(1)
	}
	searchTime := time.Since(start)

	if len(results) == 0 {
		fmt.Println("No matches.")
		return
	}

	fmt.Printf("Top %d semantic matches:\n\n", len(results))

	totalScore := 0.0
	for i, r := range results {
		preview := r.Chunk.Text
		if len(preview) > 150 {
			preview = preview[:150] + "..."
		}
		preview = strings.ReplaceAll(preview, "\n", " ")

		totalScore += r.Score

		rating := "LOW"
		if r.Score > 0.7 {
			rating = "HIGH"
		} else if r.Score > 0.5 {
			rating = "GOOD"
		} else if r.Score > 0.3 {
			rating = "OK"
		}

		fmt.Printf("%d. [%s %.3f] %s #%d\n", i+1, rating, r.Score, r.Chunk.DocumentID, r.Chunk.Sequence)
		fmt.Printf("   %s\n\n", preview)
	}

	packed := usecase.PackContext(*projectID, *query, results, cfg.Retrieve.TokenBudget, analyzer.NewTokenizer())

	avgScore := totalScore / float64(len(results))
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Average similarity: %.3f\n", avgScore)
	fmt.Printf("  Top-1 similarity:   %.3f\n", results[0].Score)
	fmt.Printf("  Packed chunks:      %d / %d\n", len(packed.Chunks), len(results))
	fmt.Printf("  Budget used:        %d / %d tokens\n", packed.UsedTokens, packed.BudgetTokens)
	fmt.Printf("  Search latency:     %s\n", searchTime.Round(time.Microsecond))

	if avgScore > 0.5 {
		fmt.Println("  Status: GOOD - semantic search working well")
	} else if avgScore > 0.3 {
		fmt.Println("  Status: OK - results are somewhat related")
	} else {
		fmt.Println("  Status: POOR - may need better embeddings or re-indexing")
	}
}

func setupIndex(st *store.BoltStore, cfg *config.Config) (port.EmbeddingService, *vectorindex.Index, error) {
	ec := embedding.Config{
		BaseURL:           cfg.Embedding.BaseURL,
		Model:             cfg.Embedding.Model,
		Dimension:         cfg.Embedding.Dimension,
		Timeout:           cfg.Embedding.Timeout,
		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
	}

	var (
		embedder port.EmbeddingService
		err      error
	)
	switch cfg.Embedding.Provider {
	case "ollama":
		embedder, err = embedding.NewOllamaEmbedder(ec)
	case "openai":
		embedder, err = embedding.NewOpenAIEmbedder(cfg.Embedding.APIKeyEnv, ec)
	case "compatible":
		embedder, err = embedding.NewOpenAICompatibleEmbedder(ec)
	case "hash", "":
		embedder = embedding.NewHashEmbedder(cfg.Embedding.Dimension, analyzer.NewTokenizer())
	default:
		return nil, nil, fmt.Errorf("unsupported provider: %s", cfg.Embedding.Provider)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("embedder init failed: %w", err)
	}

	data, err := st.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("index load failed: %w", err)
	}
	index := vectorindex.New(embedder.Dimension(), nil)
	if err := index.Restore(data); err != nil {
		return nil, nil, fmt.Errorf("index restore failed: %w", err)
	}
	return embedder, index, nil
}
