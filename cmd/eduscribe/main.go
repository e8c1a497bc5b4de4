package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"eduscribe/internal/chunker"
	"eduscribe/internal/config"
	"eduscribe/internal/domain"
	hashembed "eduscribe/internal/embedding/hash"
	openaiembed "eduscribe/internal/embedding/openai"
	"eduscribe/internal/extract"
	openaillm "eduscribe/internal/llm/openai"
	"eduscribe/internal/logger"
	"eduscribe/internal/pipeline"
	"eduscribe/internal/store"
	"eduscribe/internal/store/memory"
	"eduscribe/internal/store/sqlite"
	"eduscribe/internal/synth"
	"eduscribe/internal/tui"
	"eduscribe/internal/vectorindex"
	"eduscribe/internal/vectorindex/qdrant"
)

func main() {
	_ = godotenv.Load()

	cfgPath := flag.String("config", "", "Path to config YAML (default: ./config.yaml, then ~/.config/eduscribe/config.yaml)")
	title := flag.String("title", "Untitled Lecture", "Lecture title")
	transcript := flag.String("transcript", "", "Transcript file, one spoken fragment per line")
	out := flag.String("out", "", "Write the final notes markdown to this file")
	withTUI := flag.Bool("tui", false, "Open the interactive query UI after synthesis")
	flag.Parse()
	docs := flag.Args()

	if *transcript == "" && len(docs) == 0 {
		fmt.Println("Usage: eduscribe [flags] [doc1.txt doc2.md ...]")
		fmt.Println("  -transcript file   transcript to synthesize, one fragment per line")
		flag.PrintDefaults()
		os.Exit(1)
	}

	var cfg *config.AppConfig
	var err error
	if *cfgPath != "" {
		cfg, err = config.Load(*cfgPath)
	} else {
		cfg, _, err = config.LoadDefault()
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logg.Sync()

	// Assemble components via interfaces
	var emb domain.Embedder
	switch cfg.Embedder.Type {
	case "hash", "":
		emb = hashembed.NewEmbedder(cfg.Embedder.Dimension)
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			log.Fatalf("openai embedder config missing")
		}
		emb, err = openaiembed.NewClient(openaiembed.Config{
			BaseURL:   cfg.Embedder.OpenAI.BaseURL,
			APIKeyEnv: cfg.Embedder.OpenAI.APIKeyEnv,
			Model:     cfg.Embedder.OpenAI.Model,
			Dimension: cfg.Embedder.Dimension,
			Timeout:   time.Duration(cfg.Embedder.OpenAI.TimeoutSecs) * time.Second,
		})
		if err != nil {
			log.Fatalf("failed to build embedder: %v", err)
		}
	default:
		log.Fatalf("unknown embedder: %s", cfg.Embedder.Type)
	}

	var model domain.CompletionModel
	switch cfg.Model.Type {
	case "none", "":
		// every synthesis stage takes its deterministic fallback
	case "openai":
		if cfg.Model.OpenAI == nil {
			log.Fatalf("openai model config missing")
		}
		model, err = openaillm.NewClient(openaillm.Config{
			BaseURL:   cfg.Model.OpenAI.BaseURL,
			APIKeyEnv: cfg.Model.OpenAI.APIKeyEnv,
			Model:     cfg.Model.OpenAI.Model,
			Timeout:   time.Duration(cfg.Model.OpenAI.TimeoutSecs) * time.Second,
		})
		if err != nil {
			log.Fatalf("failed to build model: %v", err)
		}
	default:
		log.Fatalf("unknown model: %s", cfg.Model.Type)
	}

	var st store.Store
	switch cfg.Store.Type {
	case "memory", "":
		st = memory.NewStore()
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "eduscribe.db"
		}
		st, err = sqlite.NewStore(path)
		if err != nil {
			log.Fatalf("failed to open store: %v", err)
		}
	default:
		log.Fatalf("unknown store: %s", cfg.Store.Type)
	}

	var approx vectorindex.Index
	switch cfg.Index.Type {
	case "none", "":
	case "qdrant":
		if cfg.Index.Qdrant == nil {
			log.Fatalf("qdrant config missing")
		}
		approx = qdrant.NewIndex(qdrant.Config{
			URL:        cfg.Index.Qdrant.URL,
			APIKey:     cfg.Index.Qdrant.APIKey,
			Collection: cfg.Index.Qdrant.Collection,
			Timeout:    time.Duration(cfg.Index.Qdrant.TimeoutSecs) * time.Second,
		})
	default:
		log.Fatalf("unknown index: %s", cfg.Index.Type)
	}

	retriever := vectorindex.NewRetriever(emb, approx, st, logg)
	svc := pipeline.NewService(
		st,
		emb,
		chunker.NewWordChunker(cfg.Chunker.Size),
		extract.NewTextExtractor(),
		retriever,
		approx,
		synth.NewIncremental(model, logg),
		synth.NewFinal(model, logg),
		pipeline.Config{
			WindowSize:  cfg.Pipeline.WindowSize,
			ContextTopK: cfg.Pipeline.ContextTopK,
			Workers:     cfg.Pipeline.Workers,
		},
		logg,
	)

	ctx := context.Background()
	lecture, err := svc.CreateLecture(ctx, *title)
	if err != nil {
		log.Fatalf("failed to create lecture: %v", err)
	}

	for _, path := range docs {
		if _, err := svc.IngestDocument(ctx, lecture.ID, path); err != nil {
			log.Fatalf("failed to ingest %s: %v", path, err)
		}
	}

	if *transcript != "" {
		if err := feedTranscript(ctx, svc, lecture.ID, *transcript); err != nil {
			log.Fatalf("failed to process transcript: %v", err)
		}
	}

	final, err := svc.Finish(ctx, lecture.ID)
	if err != nil {
		log.Fatalf("failed to finish lecture: %v", err)
	}

	if *out != "" {
		if err := os.WriteFile(*out, []byte(final.Markdown), 0o644); err != nil {
			log.Fatalf("failed to write %s: %v", *out, err)
		}
		fmt.Printf("Notes written to %s\n", *out)
	} else {
		fmt.Println(final.Markdown)
	}

	if *withTUI {
		m := tui.New(svc, lecture.ID, lecture.Title, final.Markdown)
		if _, err := tea.NewProgram(m).Run(); err != nil {
			log.Fatal(err)
		}
	}
}

// feedTranscript replays a recorded transcript through the live pipeline,
// one fragment per non-empty line.
func feedTranscript(ctx context.Context, svc *pipeline.Service, lectureID, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := svc.AddFragment(ctx, lectureID, line, 0); err != nil {
			return err
		}
	}
	return scanner.Err()
}
