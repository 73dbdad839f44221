package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/examforge/examforge/internal/compose"
	"github.com/examforge/examforge/internal/corpus"
	"github.com/examforge/examforge/internal/embed"
	"github.com/examforge/examforge/internal/exam"
	"github.com/examforge/examforge/internal/generator"
	"github.com/examforge/examforge/internal/llm"
	"github.com/examforge/examforge/internal/store"
)

func loadTable(v *viper.Viper) (*exam.Table, error) {
	if path := v.GetString("layouts"); path != "" {
		return exam.LoadTable(path)
	}
	return exam.DefaultTable(), nil
}

func newEmbedder(v *viper.Viper) (embed.Embedder, error) {
	switch strings.ToLower(v.GetString("embedder")) {
	case "", "hash":
		return embed.NewHashEmbedder(0), nil
	case "openai":
		key := firstEnv("EXAMFORGE_OPENAI_API_KEY", "OPENAI_API_KEY")
		return embed.NewOpenAIEmbedder(embed.OpenAIConfig{
			APIKey:  key,
			Model:   os.Getenv("EXAMFORGE_EMBEDDING_MODEL"),
			BaseURL: os.Getenv("EXAMFORGE_OPENAI_BASE_URL"),
		})
	default:
		return nil, fmt.Errorf("unknown embedder %q", v.GetString("embedder"))
	}
}

// llmConfig uses EXAMFORGE_* settings when a provider is named explicitly,
// otherwise the first provider whose standard API key is set.
func llmConfig() (llm.Config, error) {
	if os.Getenv("EXAMFORGE_LLM_PROVIDER") != "" {
		return llm.ConfigFromEnv(), nil
	}
	if cfg, ok := llm.DiscoverConfig(); ok {
		return cfg, nil
	}
	return llm.Config{}, &llm.ErrCapabilityUnavailable{
		Reason: "no LLM provider configured; set EXAMFORGE_LLM_PROVIDER or a provider API key",
	}
}

// newAssembler wires the composition engine over the store's corpus index.
func newAssembler(ctx context.Context, v *viper.Viper, st *store.Store, table *exam.Table, logger *slog.Logger) (*compose.Assembler, error) {
	embedder, err := newEmbedder(v)
	if err != nil {
		return nil, err
	}

	lcfg, err := llmConfig()
	if err != nil {
		return nil, err
	}
	provider, err := llm.NewProvider(ctx, lcfg, st.EventRepo(), logger)
	if err != nil {
		return nil, err
	}

	gen := generator.New(provider, generator.DefaultConfig())

	ccfg := compose.DefaultConfig()
	ccfg.CallTimeout = lcfg.Timeout
	if n := v.GetInt("concurrency"); n > 0 {
		ccfg.MaxConcurrentGenerations = int64(n)
	}
	if n := v.GetInt("attempts"); n > 0 {
		ccfg.MaxAttempts = n
	}

	retriever := corpus.NewIndexRetriever(st.CorpusRepo(), embedder, logger)
	return compose.New(table, retriever, gen, ccfg, logger), nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
