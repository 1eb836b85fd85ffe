package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "./data/filings.db"
	}
	if cfg.Chunking.MaxChunkChars == 0 {
		cfg.Chunking.MaxChunkChars = 2200
	}
	if cfg.Chunking.MinChunkChars == 0 {
		cfg.Chunking.MinChunkChars = 50
	}
	if cfg.Retrieval.VectorDim == 0 {
		cfg.Retrieval.VectorDim = 384
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 10
	}
	if cfg.Retrieval.RerankTopK == 0 {
		cfg.Retrieval.RerankTopK = 20
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = EmbeddingMock
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 64
	}
	if cfg.Reranker.Provider == "" {
		cfg.Reranker.Provider = RerankerNone
	}
	if cfg.Reranker.Model == "" {
		cfg.Reranker.Model = "zerank-2"
	}
	if cfg.Reranker.BaseURL == "" {
		cfg.Reranker.BaseURL = "https://api.zeroentropy.dev/v1"
	}
	if cfg.Reranker.APIKeyEnv == "" {
		cfg.Reranker.APIKeyEnv = "ZEROENTROPY_API_KEY"
	}
	if cfg.Reranker.TimeoutSecs == 0 {
		cfg.Reranker.TimeoutSecs = 30
	}
	if cfg.Reranker.SectionBoost == 0 {
		cfg.Reranker.SectionBoost = 2.0
	}
	if cfg.Reranker.PhraseBoost == 0 {
		cfg.Reranker.PhraseBoost = 1.5
	}
	if cfg.Reranker.Fuzziness == 0 {
		cfg.Reranker.Fuzziness = 1
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "mistral-small-latest"
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.mistral.ai/v1"
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "MISTRAL_API_KEY"
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.3
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1024
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md", ".htm", ".html", ".pdf", ".docx", ".xlsx"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
