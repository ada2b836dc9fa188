package config

// Supported oracle providers.
const (
	ProviderOpenAI = "openai"
	ProviderCohere = "cohere"
)

// DefaultExtensions lists the corpus file types the extractor understands.
var DefaultExtensions = []string{".pdf", ".txt", ".md", ".html", ".htm", ".docx", ".odt", ".rtf"}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "/usr/local/var/transmatch/data"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = cfg.Storage.DataDir + "/db/transmatch.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = cfg.Storage.DataDir + "/indices/bleve"
	}
	if cfg.Storage.LockPath == "" {
		cfg.Storage.LockPath = cfg.Storage.DataDir + "/run.lock"
	}
	if cfg.SourceCorpus.Extensions == nil {
		cfg.SourceCorpus.Extensions = append([]string(nil), DefaultExtensions...)
	}
	if cfg.TargetCorpus.Extensions == nil {
		cfg.TargetCorpus.Extensions = append([]string(nil), DefaultExtensions...)
	}

	applyAIDefaults(&cfg.AI)
	applyMatchingDefaults(&cfg.Matching)

	if cfg.LogMirror.Channel == "" {
		cfg.LogMirror.Channel = "transmatch:logs"
	}
}

func applyAIDefaults(ai *AIConfig) {
	if ai.Provider == "" {
		ai.Provider = ProviderOpenAI
	}
	if ai.BaseURL == "" && ai.Provider == ProviderOpenAI {
		ai.BaseURL = "https://api.openai.com/v1"
	}
	defaultModel := "gpt-4o-mini"
	if ai.Provider == ProviderCohere {
		defaultModel = "command-r-plus"
	}
	if ai.IndexingModel == "" {
		ai.IndexingModel = defaultModel
	}
	if ai.MatchingModel == "" {
		ai.MatchingModel = defaultModel
	}
	if ai.VerificationModel == "" {
		ai.VerificationModel = defaultModel
	}
	if ai.TimeoutSeconds == 0 {
		ai.TimeoutSeconds = 120
	}
	if ai.RetryAttempts == 0 {
		ai.RetryAttempts = 3
	}
	if ai.RatePerSecond == 0 {
		ai.RatePerSecond = 2
	}
	if ai.Burst == 0 {
		ai.Burst = 1
	}
}

func applyMatchingDefaults(m *MatchingConfig) {
	if m.SnippetThreshold == 0 {
		m.SnippetThreshold = 0.4
	}
	if m.TopCandidates == 0 {
		m.TopCandidates = 3
	}
	if m.MaxSnippets == 0 {
		m.MaxSnippets = 4
	}
	if m.MinConfidence == 0 {
		m.MinConfidence = 0.5
	}
	if m.FallbackRatio == 0 {
		m.FallbackRatio = 0.5
	}
	if m.ArticleTextLimit == 0 {
		m.ArticleTextLimit = 12000
	}
	if m.VerifyTextLimit == 0 {
		m.VerifyTextLimit = 6000
	}
}
