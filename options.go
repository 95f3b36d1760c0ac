package knowbase

import "go.uber.org/zap"

// Option configures the Client.
type Option func(*clientConfig)

type clientConfig struct {
	endpoint string
	token    string
	apiKey   string
	username string
	password string

	embeddingAPIKey  string
	embeddingBaseURL string
	embeddingModel   string

	collection string
	dimension  int

	cacheAddr     string
	cachePassword string

	logger *zap.Logger
}

// WithEndpoint sets the vector store endpoint URI.
func WithEndpoint(endpoint string) Option {
	return func(c *clientConfig) {
		c.endpoint = endpoint
	}
}

// WithToken sets the vector store access token. Tried first when several
// credentials are configured.
func WithToken(token string) Option {
	return func(c *clientConfig) {
		c.token = token
	}
}

// WithAPIKey sets the vector store API key. Tried after the token.
func WithAPIKey(key string) Option {
	return func(c *clientConfig) {
		c.apiKey = key
	}
}

// WithBasicAuth sets the vector store username/password pair. Tried last.
func WithBasicAuth(username, password string) Option {
	return func(c *clientConfig) {
		c.username = username
		c.password = password
	}
}

// WithEmbeddingAPIKey sets the embedding provider credential. Required.
func WithEmbeddingAPIKey(key string) Option {
	return func(c *clientConfig) {
		c.embeddingAPIKey = key
	}
}

// WithEmbeddingBaseURL overrides the embedding API base URL.
// Defaults to the DashScope compatible-mode endpoint.
func WithEmbeddingBaseURL(url string) Option {
	return func(c *clientConfig) {
		c.embeddingBaseURL = url
	}
}

// WithEmbeddingModel overrides the embedding model. Defaults to text-embedding-v3.
func WithEmbeddingModel(model string) Option {
	return func(c *clientConfig) {
		c.embeddingModel = model
	}
}

// WithCollection sets the collection name. Defaults to DefaultCollection.
func WithCollection(name string) Option {
	return func(c *clientConfig) {
		c.collection = name
	}
}

// WithDimension pins the vector dimension, skipping the probe request that
// normally measures the model's output size.
func WithDimension(dim int) Option {
	return func(c *clientConfig) {
		c.dimension = dim
	}
}

// WithCache enables Redis-backed embedding caching.
func WithCache(addr, password string) Option {
	return func(c *clientConfig) {
		c.cacheAddr = addr
		c.cachePassword = password
	}
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}
