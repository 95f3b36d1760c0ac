package milvus

import "github.com/milvus-io/milvus/client/v2/milvusclient"

// authMethod is one credential candidate for the connection attempt chain.
type authMethod struct {
	name     string
	token    string
	username string
	password string
}

// authMethods builds the ordered candidate list: token, API key, then
// username/password. The first method whose probe succeeds wins.
func authMethods(cfg Config) []authMethod {
	var methods []authMethod

	if cfg.Token != "" {
		methods = append(methods, authMethod{name: "token", token: cfg.Token})
	}
	if cfg.APIKey != "" {
		methods = append(methods, authMethod{name: "api_key", token: cfg.APIKey})
	}
	if cfg.Username != "" && cfg.Password != "" {
		methods = append(methods, authMethod{
			name:     "basic",
			username: cfg.Username,
			password: cfg.Password,
		})
	}

	return methods
}

// clientConfig builds the milvus client config for this candidate.
func (m authMethod) clientConfig(endpoint string) *milvusclient.ClientConfig {
	return &milvusclient.ClientConfig{
		Address:  endpoint,
		APIKey:   m.token,
		Username: m.username,
		Password: m.password,
	}
}
