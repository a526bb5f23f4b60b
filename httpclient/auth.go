package httpclient

import "net/http"

// AuthType identifies the authentication method.
type AuthType string

const (
	AuthNone   AuthType = ""
	AuthBearer AuthType = "bearer"
	AuthBasic  AuthType = "basic"
	// AuthAPIKey sends a key in a header or query parameter.
	AuthAPIKey AuthType = "api_key"
	// AuthCustom runs Apply against the outgoing request.
	AuthCustom AuthType = "custom"
)

// AuthConfig configures static request authentication. Per-attempt
// credentials come from a credential.Supplier instead.
type AuthConfig struct {
	Type     AuthType `yaml:"type" mapstructure:"type" validate:"omitempty,oneof=bearer basic api_key custom"`
	Token    string   `yaml:"token" mapstructure:"token"`
	Username string   `yaml:"username" mapstructure:"username"`
	Password string   `yaml:"password" mapstructure:"password"`
	Key      string   `yaml:"key" mapstructure:"key"`
	// In is "header" (default) or "query".
	In string `yaml:"in" mapstructure:"in" validate:"omitempty,oneof=header query"`
	// Name defaults to X-API-Key.
	Name string `yaml:"name" mapstructure:"name"`

	Apply func(*http.Request) `yaml:"-" mapstructure:"-"`
}

// BearerAuth creates a bearer token auth config.
func BearerAuth(token string) *AuthConfig {
	return &AuthConfig{Type: AuthBearer, Token: token}
}

// BasicAuth creates a basic auth config.
func BasicAuth(username, password string) *AuthConfig {
	return &AuthConfig{Type: AuthBasic, Username: username, Password: password}
}

// APIKeyAuth creates an API key auth config sent in the X-API-Key header.
func APIKeyAuth(key string) *AuthConfig {
	return &AuthConfig{Type: AuthAPIKey, Key: key, In: "header"}
}

// APIKeyAuthQuery creates an API key auth config sent as a query parameter.
func APIKeyAuthQuery(key, paramName string) *AuthConfig {
	return &AuthConfig{Type: AuthAPIKey, Key: key, In: "query", Name: paramName}
}

// CustomAuth creates an auth config backed by a request modifier.
func CustomAuth(fn func(*http.Request)) *AuthConfig {
	return &AuthConfig{Type: AuthCustom, Apply: fn}
}

func (a *AuthConfig) apply(req *http.Request) {
	if a == nil {
		return
	}
	switch a.Type {
	case AuthBearer:
		if a.Token != "" {
			req.Header.Set("Authorization", "Bearer "+a.Token)
		}
	case AuthBasic:
		req.SetBasicAuth(a.Username, a.Password)
	case AuthAPIKey:
		name := a.Name
		if name == "" {
			name = "X-API-Key"
		}
		if a.In == "query" {
			q := req.URL.Query()
			q.Set(name, a.Key)
			req.URL.RawQuery = q.Encode()
		} else {
			req.Header.Set(name, a.Key)
		}
	case AuthCustom:
		if a.Apply != nil {
			a.Apply(req)
		}
	}
}
