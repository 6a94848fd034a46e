// Package credentials resolves venue API keys per person and exchange.
package credentials

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// ErrCredentialsNotFound is returned when no key is configured for the
// person/exchange combination.
var ErrCredentialsNotFound = errors.New("credentials not found")

// Provider looks up venue credentials for a person on an exchange.
type Provider interface {
	APIKey(personID, exchange string) (string, error)
	APISecretKey(personID, exchange string) (string, error)
}

// EnvProvider reads credentials from environment variables named
// {PERSON}_{EXCHANGE}_API_KEY and {PERSON}_{EXCHANGE}_API_SECRET_KEY,
// optionally loading them from a dotenv file first.
type EnvProvider struct{}

// NewEnvProvider returns an env-backed provider. If envFile is non-empty
// it is loaded into the process environment; variables already set win.
func NewEnvProvider(envFile string) (*EnvProvider, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, errors.Wrapf(err, "load env file %s", envFile)
		}
	}
	return &EnvProvider{}, nil
}

func (p *EnvProvider) APIKey(personID, exchange string) (string, error) {
	return p.lookup(personID, exchange, "API_KEY")
}

func (p *EnvProvider) APISecretKey(personID, exchange string) (string, error) {
	return p.lookup(personID, exchange, "API_SECRET_KEY")
}

func (p *EnvProvider) lookup(personID, exchange, suffix string) (string, error) {
	name := strings.ToUpper(fmt.Sprintf("%s_%s_%s", personID, exchange, suffix))
	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return "", errors.Wrapf(ErrCredentialsNotFound, "env %s", name)
	}
	return value, nil
}
