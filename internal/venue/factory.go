package venue

import (
	"strings"

	"github.com/pkg/errors"

	"botfleet/internal/clients"
	"botfleet/internal/executor"
)

// New builds the venue client for an exchange name.
func New(exchange, apiKey, apiSecret string) (executor.VenueClient, error) {
	switch strings.ToLower(exchange) {
	case "binance":
		return NewBinance(clients.NewBinanceClient(apiKey, apiSecret)), nil
	case "bybit":
		return NewBybit(clients.NewBybitClient(apiKey, apiSecret)), nil
	default:
		return nil, errors.Errorf("unsupported exchange %q", exchange)
	}
}
