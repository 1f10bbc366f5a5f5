package entitlement

import (
	"context"
	"errors"
	"fmt"
	"strings"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
)

// PaddleConfig holds configuration for the Paddle billing provider.
type PaddleConfig struct {
	APIKey      string `env:"PADDLE_API_KEY,required"`
	Environment string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
}

// PaddlePriceAPI implements PriceAPI against the Paddle catalog. It resolves
// the price first and then the owning product, so both metadata layers are
// available to the precedence rules.
type PaddlePriceAPI struct {
	client *paddle.SDK
}

// NewPaddlePriceAPI creates a Paddle-backed PriceAPI.
func NewPaddlePriceAPI(config PaddleConfig) (*PaddlePriceAPI, error) {
	if config.APIKey == "" {
		return nil, errors.New("paddle API key is required")
	}

	var client *paddle.SDK
	var err error

	switch strings.ToLower(config.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(config.APIKey)
	case "production", "":
		client, err = paddle.New(config.APIKey)
	default:
		return nil, fmt.Errorf("invalid paddle environment: %s", config.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle client: %w", err)
	}

	return &PaddlePriceAPI{client: client}, nil
}

func (p *PaddlePriceAPI) RetrievePrice(ctx context.Context, priceRef string) (*Price, error) {
	if priceRef == "" {
		return nil, ErrEmptyPriceRef
	}

	price, err := p.client.PricesClient.GetPrice(ctx, &paddle.GetPriceRequest{PriceID: priceRef})
	if err != nil {
		return nil, errors.Join(ErrProviderFailure, err)
	}

	result := &Price{
		ID:        price.ID,
		LookupKey: price.Description,
		Metadata:  customDataToStrings(price.CustomData),
	}

	if price.ProductID != "" {
		product, err := p.client.ProductsClient.GetProduct(ctx, &paddle.GetProductRequest{ProductID: price.ProductID})
		if err != nil {
			return nil, errors.Join(ErrProviderFailure, err)
		}
		result.Product = Product{
			ID:       product.ID,
			Name:     product.Name,
			Metadata: customDataToStrings(product.CustomData),
		}
	}

	return result, nil
}

// customDataToStrings flattens Paddle custom data into string metadata.
// Non-string values are rendered with fmt.Sprint so numeric limits stored as
// numbers still parse downstream.
func customDataToStrings(data paddle.CustomData) map[string]string {
	if len(data) == 0 {
		return nil
	}
	out := make(map[string]string, len(data))
	for k, v := range data {
		out[k] = fmt.Sprint(v)
	}
	return out
}
