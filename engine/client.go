package engine

import (
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/viant/whyflow/config"
	"github.com/viant/whyflow/explain"
)

func newClient(cfg config.LLMConfig) (*explain.Client, error) {
	options := []explain.ClientOption{explain.WithTimeout(cfg.Timeout)}
	if cfg.Model != "" {
		options = append(options, explain.WithModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		options = append(options, explain.WithRequestOptions(option.WithBaseURL(cfg.BaseURL)))
	}
	return explain.NewClient(cfg.APIKey, options...)
}
