package tools

import (
	"fmt"
	"net/http"

	"github.com/mikeboe/deep-research/pkg/research"
)

// Search provider names accepted by NewSearchBackend.
const (
	ProviderDuckDuckGo = "duckduckgo"
	ProviderTavily     = "tavily"
	ProviderArxiv      = "arxiv"
)

// BackendOptions selects and configures a search backend.
type BackendOptions struct {
	Provider     string
	TavilyAPIKey string
	RateLimit    float64
	PreferPDF    bool
	Client       *http.Client
}

func NewSearchBackend(opts BackendOptions) (research.SearchBackend, error) {
	switch opts.Provider {
	case "", ProviderDuckDuckGo:
		return NewDuckDuckGo(opts.Client, opts.RateLimit), nil
	case ProviderTavily:
		if opts.TavilyAPIKey == "" {
			return nil, fmt.Errorf("search provider %q requires TAVILY_API_KEY", opts.Provider)
		}
		return NewTavily(opts.TavilyAPIKey, opts.Client), nil
	case ProviderArxiv:
		a := NewArxiv(opts.Client)
		a.PreferPDF = opts.PreferPDF
		return a, nil
	default:
		return nil, fmt.Errorf("unknown search provider %q", opts.Provider)
	}
}

// NewFetcher returns the page fetcher, reading PDFs through Mistral OCR when a key is set.
func NewFetcher(mistralAPIKey string, client *http.Client) research.Fetcher {
	var pdf research.Fetcher
	if mistralAPIKey != "" {
		pdf = NewMistralOCR(mistralAPIKey, client)
	}
	return NewPageFetcher(client, pdf)
}
