package crawl

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ConfigFilename is the path the worker image contract reads its config
// from (§6.4).
const ConfigFilename = "/config/crawl.yml"

// crawlRule is a single allow/deny rule in the worker's crawl_rules list.
type crawlRule struct {
	Policy  string `yaml:"policy"`
	Type    string `yaml:"type"`
	Pattern string `yaml:"pattern"`
}

type domainConfig struct {
	URL        string      `yaml:"url"`
	SeedURLs   []string    `yaml:"seed_urls"`
	CrawlRules []crawlRule `yaml:"crawl_rules"`
}

type workerConfig struct {
	Domains       []domainConfig `yaml:"domains"`
	OutputSink    string         `yaml:"output_sink"`
	OutputIndex   string         `yaml:"output_index"`
	Elasticsearch map[string]any `yaml:"elasticsearch"`
}

// BuildConfig renders the structured worker config document (§4.2 "Config
// generation"). excludePaths, if given, each become a deny-begins rule
// ahead of the allow-begins filterPattern rule; the trailing deny-regex
// ".*" rule always closes the list.
func BuildConfig(params Params, backendID string, excludePaths []string, esConnection map[string]any) ([]byte, error) {
	rules := make([]crawlRule, 0, len(excludePaths)+2)
	for _, p := range excludePaths {
		rules = append(rules, crawlRule{Policy: "deny", Type: "begins", Pattern: p})
	}
	rules = append(rules,
		crawlRule{Policy: "allow", Type: "begins", Pattern: params.FilterPattern},
		crawlRule{Policy: "deny", Type: "regex", Pattern: ".*"},
	)

	cfg := workerConfig{
		Domains: []domainConfig{{
			URL:        params.Domain,
			SeedURLs:   []string{params.SeedURL},
			CrawlRules: rules,
		}},
		OutputSink:    "elasticsearch",
		OutputIndex:   backendID,
		Elasticsearch: esConnection,
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal crawl config: %w", err)
	}
	return out, nil
}
