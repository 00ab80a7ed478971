// Package factory maps a backend kind tag to an adapter constructor.
package factory

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rhuss/weiche/pkg/provider"
	"github.com/rhuss/weiche/pkg/provider/anthropic"
	"github.com/rhuss/weiche/pkg/provider/gemini"
	"github.com/rhuss/weiche/pkg/provider/openaicompat"
	"github.com/rhuss/weiche/pkg/provider/responses"
)

// New constructs the adapter for cfg.Kind. Kind tags are matched
// case-insensitively.
func New(cfg provider.Config) (provider.Adapter, error) {
	cfg.Kind = strings.ToLower(strings.TrimSpace(cfg.Kind))

	var (
		a   provider.Adapter
		err error
	)
	switch cfg.Kind {
	case responses.Kind:
		a, err = responses.New(cfg)
	case openaicompat.KindOpenAICompatible, openaicompat.KindOpenAIChat,
		openaicompat.KindCloudflare, openaicompat.KindZhipu:
		a, err = openaicompat.New(cfg)
	case anthropic.Kind:
		a, err = anthropic.New(cfg)
	case gemini.KindGoogle, gemini.KindGemini:
		a, err = gemini.New(cfg)
	case "":
		return nil, fmt.Errorf("provider kind is required")
	default:
		return nil, fmt.Errorf("unsupported provider kind %q (supported: %s)", cfg.Kind, strings.Join(Kinds(), ", "))
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Kinds returns the supported kind tags in sorted order.
func Kinds() []string {
	kinds := []string{
		responses.Kind,
		openaicompat.KindOpenAICompatible,
		openaicompat.KindOpenAIChat,
		openaicompat.KindCloudflare,
		openaicompat.KindZhipu,
		anthropic.Kind,
		gemini.KindGoogle,
		gemini.KindGemini,
	}
	sort.Strings(kinds)
	return kinds
}

// Supported reports whether kind names a known backend family.
func Supported(kind string) bool {
	kind = strings.ToLower(strings.TrimSpace(kind))
	for _, k := range Kinds() {
		if k == kind {
			return true
		}
	}
	return false
}
