package routing

import "github.com/rhuss/weiche/pkg/api"

// OwnedBy is reported as owned_by for every listed model.
const OwnedBy = "weiche"

// Models lists one entry per route in configured order. Descriptive fields
// come from the route's first provider.
func (t *Table) Models() *api.ModelList {
	list := &api.ModelList{Object: "list", Data: make([]api.Model, 0, len(t.names))}
	for _, name := range t.names {
		e := t.routes[name]
		m := api.Model{
			ID:          name,
			Object:      "model",
			OwnedBy:     OwnedBy,
			Permission:  []string{},
			DisplayName: name,
			Metadata:    e.Metadata,
			Flags:       e.Flags,
		}
		if e.DisplayName != "" {
			m.DisplayName = e.DisplayName
		}
		if len(e.Providers) > 0 {
			p := e.Providers[0]
			m.Description = p.Description
			m.ContextLength = p.ContextWindow
			if m.ContextLength == 0 {
				m.ContextLength = p.MaxInputTokens
			}
			m.MaxInputTokens = p.MaxInputTokens
			m.MaxOutputTokens = p.MaxOutputTokens
			if p.PricingCurrency != "" || p.InputPricePer1M != nil || p.InputCachePricePer1M != nil || p.OutputPricePer1M != nil {
				m.Pricing = &api.ModelPricing{
					Currency:        p.PricingCurrency,
					InputPer1M:      p.InputPricePer1M,
					InputCachePer1M: p.InputCachePricePer1M,
					OutputPer1M:     p.OutputPricePer1M,
				}
			}
		}
		list.Data = append(list.Data, m)
	}
	return list
}
