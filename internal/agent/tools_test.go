package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func registryWith(names ...string) *Registry {
	reg := NewRegistry()
	for _, name := range names {
		reg.Register(&ToolDef{Name: name})
	}
	return reg
}

func TestRegistryFilter(t *testing.T) {
	ctx := context.Background()
	reg := registryWith("search_pages", "read_page", "create_task")

	t.Run("nil enables everything", func(t *testing.T) {
		assert.Len(t, reg.Filter(ctx, nil), 3)
	})

	t.Run("empty list disables everything", func(t *testing.T) {
		assert.Empty(t, reg.Filter(ctx, []string{}))
	})

	t.Run("selection preserves order and skips unknowns", func(t *testing.T) {
		defs := reg.Filter(ctx, []string{"read_page", "no_such_tool", "search_pages"})
		names := make([]string, 0, len(defs))
		for _, d := range defs {
			names = append(names, d.Name)
		}
		assert.Equal(t, []string{"read_page", "search_pages"}, names)
	})
}
