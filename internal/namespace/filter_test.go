package namespace

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"muster/internal/domain"
)

func TestFilter_DefaultsToEnabled(t *testing.T) {
	f := NewFilter(nil)
	assert.True(t, f.Enabled("srv-1", "any_tool"))
}

func TestFilter_RespectsDisabledPreference(t *testing.T) {
	f := NewFilter([]domain.ToolPreference{
		{ServerID: "srv-1", ToolName: "dangerous_tool", IsEnabled: false},
	})

	assert.False(t, f.Enabled("srv-1", "dangerous_tool"))
	assert.True(t, f.Enabled("srv-1", "other_tool"))
	assert.True(t, f.Enabled("srv-2", "dangerous_tool"))
}
