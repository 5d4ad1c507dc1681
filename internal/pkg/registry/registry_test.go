package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeModule struct {
	name     string
	priority int
	calls    *[]string
}

func (m *fakeModule) Name() string  { return m.name }
func (m *fakeModule) Priority() int { return m.priority }
func (m *fakeModule) Init(ctx *ModuleContext) error {
	*m.calls = append(*m.calls, m.name)
	return nil
}

func TestInitModules_PriorityOrder(t *testing.T) {
	saved := moduleRegistry
	moduleRegistry = make(map[string]Module)
	defer func() { moduleRegistry = saved }()

	var calls []string
	Register(&fakeModule{name: "order", priority: 30, calls: &calls})
	Register(&fakeModule{name: "user", priority: 10, calls: &calls})
	Register(&fakeModule{name: "product", priority: 20, calls: &calls})
	Register(&fakeModule{name: "common", priority: 100, calls: &calls})

	assert.NoError(t, InitModules(&ModuleContext{}))
	assert.Equal(t, []string{"user", "product", "order", "common"}, calls)
}
