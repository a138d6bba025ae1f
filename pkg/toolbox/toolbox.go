// Package toolbox holds the assistant's built-in tools.
package toolbox

import (
	"fmt"

	"github.com/harunnryd/sapa/pkg/invoke"
	"github.com/harunnryd/sapa/pkg/tools"
)

// Tool is a built-in tool: a declaration plus a SyncTool or PollingTool.
type Tool interface {
	Spec() tools.Spec
}

// Install registers each tool's spec and binds the tool as its handler.
func Install(reg *tools.Registry, inv *invoke.Invoker, list ...Tool) error {
	for _, t := range list {
		spec := t.Spec()
		if err := reg.Register(spec); err != nil {
			return err
		}
		if err := inv.Bind(spec.Name, t); err != nil {
			return fmt.Errorf("bind %s: %w", spec.Name, err)
		}
	}
	return nil
}
