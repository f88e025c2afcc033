package runtime

import (
	"fmt"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/extension"
)

// instantiate creates the extension object of node, binds it and lets it
// validate itself. Any failure, including a panic in the object's own code,
// is returned as a *domain.NodeReadError.
func (e *Engine) instantiate(node, target *domain.TreeNode, moduleID string, nt *domain.NodeType, desc *domain.NodeDescription) (err error) {
	path := target.Path() + domain.PathSeparator + node.ID
	fail := func(cause error) error {
		return &domain.NodeReadError{NodeName: desc.NodeName, Path: path, Err: cause}
	}

	defer func() {
		if r := recover(); r != nil {
			err = fail(fmt.Errorf("panic: %v", r))
		}
	}()

	obj := nt.Type.New()
	if obj == nil {
		return fail(fmt.Errorf("type '%s' did not create an extension object", nt.Type.Name))
	}

	node.Attach(nt, obj)
	obj.SetData(node, moduleID, nt)

	if err := extension.Populate(obj, moduleID, nt, desc, e.localize); err != nil {
		return fail(err)
	}
	if r, ok := obj.(domain.Reader); ok {
		if err := r.Read(desc); err != nil {
			return fail(err)
		}
	}
	if v, ok := obj.(domain.Validator); ok {
		if err := v.Validate(); err != nil {
			return fail(err)
		}
	}
	return nil
}
