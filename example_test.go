package arbor_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/domain"
)

// ExampleNew_library shows the tree used purely as a Go library: modules are
// declared in code and merged without reading any manifest file.
func ExampleNew_library() {
	tree := arbor.New()
	ctx := context.Background()

	// 1. The core module declares an extension point accepting "Item" nodes.
	itemType := &domain.NodeType{Name: "Item", ModuleID: "core"}
	err := tree.AddModule(ctx, domain.ModuleManifest{
		ID: "core",
		ExtensionPoints: []domain.ExtensionPoint{{
			Path:    "/Workbench/Menus",
			NodeSet: (&domain.NodeSet{ID: "menu"}).Add(itemType),
		}},
		Contributions: []domain.Contribution{{
			Path:  "/Workbench/Menus",
			Nodes: []domain.NodeDescription{{NodeName: "Item", ID: "open"}, {NodeName: "Item", ID: "quit"}},
		}},
	})
	if err != nil {
		log.Fatal(err)
	}

	// 2. A plugin places its item relative to the core ones.
	err = tree.AddModule(ctx, domain.ModuleManifest{
		ID:           "git",
		Dependencies: []string{"core"},
		Contributions: []domain.Contribution{{
			Path: "/Workbench/Menus",
			Nodes: []domain.NodeDescription{
				{NodeName: "Item", ID: "commit", InsertBefore: "quit", Condition: "hasRepo"},
			},
		}},
	})
	if err != nil {
		log.Fatal(err)
	}

	// 3. Read the merged tree.
	_ = tree.Walk("/Workbench/Menus", func(n *domain.TreeNode) bool {
		if n.Condition != nil {
			fmt.Printf("%s (when %s)\n", n.Path(), n.Condition)
			return true
		}
		fmt.Println(n.Path())
		return true
	})

	// Output:
	// /Workbench/Menus
	// /Workbench/Menus/open
	// /Workbench/Menus/commit (when hasRepo)
	// /Workbench/Menus/quit
}
