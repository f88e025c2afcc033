package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/arbor/internal/presentation/tree"
	redisadapter "github.com/aretw0/arbor/pkg/adapters/redis"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var mergeCmd = &cobra.Command{
	Use:   "merge [dir]",
	Short: "Merge the manifests and print the resulting tree",
	Long: `Merges every module manifest into one extension tree and prints it.

Formats:
- text (default): indented tree, colored when writing to a terminal.
- mermaid: Mermaid flowchart (graph TD).
- markdown: merge report, rendered with glamour when writing to a terminal.
- json: the tree snapshot.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("path")
		publish, _ := cmd.Flags().GetString("publish")

		src, err := openSource(cfg)
		if err != nil {
			return err
		}
		client := newRedisClient(cfg)
		if publish != "" && client == nil {
			return fmt.Errorf("--publish needs a Redis address (--redis-addr or ARBOR_REDIS_ADDR)")
		}
		if client != nil {
			defer client.Close()
		}

		name := publish
		if name == "" {
			name = "arbor"
		}
		t, err := buildTree(cmd.Context(), cfg, src, client, name, domain.LifecycleHooks{})
		if err != nil {
			return err
		}
		snap, err := t.Snapshot(path)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if err := render(out, cfg.Format, snap, t.Errors(), isTerminal(out)); err != nil {
			return err
		}

		if publish != "" {
			store := redisadapter.NewSnapshotStore(client,
				redisadapter.WithPrefix(cfg.Redis.Prefix+"tree:"),
				redisadapter.WithTTL(cfg.Redis.SnapshotTTL),
			)
			if err := store.Save(cmd.Context(), publish, snap); err != nil {
				return err
			}
			logger.Info("snapshot published", "name", publish, "nodes", snap.Count())
		}

		errs, warnings := countErrors(t.Errors())
		if errs+warnings > 0 && cfg.Format != "markdown" {
			fmt.Fprintf(cmd.ErrOrStderr(), "%d errors, %d warnings reported while merging\n", errs, warnings)
			for _, e := range t.Errors() {
				fmt.Fprintf(cmd.ErrOrStderr(), "  [%s] %s\n", e.ModuleID, e.Message)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mergeCmd)
	mergeCmd.Flags().String("format", "text", "Output format: text, mermaid, markdown or json")
	mergeCmd.Flags().String("path", "", "Only print the subtree at this extension path")
	mergeCmd.Flags().String("publish", "", "Publish the snapshot to Redis under this name")
	bind(v, "format", mergeCmd.Flags().Lookup("format"))
}

func render(w io.Writer, format string, snap domain.NodeSnapshot, errs []domain.ReportedError, tty bool) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	case "mermaid":
		_, err := fmt.Fprint(w, tree.Mermaid(snap))
		return err
	case "markdown":
		md := tree.Markdown("Merged extension tree", snap, errs)
		if tty {
			glam, err := tree.NewGlamourRenderer()
			if err != nil {
				return err
			}
			if md, err = glam(md); err != nil {
				return err
			}
		}
		_, err := fmt.Fprint(w, md)
		return err
	default:
		profile := termenv.Ascii
		if tty {
			profile = termenv.ColorProfile()
		}
		return tree.NewTextRenderer(profile).Render(w, snap)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
