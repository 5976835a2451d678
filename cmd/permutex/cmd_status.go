package main

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"permutex/cmd/permutex/ui"
	"permutex/internal/manifest"
)

var follow bool

// statusCmd renders the manifest of a run
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-shard progress of a run",
	Long: `Renders the work dir's manifest. With --follow the table is redrawn on
every checkpoint until the run completes or the command is interrupted.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVarP(&follow, "follow", "f", false, "Redraw on every manifest change")
}

func runStatus(cmd *cobra.Command, args []string) error {
	wd := resolveWorkDir()
	out := cmd.OutOrStdout()
	styles := ui.DefaultStyles()

	if !follow {
		m, err := manifest.ReadDir(wd)
		if err != nil {
			return err
		}
		if m == nil {
			return fmt.Errorf("no manifest in %s", wd)
		}
		fmt.Fprint(out, renderStatus(styles, m))
		return nil
	}

	ctx := cmd.Context()
	complete := make(chan struct{})
	var once sync.Once
	var mu sync.Mutex
	w, err := manifest.NewWatcher(wd, func(m *manifest.Manifest) {
		mu.Lock()
		fmt.Fprint(out, renderStatus(styles, m))
		mu.Unlock()
		if len(m.Incomplete()) == 0 {
			once.Do(func() { close(complete) })
		}
	})
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	fmt.Fprintln(out, styles.Muted.Render("following "+manifest.Path(wd)+" (Ctrl-C to stop)"))
	select {
	case <-ctx.Done():
	case <-complete:
	}
	return nil
}
