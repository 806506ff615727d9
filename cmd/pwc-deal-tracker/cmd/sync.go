package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	syncpkg "github.com/calebmorten/pwc-deal-tracker/internal/sync"
	"github.com/calebmorten/pwc-deal-tracker/pkg/logger"
)

var (
	syncVia               string
	syncRef               string
	syncIncludeDuplicates bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Move the dataset between devices",
}

var syncPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Export the dataset through a transport",
	Long: `Export the dataset through a transport and print the reference the
receiving device redeems with "sync pull": a file path for blob, a
short-lived code for cloud_code, a chunk directory for qr.`,
	RunE: runSyncPush,
}

var syncPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Import a dataset delivered by a transport",
	RunE:  runSyncPull,
}

var syncLiveCmd = &cobra.Command{
	Use:   "live [session-id]",
	Short: "Join a live relay session and sync continuously",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSyncLive,
}

func init() {
	syncPushCmd.Flags().StringVar(&syncVia, "via", "blob", "transport: blob, cloud_code or qr")
	syncPushCmd.Flags().BoolVar(&syncIncludeDuplicates, "include-duplicates", false, "export duplicate-flagged listings too")
	syncPullCmd.Flags().StringVar(&syncVia, "via", "blob", "transport: blob, cloud_code or qr")
	syncPullCmd.Flags().StringVar(&syncRef, "ref", "", "reference printed by sync push (path, code or chunk dir)")

	syncCmd.AddCommand(syncPushCmd, syncPullCmd, syncLiveCmd)
	rootCmd.AddCommand(syncCmd)
}

func buildSyncManager(ctx context.Context) (*syncpkg.Manager, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	openCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	st, err := openStore(openCtx, cfg, log)
	cancel()
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if closer, ok := st.(interface{ Close() }); ok {
			closer.Close()
		}
	}

	eng, err := buildEngine(cfg, st, log)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return syncpkg.NewManager(st, eng, cfg.Sync, log), cleanup, nil
}

func runSyncPush(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	mgr, cleanup, err := buildSyncManager(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	ref, err := mgr.Push(ctx, syncVia, syncIncludeDuplicates)
	if err != nil {
		return err
	}

	fmt.Printf("pushed via %s: %s\n", syncVia, ref)
	return nil
}

func runSyncPull(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	mgr, cleanup, err := buildSyncManager(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := mgr.Pull(ctx, syncVia, syncRef)
	if err != nil {
		return err
	}

	fmt.Printf("imported %d records: %d added, %d merged, %d conflicted, %d rejected\n",
		report.Total(), report.Added, report.Merged, report.Conflicted, report.Rejected)
	return nil
}

func runSyncLive(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mgr, cleanup, err := buildSyncManager(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	sessionID := syncpkg.NewSessionID()
	if len(args) == 1 {
		sessionID = args[0]
	}

	fmt.Printf("live session %s (ctrl-c to leave)\n", sessionID)
	return mgr.RunLive(ctx, sessionID)
}
