package commands

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/kritika/internal/catalog"
)

// snapshotCmd represents the snapshot command
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "종목 리스트 스냅샷 관리",
	Long: `Postgres에 저장된 종목 리스트 스냅샷을 조회하거나 정리합니다.
DATABASE_URL 이 필요합니다.

Subcommands:
  latest  - 가장 최근 스냅샷 조회
  prune   - 오래된 스냅샷 삭제

Example:
  go run ./cmd/kritika snapshot latest
  go run ./cmd/kritika snapshot prune --keep 7`,
}

var (
	snapshotLatestCmd = &cobra.Command{
		Use:   "latest",
		Short: "가장 최근 스냅샷 조회",
		RunE:  runSnapshotLatest,
	}

	snapshotPruneCmd = &cobra.Command{
		Use:   "prune",
		Short: "오래된 스냅샷 삭제",
		RunE:  runSnapshotPrune,
	}
)

var (
	snapshotRows int
	snapshotKeep int
)

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(snapshotLatestCmd)
	snapshotCmd.AddCommand(snapshotPruneCmd)

	snapshotLatestCmd.Flags().IntVar(&snapshotRows, "rows", 10, "출력할 종목 수 (0 = 전체)")
	snapshotPruneCmd.Flags().IntVar(&snapshotKeep, "keep", snapshotsKept, "남길 스냅샷 수")
}

func openSnapshots(cmd *cobra.Command) (*app, error) {
	a, err := newApp(cmd.Context())
	if err != nil {
		return nil, err
	}
	if a.snapshots == nil {
		a.Close()
		return nil, errors.New("DATABASE_URL is not set")
	}
	return a, nil
}

func runSnapshotLatest(cmd *cobra.Command, args []string) error {
	a, err := openSnapshots(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := a.snapshots.LatestSnapshot(cmd.Context())
	if errors.Is(err, catalog.ErrNoSnapshot) {
		PrintWarning("No snapshot stored yet")
		return nil
	}
	if err != nil {
		return fmt.Errorf("latest snapshot: %w", err)
	}

	PrintHeader(fmt.Sprintf("Snapshot #%d", snap.ID))
	PrintKV("Taken", snap.TakenAt.Format(time.RFC3339))
	PrintKV("Age", time.Since(snap.TakenAt).Round(time.Second))
	PrintKV("Stocks", snap.Count)
	PrintSeparator()

	records := snap.Records
	if snapshotRows > 0 && len(records) > snapshotRows {
		records = records[:snapshotRows]
	}
	printAnnotations(a.annotator.AnnotateAll(records))
	return nil
}

func runSnapshotPrune(cmd *cobra.Command, args []string) error {
	if snapshotKeep < 1 {
		return errors.New("--keep must be at least 1")
	}

	a, err := openSnapshots(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	deleted, err := a.snapshots.Prune(cmd.Context(), snapshotKeep)
	if err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}

	PrintSuccess("Deleted " + strconv.FormatInt(deleted, 10) + " snapshots, kept " + strconv.Itoa(snapshotKeep))
	return nil
}
