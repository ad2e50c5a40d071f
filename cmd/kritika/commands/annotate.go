package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/kritika/internal/annotator"
)

// annotateCmd represents the annotate command
var annotateCmd = &cobra.Command{
	Use:   "annotate [query]",
	Short: "종목 리스트 조회 및 밸류에이션 표시",
	Long: `스프레드시트에서 종목 리스트를 가져와 밸류에이션 라벨과 함께 출력합니다.

query를 주면 종목 코드/이름으로 검색한 결과만 출력합니다.

Example:
  go run ./cmd/kritika annotate
  go run ./cmd/kritika annotate tata
  go run ./cmd/kritika annotate --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnnotate,
}

var (
	annotateJSON  bool
	annotateLimit int
)

func init() {
	rootCmd.AddCommand(annotateCmd)

	annotateCmd.Flags().BoolVar(&annotateJSON, "json", false, "JSON 출력")
	annotateCmd.Flags().IntVar(&annotateLimit, "limit", 20, "검색 결과 최대 개수")
}

func runAnnotate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	stocks, err := a.newCatalog()
	if err != nil {
		return err
	}
	if err := stocks.Load(ctx); err != nil {
		return fmt.Errorf("load stock list: %w", err)
	}

	records := stocks.Records()
	if len(args) == 1 {
		records, err = stocks.Search(args[0], annotateLimit)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}
	}

	annotations := a.annotator.AnnotateAll(records)

	if annotateJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(annotations)
	}

	printAnnotations(annotations)
	return nil
}

func printAnnotations(annotations []annotator.Annotation) {
	PrintHeader(fmt.Sprintf("Stocks (%d)", len(annotations)))

	widths := []int{12, 28, 14, 16, 24}
	PrintTableHeader([]string{"Ticker", "Name", "LTP", "Valuation", "Fields"}, widths)

	for _, an := range annotations {
		fields := make([]string, 0, len(an.Fields))
		for _, f := range an.Fields {
			fields = append(fields, f.Key+"="+f.Display)
		}

		ticker := an.Ticker
		if an.Exchange != "" {
			ticker = an.Exchange + ":" + an.Ticker
		}

		PrintTableRow([]string{
			ticker,
			truncate(an.Name, widths[1]),
			an.LTP,
			an.ValuationLabel,
			strings.Join(fields, " "),
		}, widths)
	}

	PrintSeparator()
	PrintSuccess(strconv.Itoa(len(annotations)) + " stocks")
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
