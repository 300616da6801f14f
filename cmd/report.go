package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tripvault/balance"
	"tripvault/db/db"
	"tripvault/db/mem"
	"tripvault/ledger"
	"tripvault/libs/money"
)

// ReportExpense is one CSV row.
type ReportExpense struct {
	Title    string
	Amount   float64
	Category string
	PaidBy   string
	Splits   []ledger.SplitInput
}

func reportCommand() *cobra.Command {
	var (
		inputPath  string
		outputPath string
		userID     string
		budget     float64
		currency   string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "summarize a CSV of trip expenses",
		Long: `Reads a CSV with the header title,amount,category,paidBy,splits where splits
are written as user:percentage;user:percentage. Every row goes through the same
validation as the API, then statistics, the balances of --user and a settlement
plan are printed.`,
		Example: `tripvault report --input expenses.csv --user alice --budget 5000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			inputFile, err := os.Open(inputPath)
			if err != nil {
				return err
			}
			defer inputFile.Close()

			csvContent, err := csv.NewReader(inputFile).ReadAll()
			if err != nil {
				return err
			}
			expenses, err := ParseCSVToExpenses(csvContent)
			if err != nil {
				return fmt.Errorf("failed to parse CSV: %w", err)
			}
			if len(expenses) == 0 {
				return fmt.Errorf("no expenses found in the CSV")
			}

			out := cmd.OutOrStdout()
			if outputPath != "" {
				outputFile, err := os.Create(outputPath)
				if err != nil {
					return err
				}
				defer outputFile.Close()
				out = outputFile
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return writeReport(ctx, out, expenses, userID, db.Budget{Total: budget, Currency: currency})
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "csv input file path (required)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the report to this file instead of stdout")
	cmd.Flags().StringVarP(&userID, "user", "u", "", "user whose balances are shown (required)")
	cmd.Flags().Float64Var(&budget, "budget", 0, "trip budget")
	cmd.Flags().StringVar(&currency, "currency", db.DefaultCurrency, "trip currency")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

// ParseCSVToExpenses parses CSV rows, skipping the header row.
func ParseCSVToExpenses(csvContent [][]string) ([]ReportExpense, error) {
	if len(csvContent) == 0 {
		return nil, fmt.Errorf("CSV is empty")
	}

	var expenses []ReportExpense
	for i, row := range csvContent[1:] {
		line := i + 2
		if len(row) != 5 {
			return nil, fmt.Errorf("row %d: expected 5 columns, but got %d", line, len(row))
		}

		amount, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: failed to convert amount '%s' to float: %w", line, row[1], err)
		}
		splits, err := parseSplits(row[4])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}

		expenses = append(expenses, ReportExpense{
			Title:    strings.TrimSpace(row[0]),
			Amount:   amount,
			Category: strings.TrimSpace(row[2]),
			PaidBy:   strings.TrimSpace(row[3]),
			Splits:   splits,
		})
	}
	return expenses, nil
}

func parseSplits(s string) ([]ledger.SplitInput, error) {
	var splits []ledger.SplitInput
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		user, pct, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("split '%s' must look like user:percentage", part)
		}
		p, err := strconv.ParseFloat(strings.TrimSpace(pct), 64)
		if err != nil {
			return nil, fmt.Errorf("split '%s': invalid percentage: %w", part, err)
		}
		splits = append(splits, ledger.SplitInput{UserID: strings.TrimSpace(user), Percentage: p})
	}
	return splits, nil
}

// writeReport loads the expenses into a throwaway in-memory ledger so every
// row is validated like an API write, then prints the aggregates.
func writeReport(ctx context.Context, w io.Writer, expenses []ReportExpense, userID string, budget db.Budget) error {
	participants := []string{userID}
	for _, e := range expenses {
		participants = append(participants, e.PaidBy)
		for _, s := range e.Splits {
			participants = append(participants, s.UserID)
		}
	}
	slices.Sort(participants)
	participants = slices.Compact(participants)

	l := ledger.New(mem.NewInMemoryTripDBWrapper(), mem.NewInMemoryUserDBWrapper(), nil, nil,
		ledger.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	members := make([]ledger.MemberInput, 0, len(participants))
	for _, p := range participants {
		members = append(members, ledger.MemberInput{UserID: p, Role: db.RoleEditor})
	}
	trip, err := l.CreateTrip(ctx, userID, ledger.NewTrip{Name: "report", Members: members, Budget: budget})
	if err != nil {
		return err
	}

	for i, e := range expenses {
		_, err := l.CreateExpense(ctx, e.PaidBy, trip.ID, ledger.NewExpense{
			Title:    e.Title,
			Amount:   e.Amount,
			Category: e.Category,
			PaidBy:   e.PaidBy,
			Currency: trip.Budget.Currency,
			Splits:   e.Splits,
		})
		if err != nil {
			return fmt.Errorf("expense %d (%s): %w", i+1, e.Title, err)
		}
	}

	snap, err := l.Snapshot(ctx, userID, trip.ID)
	if err != nil {
		return err
	}
	stats := balance.ComputeStatistics(snap.Trip, snap.Expenses)
	summary := balance.ComputeBalance(snap.Trip, snap.Expenses, userID, balance.Options{Names: identityNames(participants)})
	transfers := balance.PlanSettlements(snap.Expenses)

	fmt.Fprintln(w, "Statistics")
	fmt.Fprintf(w, "  total expenses: %.2f %s\n", stats.TotalExpenses, stats.Currency)
	if stats.Budget > 0 {
		fmt.Fprintf(w, "  budget: %.2f (%.2f%% used, %.2f remaining)\n", stats.Budget, stats.BudgetPercentage, stats.RemainingBudget)
	}
	categories := make([]string, 0, len(stats.CategoryBreakdown))
	for c := range stats.CategoryBreakdown {
		categories = append(categories, string(c))
	}
	sort.Strings(categories)
	for _, c := range categories {
		stat := stats.CategoryBreakdown[db.Category(c)]
		fmt.Fprintf(w, "  %s: %.2f (%d expenses, %.2f%%)\n", c, stat.Total, stat.Count, stat.Percentage)
	}

	fmt.Fprintf(w, "Balance for %s\n", userID)
	fmt.Fprintf(w, "  paid %.2f, owes %.2f, balance %+.2f\n", summary.UserPaid, summary.UserOwes, summary.Balance)
	for _, c := range summary.BalancesWith {
		if c.Amount > 0 {
			fmt.Fprintf(w, "  %s owes you %.2f\n", c.UserName, c.Amount)
		} else {
			fmt.Fprintf(w, "  you owe %s %.2f\n", c.UserName, money.Round2(-c.Amount))
		}
	}

	fmt.Fprintln(w, "Settlement plan")
	if len(transfers) == 0 {
		fmt.Fprintln(w, "  nothing to settle")
	}
	for _, t := range transfers {
		fmt.Fprintf(w, "  %s\n", t)
	}
	return nil
}

func identityNames(ids []string) map[string]string {
	names := make(map[string]string, len(ids))
	for _, id := range ids {
		names[id] = id
	}
	return names
}
