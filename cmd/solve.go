package cmd

import (
	"context"
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/kilianp07/unitcommit/app"
	"github.com/kilianp07/unitcommit/core/benders"
	"github.com/kilianp07/unitcommit/core/model"
	"github.com/kilianp07/unitcommit/pkg/export"
)

var solveOpts struct {
	data    dataFlags
	mode    string
	verify  bool
	compare bool
	json    bool
	export  string
}

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Solve a unit commitment instance by Benders decomposition",
	RunE:  runSolve,
}

var directOpts struct {
	data   dataFlags
	verify bool
	json   bool
	export string
}

var directCmd = &cobra.Command{
	Use:   "direct",
	Short: "Solve the monolithic MILP without decomposition",
	RunE:  runDirect,
}

func init() {
	solveOpts.data.bind(solveCmd)
	solveCmd.Flags().StringVar(&solveOpts.mode, "mode", "", "iterative or embedded (default from config)")
	solveCmd.Flags().BoolVar(&solveOpts.verify, "verify", false, "check the schedule against every constraint")
	solveCmd.Flags().BoolVar(&solveOpts.compare, "compare", false, "also solve the monolithic MILP and compare costs")
	solveCmd.Flags().BoolVar(&solveOpts.json, "json", false, "print the result as JSON")
	solveCmd.Flags().StringVar(&solveOpts.export, "export", "", "write the schedule to a .csv, .json or .html file")
	rootCmd.AddCommand(solveCmd)

	directOpts.data.bind(directCmd)
	directCmd.Flags().BoolVar(&directOpts.verify, "verify", false, "check the schedule against every constraint")
	directCmd.Flags().BoolVar(&directOpts.json, "json", false, "print the result as JSON")
	directCmd.Flags().StringVar(&directOpts.export, "export", "", "write the schedule to a .csv, .json or .html file")
	rootCmd.AddCommand(directCmd)
}

func runSolve(cmd *cobra.Command, args []string) error {
	data, err := solveOpts.data.load(cmd)
	if err != nil {
		return err
	}
	return withService(func(ctx context.Context, svc *app.Service) error {
		res, err := svc.Solve(ctx, data, solveOpts.mode)
		if err != nil && !benders.IsBudgetStop(err) {
			return err
		}
		if perr := printResult(cmd.OutOrStdout(), data, res, solveOpts.json); perr != nil {
			return perr
		}
		if xerr := exportSchedule(cmd, solveOpts.export, data, res); xerr != nil {
			return xerr
		}
		if solveOpts.verify {
			if verr := verify(cmd, data, res); verr != nil {
				return verr
			}
		}
		if solveOpts.compare {
			if cerr := compare(ctx, cmd, svc, data, res); cerr != nil {
				return cerr
			}
		}
		return err
	})
}

func runDirect(cmd *cobra.Command, args []string) error {
	data, err := directOpts.data.load(cmd)
	if err != nil {
		return err
	}
	return withService(func(ctx context.Context, svc *app.Service) error {
		res, err := svc.Solve(ctx, data, app.ModeDirect)
		if err != nil {
			return err
		}
		if err := printResult(cmd.OutOrStdout(), data, res, directOpts.json); err != nil {
			return err
		}
		if err := exportSchedule(cmd, directOpts.export, data, res); err != nil {
			return err
		}
		if directOpts.verify {
			return verify(cmd, data, res)
		}
		return nil
	})
}

func verify(cmd *cobra.Command, data *model.ProblemData, res *app.Result) error {
	if res.Schedule == nil || res.Schedule.Commitment == nil {
		return fmt.Errorf("verify: no schedule")
	}
	if err := model.CheckSchedule(data, res.Schedule, 1e-6); err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "schedule verified")
	return nil
}

func exportSchedule(cmd *cobra.Command, path string, data *model.ProblemData, res *app.Result) error {
	if path == "" {
		return nil
	}
	if err := export.WriteFile(path, data, res.Schedule); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "schedule written to %s\n", path)
	return nil
}

// compare solves the monolithic MILP and fails when its optimum differs
// from the decomposition's cost.
func compare(ctx context.Context, cmd *cobra.Command, svc *app.Service, data *model.ProblemData, res *app.Result) error {
	if res.Schedule == nil || !res.Schedule.Converged {
		return fmt.Errorf("compare: decomposition did not converge")
	}
	ref, err := svc.Solve(ctx, data, app.ModeDirect)
	if err != nil {
		return fmt.Errorf("compare: %w", err)
	}
	a, b := res.Schedule.TotalCost, ref.Schedule.TotalCost
	fmt.Fprintf(cmd.OutOrStdout(), "direct cost %.4f, difference %.6g\n", b, a-b)
	if math.Abs(a-b) > 1e-6*math.Max(1, math.Abs(b)) {
		return fmt.Errorf("compare: decomposition cost %.6f differs from direct cost %.6f", a, b)
	}
	return nil
}
