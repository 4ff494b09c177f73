package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/casa-core/internal/calibration"
	"github.com/GoSim-25-26J-441/casa-core/internal/doe"
	"github.com/GoSim-25-26J-441/casa-core/internal/montecarlo"
	"github.com/GoSim-25-26J-441/casa-core/internal/rsproxy"
	"github.com/GoSim-25-26J-441/casa-core/internal/scenario"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "check the scenario file and its base case",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}
			setupLogger(cfg)
			s, err := scenario.FromConfig(cfg)
			if err != nil {
				return err
			}
			base, err := s.BaseCase()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "scenario\t%s\n", s.ID())
			fmt.Fprintf(w, "base case\t%s\n", s.BaseCasePath())
			fmt.Fprintf(w, "parameters\t%d\n", s.Space().Len())
			for _, d := range s.Catalog().Descriptors() {
				state := "applicable"
				if !d.IsApplicable(base) {
					state = "outside base case"
				}
				fmt.Fprintf(w, "observable %s\t%s\n", d.Names()[0], state)
			}
			return w.Flush()
		},
	}
}

func doeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doe",
		Short: "generate the configured designs and run their cases",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			set := a.scen.DoECases()
			var runErr error
			for _, d := range a.cfg.DoE {
				family, err := doe.ParseFamily(d.Family)
				if err != nil {
					return err
				}
				label, err := a.scen.GenerateDoE(ctx, family, d.Samples, d.Label)
				if err != nil {
					return err
				}
				if len(set.IndexOf(label)) == 0 {
					a.log.Info("design adds no new case", "label", label)
					continue
				}
				if err := set.FilterByExperimentName(label); err != nil {
					return err
				}
				if err := a.scen.ApplyMutations(set); err != nil {
					return err
				}
				if err := a.scen.ValidateCaseSet(set); err != nil {
					return err
				}
				if err := a.scen.RequestObservables(set); err != nil {
					return err
				}
				// failed cases stay in the set; their results are not collected
				if err := a.scen.RunCases(ctx, set); err != nil {
					a.log.Warn("some cases failed", "label", label, "error", err)
					runErr = err
				}
				if err := a.scen.CollectRunResults(set); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d cases\n", label, set.Size())
				if ctx.Err() != nil {
					break
				}
			}
			if err := set.FilterByExperimentName(""); err != nil {
				return err
			}
			if err := a.save(); err != nil {
				return err
			}
			return runErr
		},
	}
}

func proxyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "proxy",
		Short: "fit the configured response surfaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			for _, pc := range a.cfg.Proxies {
				if _, ok := a.scen.Proxy(pc.Name); ok {
					a.log.Info("proxy already fitted", "proxy", pc.Name)
					continue
				}
				kriging, err := rsproxy.ParseKriging(pc.Kriging)
				if err != nil {
					return err
				}
				p, err := a.scen.AddProxy(ctx, pc.Name, pc.Order, kriging, pc.DoEList)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: order %d, %s, fitted on %v\n", p.Name(), pc.Order, p.Kriging(), p.DoEList())
			}
			return a.save()
		},
	}
}

func mcCommand() *cobra.Command {
	var saveBest string
	cmd := &cobra.Command{
		Use:   "mc",
		Short: "sample the configured proxy",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			settings, err := scenario.MonteCarloSettings(a.cfg.MonteCarlo)
			if err != nil {
				return err
			}
			sampling, err := scenario.SamplingSpace(a.scen.Space(), a.cfg.MonteCarlo.Sampling)
			if err != nil {
				return err
			}
			res, err := a.scen.RunMonteCarlo(ctx, a.cfg.MonteCarlo.Proxy, settings, sampling)
			if err != nil {
				return err
			}
			printMonteCarlo(cmd, a.scen, res)
			if saveBest != "" {
				i := bestSample(res)
				if i < 0 {
					return fmt.Errorf("no sample could be compared with the references")
				}
				if err := a.scen.SaveCalibratedCase(saveBest, i); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "best sample %d written to %s\n", i, saveBest)
			}
			return a.save()
		},
	}
	cmd.Flags().StringVar(&saveBest, "save-best", "", "write the project of the best sample to this path")
	return cmd
}

// bestSample is the sampling-order index of the smallest misfit, -1 when
// every misfit is undefined.
func bestSample(res *montecarlo.Result) int {
	best := -1
	for i, s := range res.Samples {
		if math.IsNaN(s.Misfit) {
			continue
		}
		if best < 0 || s.Misfit < res.Samples[best].Misfit {
			best = i
		}
	}
	return best
}

func printMonteCarlo(cmd *cobra.Command, s *scenario.Scenario, res *montecarlo.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d samples, GOF %.1f%%, proposed std-dev factor %.3g\n",
		res.Algorithm, len(res.Samples), res.GOF, res.ProposedStdDevFactor)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "observable\tP10\tP50\tP90\t")
	for _, d := range s.Catalog().Descriptors() {
		for sub, name := range d.Names() {
			cdf, err := res.CDF(d, sub)
			if err != nil {
				fmt.Fprintf(w, "%s\t-\t-\t-\t\n", name)
				continue
			}
			fmt.Fprintf(w, "%s\t%.4g\t%.4g\t%.4g\t\n", name, cdf[0], cdf[4], cdf[8])
		}
	}
	_ = w.Flush()
}

func calibrateCommand() *cobra.Command {
	var plot bool
	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "calibrate the parameters against the references with the simulator",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			res, calErr := a.scen.Calibrate(ctx, scenario.CalibrationSettings(a.cfg.Calibration))
			if res != nil {
				printCalibration(cmd, res, plot)
			}
			if err := a.save(); err != nil {
				return err
			}
			return calErr
		},
	}
	cmd.Flags().BoolVar(&plot, "plot", true, "plot the residual norm of every iteration")
	return cmd
}

func printCalibration(cmd *cobra.Command, res *calibration.Result, plot bool) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s after %d iterations and %d cases: %s\n", res.Status, res.Iterations, res.Evaluations, res.Reason)
	fmt.Fprintf(out, "residual norm %.6g\n", res.Norm)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, v := range res.Parameters {
		fmt.Fprintf(w, "%s\t%v\n", v.Parameter().Name(), v.Floats())
	}
	_ = w.Flush()
	if norms := res.Norms(); plot && len(norms) > 1 {
		fmt.Fprintln(out, asciigraph.Plot(norms,
			asciigraph.Height(10),
			asciigraph.Width(60),
			asciigraph.Caption("residual norm per iteration")))
	}
}
