/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gonum.org/v1/gonum/floats"

	"github.com/notargets/femassemble/InputParameters"
	"github.com/notargets/femassemble/assembly"
	"github.com/notargets/femassemble/output"
	"github.com/notargets/femassemble/telemetry"
	"github.com/notargets/femassemble/utils"
)

type ModelAssemble struct {
	InputFile      string
	OutputBase     string
	ParallelDegree int
	Profile        string
	ProfileDir     string
	Quiet          bool
	Trace          string
	Metrics        string
	MetricsFile    string
}

// AssembleCmd represents the assemble command
var AssembleCmd = &cobra.Command{
	Use:   "assemble",
	Short: "Assemble the linear system of a problem file",
	Long: `
Reads a YAML problem file, builds the mesh and coefficient data, assembles the
free DOF system gMat * u = -gVec and prints a summary. With -o the matrix, the
load vector and the node to DOF map are written as <out>.mtx, <out>.rhs.mtx and
<out>.dof.

femassemble assemble -I problem.yaml -o out`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ma := &ModelAssemble{
			InputFile:      viper.GetString("inputConditionsFile"),
			OutputBase:     viper.GetString("output"),
			ParallelDegree: viper.GetInt("parallel"),
			Profile:        viper.GetString("profile"),
			ProfileDir:     viper.GetString("profile-dir"),
			Quiet:          viper.GetBool("quiet"),
			Trace:          viper.GetString("trace"),
			Metrics:        viper.GetString("metrics"),
			MetricsFile:    viper.GetString("metrics-file"),
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return RunAssemble(ctx, ma, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(AssembleCmd)
	AssembleCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML problem file with the mesh, boundary tags and coefficients")
	AssembleCmd.Flags().StringP("output", "o", "", "base name of the MatrixMarket output files")
	AssembleCmd.Flags().IntP("parallel", "p", 0, "number of element buckets, 0 takes the problem file value or the CPU count")
	AssembleCmd.Flags().String("profile", "", "write a cpu or mem profile")
	AssembleCmd.Flags().String("profile-dir", ".", "directory for profile output")
	AssembleCmd.Flags().BoolP("quiet", "q", false, "do not print the problem and system summary")
	AssembleCmd.Flags().String("trace", "none", "trace exporter: stdout or none")
	AssembleCmd.Flags().String("metrics", "none", "metric exporter: stdout, prometheus or none")
	AssembleCmd.Flags().String("metrics-file", "femassemble.prom", "textfile written by the prometheus metric exporter")
	for _, name := range []string{"inputConditionsFile", "output", "parallel", "profile", "profile-dir", "quiet",
		"trace", "metrics", "metrics-file"} {
		_ = viper.BindPFlag(name, AssembleCmd.Flags().Lookup(name))
	}
}

var errNoInput = errors.New("must supply an input parameters file (-I, --inputConditionsFile)")

const exampleFile = `
########################################
Title: "Unit square"
Mesh:
  Nodes: [[0, 0], [1, 0], [1, 1], [0, 1], [0.5, 0.5]]
  Elements: [[0, 1, 4], [1, 2, 4], [2, 3, 4], [3, 0, 4]]
  DefaultBC: dirichlet # or neumann, robin, an integer tag
  SideBCs:
    xmax: neumann
Coefficients:
  a: 1      # number, list of values or function name
  f: one
  gD: x
########################################
`

func RunAssemble(ctx context.Context, ma *ModelAssemble, w io.Writer) (err error) {
	if len(ma.InputFile) == 0 {
		fmt.Fprintf(w, "Example File:%s\n", exampleFile)
		return errNoInput
	}
	switch ma.Profile {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(ma.ProfileDir), profile.Quiet).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath(ma.ProfileDir), profile.Quiet).Stop()
	default:
		return fmt.Errorf("unknown profile %q, use cpu or mem", ma.Profile)
	}

	cfg := telemetry.DefaultConfig()
	cfg.TraceExporter, cfg.MetricExporter, cfg.PrometheusFile = ma.Trace, ma.Metrics, ma.MetricsFile
	shutdown, err := telemetry.Init(ctx, cfg)
	if err != nil {
		return
	}
	defer func() {
		if serr := shutdown(context.Background()); err == nil {
			err = serr
		}
	}()

	logger := slog.Default().With("run", uuid.NewString()[:8])
	ip := &InputParameters.Problem2D{}
	if err = ip.ReadFile(ma.InputFile); err != nil {
		return
	}
	if !ma.Quiet {
		ip.Fprint(w)
	}
	m, err := ip.BuildMesh()
	if err != nil {
		return
	}
	p, err := ip.BuildProblem(registry)
	if err != nil {
		return
	}
	opts := []assembly.Option{assembly.WithLogger(logger)}
	nPar := ma.ParallelDegree
	if nPar == 0 {
		nPar = ip.ParallelDegree
	}
	if nPar > 0 {
		opts = append(opts, assembly.WithParallelDegree(nPar))
	}

	start := time.Now()
	sys, err := assembly.Assemble(ctx, m, p, opts...)
	if err != nil {
		return
	}
	logger.Info("assembled", "file", ma.InputFile, "ndof", m.NDOF, "nnz", sys.Matrix.NNZ(),
		"elapsed", time.Since(start))
	logger.Debug("memory", "usage", utils.GetMemUsage())
	if utils.IsNan(sys.Matrix) || utils.IsNan(sys.Vector) {
		logger.Warn("assembled system contains NaN values, check the coefficient functions")
	}
	if !ma.Quiet {
		printSystem(w, sys)
	}
	if ma.OutputBase != "" {
		if err = writeSystem(ma.OutputBase, sys); err != nil {
			return
		}
	}
	return
}

func printSystem(w io.Writer, sys *assembly.System) {
	nr, _ := sys.Matrix.Dims()
	fmt.Fprintf(w, "[%d]\t\t\t\t= Free DOFs\n", nr)
	fmt.Fprintf(w, "[%d]\t\t\t\t= Non-zeros\n", sys.Matrix.NNZ())
	fmt.Fprintf(w, "[%v]\t\t\t= Symmetric\n", sys.Matrix.IsSymmetric(1e-12))
	fmt.Fprintf(w, "%8.5g\t\t= Load Norm\n", floats.Norm(sys.Vector, 2))
}

func writeSystem(base string, sys *assembly.System) (err error) {
	for _, f := range []struct {
		suffix string
		write  func(io.Writer) error
	}{
		{".mtx", func(w io.Writer) error { return output.WriteMatrixMarket(w, &sys.Matrix) }},
		{".rhs.mtx", func(w io.Writer) error { return output.WriteVector(w, sys.Vector) }},
		{".dof", func(w io.Writer) error { return output.WriteDOFMap(w, sys.DOFMap) }},
	} {
		if err = writeFile(base+f.suffix, f.write); err != nil {
			return
		}
	}
	return
}

func writeFile(fileName string, write func(io.Writer) error) (err error) {
	var file *os.File
	if file, err = os.Create(fileName); err != nil {
		return
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()
	if err = write(file); err != nil {
		return fmt.Errorf("writing %s: %w", fileName, err)
	}
	slog.Debug("wrote", "file", fileName)
	return
}
