package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/raulk/clock"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/segflow-ml/segdeploy/internal/infer"
	"github.com/segflow-ml/segdeploy/internal/segdeploy"
)

// cliOptions carries the persistent flags shared by all subcommands.
type cliOptions struct {
	configPath  string
	region      string
	roleARN     string
	bucket      string
	project     string
	environment string
	verbose     bool
}

// newLogger builds the CLI logger. Verbose enables debug events.
func (o *cliOptions) newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if o.verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).With().Timestamp().Logger()
}

// loadConfig reads the YAML config, applies flag overrides, and
// validates. Non-fatal diagnostics are logged as warnings.
func (o *cliOptions) loadConfig(log zerolog.Logger) (*segdeploy.Config, error) {
	cfg, err := segdeploy.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}

	if o.region != "" {
		cfg.Region = o.region
	}
	if o.roleARN != "" {
		cfg.RoleARN = o.roleARN
	}
	if o.bucket != "" {
		cfg.BucketName = o.bucket
	}
	if o.project != "" {
		cfg.ProjectName = o.project
	}
	if o.environment != "" {
		cfg.Environment = o.environment
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "  - %s\n", e)
		}
		return nil, fmt.Errorf("config has %d validation error(s)", len(errs))
	}
	for _, w := range segdeploy.DiagnoseConfig(cfg) {
		log.Warn().Msg(w.String())
	}
	return cfg, nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM. The
// platform-side operation continues after cancellation; the next run
// reconciles.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// reportError prints the error with a category and remediation hint.
func reportError(err error) error {
	category, hint := segdeploy.ClassifyError(err)
	if hint != "" {
		return fmt.Errorf("%w\n  category: %s\n  hint: %s", err, category, hint)
	}
	return err
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:           "segdeploy",
		Short:         "Deploy and operate the customer segmentation model on SageMaker",
		Version:       segdeploy.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "deploy.yaml", "path to the deploy config file")
	root.PersistentFlags().StringVar(&opts.region, "region", "", "AWS region (overrides config)")
	root.PersistentFlags().StringVar(&opts.roleARN, "role-arn", "", "execution role ARN (overrides config)")
	root.PersistentFlags().StringVar(&opts.bucket, "bucket", "", "artifact bucket (overrides config)")
	root.PersistentFlags().StringVar(&opts.project, "project", "", "project name (overrides config)")
	root.PersistentFlags().StringVar(&opts.environment, "env", "", "deployment environment (overrides config)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newDeployCmd(opts),
		newRunCmd(opts),
		newEndpointCmd(opts),
		newStatusCmd(opts),
		newInvokeCmd(opts),
	)
	return root
}

// newDeployCmd registers (or re-registers) the training pipeline
// definition.
func newDeployCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "deploy",
		Short: "Register or update the training pipeline definition",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := opts.newLogger()
			cfg, err := opts.loadConfig(log)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			client, err := segdeploy.NewPlatformClient(ctx, cfg, log)
			if err != nil {
				return reportError(err)
			}
			arn, err := segdeploy.NewPipelineManager(client, cfg, log).Upsert(ctx)
			if err != nil {
				return reportError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pipeline: %s\n", arn)
			return nil
		},
	}
}

// newRunCmd starts one pipeline execution. The execution ARN is printed
// on its own line for calling scripts.
func newRunCmd(opts *cliOptions) *cobra.Command {
	var (
		clusters   int
		components int
		dataFile   string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a training pipeline execution",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := opts.newLogger()
			cfg, err := opts.loadConfig(log)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			client, err := segdeploy.NewPlatformClient(ctx, cfg, log)
			if err != nil {
				return reportError(err)
			}

			params := map[string]string{}
			if clusters > 0 {
				params[segdeploy.ParamNClusters] = strconv.Itoa(clusters)
			}
			if components > 0 {
				params[segdeploy.ParamNComponents] = strconv.Itoa(components)
			}
			if dataFile != "" {
				params[segdeploy.ParamDataFile] = dataFile
			}

			result, err := segdeploy.NewPipelineManager(client, cfg, log).Run(ctx, params)
			if err != nil {
				return reportError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.ExecutionARN)
			return nil
		},
	}
	cmd.Flags().IntVar(&clusters, "clusters", 0, "override the cluster count for this run")
	cmd.Flags().IntVar(&components, "components", 0, "override the PCA component count for this run")
	cmd.Flags().StringVar(&dataFile, "data-file", "", "override the training data file for this run")
	return cmd
}

// newEndpointCmd rolls a trained artifact onto the serving endpoint,
// creating or updating it as needed.
func newEndpointCmd(opts *cliOptions) *cobra.Command {
	var (
		trainingJob  string
		artifactURI  string
		endpointName string
	)
	cmd := &cobra.Command{
		Use:   "endpoint",
		Short: "Deploy a trained model to the serving endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := opts.newLogger()
			cfg, err := opts.loadConfig(log)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			client, err := segdeploy.NewPlatformClient(ctx, cfg, log)
			if err != nil {
				return reportError(err)
			}
			deployer := segdeploy.NewDeployer(cfg, client, client, client, clock.New(), log)

			result, err := deployer.Deploy(ctx, segdeploy.DeployRequest{
				EndpointName:  endpointName,
				TrainingJobID: trainingJob,
				ArtifactURI:   artifactURI,
			})
			if err != nil {
				return reportError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "endpoint: %s\nstate: %s\nconfig: %s\n",
				result.EndpointName, result.FinalState, result.ConfigID)
			return nil
		},
	}
	cmd.Flags().StringVar(&trainingJob, "training-job", "", "training job to resolve the artifact from")
	cmd.Flags().StringVar(&artifactURI, "artifact-uri", "", "explicit artifact location (overrides --training-job)")
	cmd.Flags().StringVar(&endpointName, "endpoint-name", "", "endpoint name (default derived from project and env)")
	return cmd
}

// newStatusCmd probes the endpoint and, when it has failed, tails its
// container logs.
func newStatusCmd(opts *cliOptions) *cobra.Command {
	var logLines int32
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the serving endpoint state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := opts.newLogger()
			cfg, err := opts.loadConfig(log)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			client, err := segdeploy.NewPlatformClient(ctx, cfg, log)
			if err != nil {
				return reportError(err)
			}

			desc, err := segdeploy.NewProber(client).Probe(ctx, cfg.EndpointName())
			if err != nil {
				return reportError(err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "endpoint: %s\nstate: %s\n", desc.Name, desc.CurrentState)
			if desc.ActiveConfigID != "" {
				fmt.Fprintf(out, "config: %s\n", desc.ActiveConfigID)
			}

			if desc.CurrentState != segdeploy.StateFailed {
				return nil
			}
			lines, err := segdeploy.NewLogTailer(client.Logs()).Tail(ctx, desc.Name, logLines)
			if err != nil {
				log.Warn().Err(err).Msg("could not fetch endpoint logs")
				return nil
			}
			if len(lines) > 0 {
				fmt.Fprintln(out, "recent container logs:")
				for _, line := range lines {
					fmt.Fprintf(out, "  %s\n", line)
				}
			}
			return nil
		},
	}
	cmd.Flags().Int32Var(&logLines, "log-lines", 25, "container log lines to show for a failed endpoint")
	return cmd
}

// newInvokeCmd sends one smoke-test record to the serving endpoint.
func newInvokeCmd(opts *cliOptions) *cobra.Command {
	var (
		age       float64
		income    float64
		purchases float64
		gender    string
	)
	cmd := &cobra.Command{
		Use:   "invoke",
		Short: "Send a test record to the serving endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := opts.newLogger()
			cfg, err := opts.loadConfig(log)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			awsCfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.Region))
			if err != nil {
				return reportError(err)
			}
			client := infer.New(awsCfg, cfg.EndpointName(), log)

			prediction, err := client.PredictOne(ctx, infer.Instance{
				Age:       age,
				Income:    income,
				Purchases: purchases,
				Gender:    gender,
			})
			if err != nil {
				return reportError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "segment: %s\ncluster: %d\nconfidence: %.3f\n",
				prediction.Segment, prediction.ClusterID, prediction.Confidence)
			return nil
		},
	}
	cmd.Flags().Float64Var(&age, "age", 30, "customer age")
	cmd.Flags().Float64Var(&income, "income", 50000, "customer income")
	cmd.Flags().Float64Var(&purchases, "purchases", 10, "customer purchase count")
	cmd.Flags().StringVar(&gender, "gender", "Male", "customer gender")
	return cmd
}
