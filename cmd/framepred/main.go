// Package main provides the framepred CLI.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/born-ml/framepred/internal/config"
	"github.com/born-ml/framepred/internal/pred"
	"github.com/born-ml/framepred/internal/predict"
	"github.com/born-ml/framepred/internal/speech"
	"github.com/born-ml/framepred/internal/trainer"
	"github.com/sirupsen/logrus"
)

const version = "v0.1.0-dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stdout)
		return 0
	}

	var err error
	switch args[0] {
	case "version":
		_, _ = fmt.Fprintf(stdout, "framepred %s\n", version)
		return 0
	case "predict":
		err = runPredict(ctx, args[1:], stdin, stdout, stderr)
	case "train":
		err = runTrain(ctx, args[1:], stderr)
	case "init":
		err = runInit(args[1:], stderr)
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		usage(stderr)
		return 2
	}

	if err != nil {
		_, _ = fmt.Fprintf(stderr, "framepred %s: %v\n", args[0], err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	_, _ = fmt.Fprintf(w, "framepred %s - per-frame sequence classifier\n\n", version)
	_, _ = fmt.Fprintln(w, "Commands:")
	_, _ = fmt.Fprintln(w, "  version    Show version")
	_, _ = fmt.Fprintln(w, "  predict    Predict labels or log-probs for a frame batch")
	_, _ = fmt.Fprintln(w, "  train      Train the prediction layer")
	_, _ = fmt.Fprintln(w, "  init       Write an initial parameter file")
}

// logFlags registers the logging flags shared by every command.
type logFlags struct {
	level  string
	format string
}

func (l *logFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&l.level, "log-level", "info", "Log level (debug, info, warn, error)")
	fs.StringVar(&l.format, "log-format", "text", "Log format (text, json)")
}

func (l *logFlags) logger(out io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(l.level)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(level)
	switch l.format {
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unknown log format %q", l.format)
	}
	return logger, nil
}

func runPredict(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	fs.SetOutput(stderr)
	paramPath := fs.String("param", "", "Parameter file (required)")
	labelPath := fs.String("label", "", "Label set, one label per line")
	framePath := fs.String("frame-batch", "", "Frame batch file (default stdin)")
	logProb := fs.Bool("logprob", false, "Print log-prob vectors instead of labels")
	subsample := fs.Int("subsample", 1, "Predict every N-th frame and repeat it N times")
	workers := fs.Int("workers", 0, "Sequences predicted in parallel (default one per CPU)")
	var lf logFlags
	lf.register(fs)

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *paramPath == "" {
		return fmt.Errorf("--param is required")
	}
	if !*logProb && *labelPath == "" {
		return fmt.Errorf("--label is required unless --logprob is set")
	}

	logger, err := lf.logger(stderr)
	if err != nil {
		return err
	}

	param, err := pred.LoadParamFile(*paramPath)
	if err != nil {
		return err
	}

	var labels *speech.LabelSet
	if *labelPath != "" {
		labels, err = speech.LoadLabelSetFile(*labelPath)
		if err != nil {
			return err
		}
	}

	p, err := predict.New(param, predict.Options{
		Labels:    labels,
		LogProb:   *logProb,
		Subsample: *subsample,
		Workers:   *workers,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	in := stdin
	if *framePath != "" {
		//nolint:gosec // G304: frame batch path is supplied by the user
		f, err := os.Open(*framePath)
		if err != nil {
			return fmt.Errorf("open frame batch: %w", err)
		}
		defer func() { _ = f.Close() }()
		in = f
	}

	n, err := p.Run(ctx, speech.NewFrameBatchReader(in), stdout)
	if err != nil {
		return err
	}
	logger.WithField("sequences", n).Info("Prediction completed")
	return nil
}

func runTrain(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", "", "Path to YAML config")
	var o config.Overrides
	fs.StringVar(&o.FrameBatch, "frame-batch", "", "Override frame batch file")
	fs.StringVar(&o.LabelBatch, "label-batch", "", "Override gold label batch file")
	fs.StringVar(&o.LabelSet, "label", "", "Override label set file")
	fs.StringVar(&o.Param, "param", "", "Override initial parameter file")
	fs.StringVar(&o.Output, "output", "", "Override output parameter file")
	fs.StringVar(&o.Optimizer, "optimizer", "", "Override optimizer (adagrad, rmsprop)")
	fs.Float64Var(&o.StepSize, "step-size", 0, "Override step size")
	fs.Float64Var(&o.Decay, "decay", 0, "Override RMSProp decay")
	fs.IntVar(&o.Epochs, "epochs", 0, "Override number of epochs")
	fs.IntVar(&o.Subsample, "subsample", 0, "Override subsampling frequency")
	fs.IntVar(&o.LogEvery, "log-every", 0, "Log every N sequences")
	var lf logFlags
	lf.register(fs)

	if err := fs.Parse(args); err != nil {
		return err
	}

	logger, err := lf.logger(stderr)
	if err != nil {
		return err
	}

	cfg := config.Default()
	if *cfgPath != "" {
		cfg, err = config.Load(*cfgPath)
		if err != nil {
			return err
		}
	}
	cfg.ApplyOverrides(o)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	_, err = trainer.Run(ctx, cfg, logger)
	return err
}

func runInit(args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(stderr)
	classes := fs.Int("classes", 0, "Number of classes K (required)")
	dim := fs.Int("dim", 0, "Feature dimension D (required)")
	output := fs.String("output", "", "Output parameter file (required)")
	random := fs.Bool("random", false, "Xavier uniform weights instead of zeros")
	seed := fs.Int64("seed", 0, "PRNG seed for --random (default current time)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *classes <= 0 || *dim <= 0 {
		return fmt.Errorf("--classes and --dim must be > 0")
	}
	if *output == "" {
		return fmt.Errorf("--output is required")
	}

	param := pred.NewParam(*classes, *dim)
	if *random {
		s := *seed
		if s == 0 {
			s = time.Now().UnixNano()
		}
		//nolint:gosec // G404: weight init does not need crypto randomness
		param = pred.NewXavierParam(*classes, *dim, rand.New(rand.NewSource(s)))
	}

	return pred.SaveParamFile(*output, param)
}
