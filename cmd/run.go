package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/andresmejia3/facegate/internal/config"
	"github.com/andresmejia3/facegate/internal/corpus"
	"github.com/andresmejia3/facegate/internal/dispatch"
	"github.com/andresmejia3/facegate/internal/logger"
	"github.com/andresmejia3/facegate/internal/metrics"
	"github.com/andresmejia3/facegate/internal/pipeline"
	"github.com/andresmejia3/facegate/internal/statusapi"
	"github.com/andresmejia3/facegate/internal/utils"
	"github.com/andresmejia3/facegate/internal/vision"
	"github.com/andresmejia3/facegate/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Options holds the flag overrides shared by run and verify
type Options struct {
	Device       string
	Threshold    float64
	Workers      int
	QueueSize    int
	CorpusPath   string
	CorpusSource string
	Port         string
	NoDisplay    bool
	Edge         bool
	Record       bool
	StatusAddr   string
}

var runOpts Options

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch the camera and open the door for recognized faces",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		applyOptions(cmd, Cfg, runOpts)
		if err := validateConfig(Cfg); err != nil {
			return err
		}
		return runPipeline(cmd.Context(), Cfg)
	},
}

func init() {
	runCmd.Flags().StringVarP(&runOpts.Device, "device", "d", "", "Camera index, video file or stream URL")
	runCmd.Flags().Float64VarP(&runOpts.Threshold, "threshold", "t", 0, "Face matching threshold (lower is stricter)")
	runCmd.Flags().IntVarP(&runOpts.Workers, "workers", "w", 0, "Number of recognition workers")
	runCmd.Flags().IntVar(&runOpts.QueueSize, "queue-size", 0, "Maximum pending recognition jobs")
	runCmd.Flags().StringVar(&runOpts.CorpusPath, "corpus", "", "Directory of reference face images")
	runCmd.Flags().StringVar(&runOpts.CorpusSource, "corpus-source", "", "Reference corpus source (dir or postgres)")
	runCmd.Flags().StringVarP(&runOpts.Port, "port", "p", "", "Serial port of the door controller")
	runCmd.Flags().BoolVar(&runOpts.NoDisplay, "no-display", false, "Run without a preview window")
	runCmd.Flags().BoolVar(&runOpts.Edge, "edge", false, "Only signal when a face becomes recognized")
	runCmd.Flags().BoolVar(&runOpts.Record, "record", false, "Record every signal in the database")
	runCmd.Flags().StringVar(&runOpts.StatusAddr, "status", "", "Serve the status API on this address (e.g. :8080)")
	rootCmd.AddCommand(runCmd)
}

// applyOptions copies the flags the user actually set over the configuration.
func applyOptions(cmd *cobra.Command, cfg *config.Config, o Options) {
	f := cmd.Flags()
	if f.Changed("device") {
		cfg.Camera.Device = o.Device
	}
	if f.Changed("threshold") {
		cfg.Recognition.Threshold = o.Threshold
	}
	if f.Changed("workers") {
		cfg.Recognition.Workers = o.Workers
	}
	if f.Changed("queue-size") {
		cfg.Recognition.QueueSize = o.QueueSize
	}
	if f.Changed("corpus") {
		cfg.Corpus.Path = o.CorpusPath
	}
	if f.Changed("corpus-source") {
		cfg.Corpus.Source = o.CorpusSource
	}
	if f.Changed("port") {
		cfg.Actuator.Port = o.Port
	}
	if f.Changed("no-display") {
		cfg.Display.Enabled = !o.NoDisplay
	}
	if f.Changed("edge") {
		cfg.Actuator.EdgeTriggered = o.Edge
	}
	if f.Changed("record") {
		cfg.Database.RecordEvents = o.Record
	}
	if f.Changed("status") {
		cfg.Status.Addr = o.StatusAddr
	}
}

func validateConfig(cfg *config.Config) error {
	warnings, err := cfg.Validate()
	if err != nil {
		return err
	}
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "⚠️  %s\n", w)
	}
	return nil
}

// openCorpus returns the configured reference source.
func openCorpus(ctx context.Context, cfg *config.Config) (corpus.Source, error) {
	if cfg.Corpus.Source == config.CorpusPostgres {
		db, err := openDB(ctx)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
	if _, err := os.Stat(cfg.Corpus.Path); err != nil {
		return nil, fmt.Errorf("%w: %s", corpus.ErrNoCorpus, cfg.Corpus.Path)
	}
	return corpus.NewDir(cfg.Corpus.Path), nil
}

// newVerifier loads the detection and embedding models. The returned cleanup
// releases both.
func newVerifier(ctx context.Context, cfg *config.Config, log *zap.Logger) (*vision.CascadeDetector, *worker.Verifier, func(), error) {
	src, err := openCorpus(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	detector, err := vision.NewCascadeDetector(cfg.Recognition.Cascade)
	if err != nil {
		return nil, nil, nil, err
	}
	comparer, err := vision.NewEmbeddingComparer(cfg.Recognition.Model)
	if err != nil {
		detector.Close()
		return nil, nil, nil, err
	}
	v := &worker.Verifier{
		Source:    src,
		Comparer:  comparer,
		Threshold: cfg.Recognition.Threshold,
		Logger:    log.Named("verify"),
	}
	cleanup := func() {
		comparer.Close()
		detector.Close()
	}
	return detector, v, cleanup, nil
}

func runPipeline(ctx context.Context, cfg *config.Config) error {
	log := logger.Log()

	fmt.Fprintln(os.Stderr, "🚀 Loading face models...")
	detector, verifier, cleanup, err := newVerifier(ctx, cfg, log)
	if err != nil {
		utils.ShowError("Failed to prepare recognition", err)
		return err
	}
	defer cleanup()

	camera, err := vision.OpenCamera(cfg.Camera.Device)
	if err != nil {
		utils.ShowError("Could not open camera", err)
		return fmt.Errorf("%w: %w", pipeline.ErrCapture, err)
	}

	var renderer pipeline.Renderer
	if cfg.Display.Enabled {
		renderer = vision.NewWindowRenderer(cfg.Display.Window)
	} else {
		renderer = vision.NewHeadlessRenderer(log.Named("display"))
	}

	m := metrics.New()
	samplerCtx, stopSampler := context.WithCancel(ctx)
	defer stopSampler()
	go m.StartProcessSampler(samplerCtx, 5*time.Second, log)

	var recorder dispatch.Recorder
	if cfg.Database.RecordEvents {
		db, err := openDB(ctx)
		if err != nil {
			log.Warn("⚠️  Access events will not be recorded", zap.Error(err))
		} else {
			recorder = db
		}
	}

	actuator := dispatch.OpenActuator(cfg.Actuator, log.Named("dispatch"))
	dispatcher := dispatch.New(actuator, dispatch.Options{
		Command:       cfg.Actuator.Command,
		EdgeTriggered: cfg.Actuator.EdgeTriggered,
		Recorder:      recorder,
		Metrics:       m,
		Logger:        log.Named("dispatch"),
	})

	p := pipeline.New(pipeline.Deps{
		Source:     camera,
		Resize:     vision.Resize,
		Detector:   detector,
		Renderer:   renderer,
		Verifier:   verifier,
		Dispatcher: dispatcher,
	}, pipeline.Options{
		Size:      cfg.Camera.Size(),
		Workers:   cfg.Recognition.Workers,
		QueueSize: cfg.Recognition.QueueSize,
		Logger:    log,
		Metrics:   m,
	})

	if cfg.Status.Addr != "" {
		srv := statusapi.Start(cfg.Status.Addr, p, m, log.Named("status"))
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	fmt.Fprintln(os.Stderr, "📸 System Ready: Scanning for faces...")
	if err := p.Run(ctx); err != nil {
		utils.ShowError("Camera stopped delivering frames", err)
		return err
	}

	s := p.Stats()
	fmt.Fprintf(os.Stderr, "✨ Stopped after %d frames (%d faces, %d dropped jobs)\n", s.Cycles, s.Detections, s.Dropped)
	return nil
}
