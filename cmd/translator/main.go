// Command translator is the reference CLI host for the translation
// pipeline: it wires capture -> D1 -> worker -> D2 -> playback together,
// loads API keys from the environment (optionally via a local .env
// file), and runs until interrupted.
//
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/babelstream/babelstream/pkg/capture"
	"github.com/babelstream/babelstream/pkg/config"
	"github.com/babelstream/babelstream/pkg/engines"
	"github.com/babelstream/babelstream/pkg/engines/asr"
	"github.com/babelstream/babelstream/pkg/engines/translate"
	"github.com/babelstream/babelstream/pkg/engines/tts"
	"github.com/babelstream/babelstream/pkg/logging"
	"github.com/babelstream/babelstream/pkg/modelcache"
	"github.com/babelstream/babelstream/pkg/pipeline"
	"github.com/babelstream/babelstream/pkg/playback"
	"github.com/babelstream/babelstream/pkg/queue"
	"github.com/babelstream/babelstream/pkg/session"
	"github.com/babelstream/babelstream/pkg/telemetry"
	"github.com/babelstream/babelstream/pkg/worker"
)

const (
	exitSuccess      = 0
	exitRuntimeError = 1
	exitArgError     = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "translator: no .env file found, using system environment variables")
	}

	var (
		src               = pflag.String("src", "", "source language code (manual mode)")
		dst               = pflag.String("dst", "", "destination language code")
		auto              = pflag.Bool("auto", false, "auto-detect source language; mutually exclusive with --src")
		voice             = pflag.String("voice", "female", "synthesis voice: female|male")
		vadAggressiveness = pflag.Int("vad", 0, "VAD aggressiveness 0-3")
		whisperModel      = pflag.String("whisper-model", "", "ASR model tag override")
		cacheDir          = pflag.String("cache-dir", "", "directory for cached model artifacts (accepted but not read by the bundled engines)")
		preload           = pflag.Bool("preload", false, "preload ASR/MT/TTS model handles for every configured language at startup")
		silenceDetection  = pflag.Bool("silence-detection", true, "enable VAD-based silence detection")
		silencePreset     = pflag.String("silence-preset", "balanced", "sensitive|balanced|aggressive|very_aggressive")
		minSilenceLen     = pflag.Int("min-silence-len", 400, "minimum silence length in ms before an utterance ends")
		silenceThresh     = pflag.Float64("silence-thresh", -34, "silence threshold in dBFS")
		maxDuration       = pflag.Int("max-duration", 30, "long-audio chunk threshold in seconds")
		langConfigPath    = pflag.String("lang-config", "", "path to the YAML language configuration file")
		asrProviderName   = pflag.String("asr-provider", "groq", "groq|openai|deepgram|assemblyai")
		mtProviderName    = pflag.String("mt-provider", "anthropic", "anthropic|openai|google")
		metricsAddr       = pflag.String("metrics-addr", "", "if set, serve Prometheus /metrics on this address")
	)
	pflag.Parse()

	if !*auto && (*src == "" || *dst == "") {
		fmt.Fprintln(os.Stderr, "translator: --src and --dst are required unless --auto is set")
		return exitArgError
	}
	if *auto && *src != "" {
		fmt.Fprintln(os.Stderr, "translator: --auto is mutually exclusive with --src")
		return exitArgError
	}
	if *dst == "" {
		fmt.Fprintln(os.Stderr, "translator: --dst is required")
		return exitArgError
	}

	cfg := config.DefaultConfig()
	cfg.Aggressiveness = clampAggressiveness(*vadAggressiveness)
	cfg.LongAudioThresholdSec = *maxDuration
	applySilencePreset(&cfg, *silencePreset)
	if !*silenceDetection {
		cfg.VoiceThresholdMs = 0
	}
	if *minSilenceLen > 0 {
		cfg.SilenceThreshold = *minSilenceLen
	}
	if *silenceThresh != 0 {
		cfg.SilenceThreshDBFS = *silenceThresh
	}
	_ = cacheDir // model artifacts on disk are the engines' own concern; reserved for loaders that take a directory

	var langConfig config.LanguageConfig
	if *langConfigPath != "" {
		lc, err := config.LoadLanguageConfig(*langConfigPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "translator: %v\n", err)
			return exitArgError
		}
		required := []string{*dst}
		if *src != "" {
			required = append(required, *src)
		}
		if err := config.RequireLanguages(lc, required...); err != nil {
			fmt.Fprintf(os.Stderr, "translator: %v\n", err)
			return exitArgError
		}
		langConfig = lc
	}

	asrEngine, err := selectASR(*asrProviderName, *whisperModel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "translator: %v\n", err)
		return exitArgError
	}
	translator, err := selectTranslator(*mtProviderName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "translator: %v\n", err)
		return exitArgError
	}
	lokutorKey := os.Getenv("LOKUTOR_API_KEY")
	if lokutorKey == "" {
		fmt.Fprintln(os.Stderr, "translator: LOKUTOR_API_KEY must be set")
		return exitArgError
	}
	ttsEngine := tts.NewLokutor(lokutorKey)

	log := logging.NewCharmLogger()
	sess := session.New()

	sinks := []telemetry.Sink{telemetry.PrintSink{Log: log}}
	if *metricsAddr != "" {
		mp, err := telemetry.NewPrometheusMeterProvider("babelstream")
		if err != nil {
			fmt.Fprintf(os.Stderr, "translator: %v\n", err)
			return exitArgError
		}
		otelSink, err := telemetry.NewOTelSink(mp)
		if err != nil {
			fmt.Fprintf(os.Stderr, "translator: %v\n", err)
			return exitArgError
		}
		sinks = append(sinks, otelSink)

		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Warn("translator: metrics server stopped", "err", err)
			}
		}()
	}
	tel := telemetry.New(sess.ID, sinks...)

	d1 := queue.New[pipeline.UtteranceRecord](cfg.D1Capacity)
	d2 := queue.New[pipeline.SynthesizedAudio](cfg.D2Capacity)

	capStage := capture.New(cfg, sess, tel, log, d1, *src)
	workStage := worker.New(cfg, sess, tel, log, d1, d2, asrEngine, translator, ttsEngine, langConfig, *dst, *voice)
	playStage := playback.New(cfg, sess, log, d2)

	ctx, cancel := context.WithCancel(context.Background())

	if *preload && langConfig != nil {
		log.Info("translator: preloading ASR/MT/TTS model handles", "languages", len(langConfig))
		errs := workStage.Preload(ctx, func(r modelcache.LoadResult) {
			if r.Err != nil {
				log.Warn("translator: preload failed", "key", r.Key.String(), "err", r.Err)
			} else {
				log.Debug("translator: preloaded", "key", r.Key.String())
			}
		})
		if len(errs) > 0 {
			log.Warn("translator: some model handles failed to preload", "failed", len(errs))
		}
	}

	if err := capStage.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "translator: fatal: capture device: %v\n", err)
		cancel()
		return exitRuntimeError
	}
	if err := playStage.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "translator: fatal: playback device: %v\n", err)
		cancel()
		return exitRuntimeError
	}

	workerDone := make(chan struct{})
	go func() {
		workStage.Run(ctx)
		close(workerDone)
	}()

	go func() {
		for ev := range sess.Events() {
			switch ev.Type {
			case session.UtteranceStarted:
				log.Info("utterance started")
			case session.TranscriptReady:
				log.Info("transcript ready", "text", ev.Data)
			case session.TranslationReady:
				log.Info("translation ready", "text", ev.Data)
			case session.Dropped:
				log.Warn("utterance dropped", "id", ev.Data)
			case session.ErrorEvent:
				log.Error("pipeline error", "err", ev.Data)
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("translator: shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSec)*time.Second)
	defer shutdownCancel()

	// Close the input queue, cancel the worker loop (with DrainOnStop the
	// in-flight utterance still finishes), wait for the worker within the
	// bounded timeout, then close the output queue and stop playback.
	capStage.Close(shutdownCtx)
	d1.Close()
	cancel()
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		log.Warn("translator: worker did not finish within shutdown timeout")
	}
	d2.Close()
	playStage.Close()
	tel.FlushRollup(shutdownCtx)
	sess.Close()

	return exitSuccess
}

func clampAggressiveness(v int) int {
	if v < 0 {
		return 0
	}
	if v > 3 {
		return 3
	}
	return v
}

// applySilencePreset maps the named presets onto VAD thresholds;
// "balanced" matches Config's own defaults.
func applySilencePreset(cfg *config.Config, preset string) {
	switch preset {
	case "sensitive":
		cfg.Aggressiveness = 0
		cfg.VoiceThresholdMs = 100
	case "aggressive":
		cfg.Aggressiveness = 2
		cfg.VoiceThresholdMs = 300
	case "very_aggressive":
		cfg.Aggressiveness = 3
		cfg.VoiceThresholdMs = 400
	default: // "balanced"
	}
}

func selectASR(name, model string) (engines.ASREngine, error) {
	switch name {
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY must be set for openai ASR")
		}
		return asr.NewOpenAI(key, model), nil
	case "deepgram":
		key := os.Getenv("DEEPGRAM_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("DEEPGRAM_API_KEY must be set for deepgram ASR")
		}
		return asr.NewDeepgram(key), nil
	case "assemblyai":
		key := os.Getenv("ASSEMBLYAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("ASSEMBLYAI_API_KEY must be set for assemblyai ASR")
		}
		return asr.NewAssemblyAI(key), nil
	case "groq", "":
		key := os.Getenv("GROQ_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("GROQ_API_KEY must be set for groq ASR")
		}
		return asr.NewGroq(key, model), nil
	default:
		return nil, fmt.Errorf("unknown asr-provider %q", name)
	}
}

func selectTranslator(name string) (engines.Translator, error) {
	switch name {
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY must be set for openai translation")
		}
		return translate.NewOpenAI(key, ""), nil
	case "google":
		key := os.Getenv("GOOGLE_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("GOOGLE_API_KEY must be set for google translation")
		}
		return translate.NewGoogle(key, ""), nil
	case "anthropic", "":
		key := os.Getenv("ANTHROPIC_API_KEY")
		if key == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY must be set for anthropic translation")
		}
		return translate.NewAnthropic(key, ""), nil
	default:
		return nil, fmt.Errorf("unknown mt-provider %q", name)
	}
}
