// Package worker implements the single goroutine that drains the
// ASR-input queue, runs each utterance record through ASR -> translation
// -> synthesis, and enqueues the synthesized audio onto the output queue.
// Each phase's result is captured as a pipeline.PhaseOutcome on the
// utterance's TranslationJob, so a recoverable failure in one phase can
// degrade the job (fall back, skip synthesis) without tearing down the
// pipeline.
package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/babelstream/babelstream/pkg/audio"
	"github.com/babelstream/babelstream/pkg/config"
	"github.com/babelstream/babelstream/pkg/engines"
	"github.com/babelstream/babelstream/pkg/logging"
	"github.com/babelstream/babelstream/pkg/modelcache"
	"github.com/babelstream/babelstream/pkg/pcm"
	"github.com/babelstream/babelstream/pkg/pipeline"
	"github.com/babelstream/babelstream/pkg/queue"
	"github.com/babelstream/babelstream/pkg/session"
	"github.com/babelstream/babelstream/pkg/telemetry"
)

// Stage is the single-goroutine worker. Parallelism, if ever added,
// would be one Stage per goroutine sharing the queues and the model
// cache.
type Stage struct {
	cfg  config.Config
	sess *session.Session
	tel  *telemetry.Telemetry
	log  logging.Logger

	d1 *queue.Queue[pipeline.UtteranceRecord]
	d2 *queue.Queue[pipeline.SynthesizedAudio]

	// asr/translator/ttsEngine are the configured provider clients backing
	// this run; every phase obtains its handle to them through modelCache
	// rather than calling these fields directly, so LRU eviction,
	// single-flight dedup, and Preload all observe real ASR/MT/TTS
	// resolutions.
	asr        engines.ASREngine
	translator engines.Translator
	ttsEngine  engines.TTSEngine

	langConfig config.LanguageConfig
	modelCache *modelcache.Cache
	targetLang string
	voice      string

	now func() time.Time
}

// New builds a worker Stage. targetLang/voice select the destination
// language tag and synthesis voice; langConfig resolves per-language
// ASR/TTS tags.
func New(cfg config.Config, sess *session.Session, tel *telemetry.Telemetry, log logging.Logger,
	d1 *queue.Queue[pipeline.UtteranceRecord], d2 *queue.Queue[pipeline.SynthesizedAudio],
	asr engines.ASREngine, translator engines.Translator, ttsEngine engines.TTSEngine,
	langConfig config.LanguageConfig, targetLang, voice string) *Stage {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	return &Stage{
		cfg:        cfg,
		sess:       sess,
		tel:        tel,
		log:        log,
		d1:         d1,
		d2:         d2,
		asr:        asr,
		translator: translator,
		ttsEngine:  ttsEngine,
		langConfig: langConfig,
		modelCache: modelcache.New(cfg.ModelCacheSize),
		targetLang: targetLang,
		voice:      voice,
		now:        time.Now,
	}
}

// Run drains the input queue until ctx is canceled or the queue is
// closed, processing one utterance at a time. With DrainOnStop set (the
// default), the utterance already in flight when ctx is canceled is
// allowed to finish; only the queue tail behind it is discarded.
func (s *Stage) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		rec, err := s.d1.PopContext(ctx)
		if err != nil {
			return
		}
		procCtx := ctx
		if s.cfg.DrainOnStop {
			procCtx = context.WithoutCancel(ctx)
		}
		s.processUtterance(procCtx, rec)
	}
}

func (s *Stage) processUtterance(ctx context.Context, rec pipeline.UtteranceRecord) {
	job := &pipeline.TranslationJob{Utterance: rec, StartedAt: s.now()}

	text, detectedLang, ok := s.runASR(ctx, job, rec)
	if !ok {
		return
	}

	translated, ok := s.runTranslation(ctx, job, text, detectedLang)
	if !ok {
		return
	}

	pcmSamples, ok := s.runSynthesis(ctx, job, translated)
	if !ok {
		return
	}

	s.tel.SetE2ELatencyMs(time.Since(job.StartedAt).Milliseconds())
	s.sess.Emit(session.SynthesisReady, rec.ID)

	out := pipeline.SynthesizedAudio{
		UtteranceID: rec.ID,
		SessionID:   rec.SessionID,
		PCM:         pcmSamples,
		SampleRate:  s.cfg.PlaybackSampleRate,
	}
	s.pushD2(ctx, out)
}

// runASR transcribes the utterance, splitting audio longer than the
// configured threshold into overlapping chunks whose transcripts are
// concatenated. An empty or failed transcript abandons the utterance.
func (s *Stage) runASR(ctx context.Context, job *pipeline.TranslationJob, rec pipeline.UtteranceRecord) (string, string, bool) {
	start := s.now()
	text, detected, err := s.transcribe(ctx, rec)
	job.ASRLatency = time.Since(start)
	s.tel.SetASRLatencyMs(job.ASRLatency.Milliseconds())
	s.recordStep(ctx, telemetry.StepASR, job.ASRLatency, s.asr.Name(), detected, err)

	if err != nil {
		job.SourceText = pipeline.Fail[string](err)
		job.AddError(fmt.Sprintf("asr: %v", err))
		s.tel.IncProcessingErrors()
		s.sess.Emit(session.ErrorEvent, err)
		s.log.Warn("worker: asr failed, abandoning utterance", "utterance_id", rec.ID, "err", err)
		return "", "", false
	}
	if strings.TrimSpace(text) == "" {
		s.log.Debug("worker: empty transcript, abandoning utterance", "utterance_id", rec.ID)
		return "", "", false
	}

	job.SourceText = pipeline.Ok(text)
	job.DetectedLanguage = detected
	s.sess.Emit(session.TranscriptReady, text)
	return text, detected, true
}

func (s *Stage) transcribe(ctx context.Context, rec pipeline.UtteranceRecord) (string, string, error) {
	hint := rec.DeclaredSourceLang
	if tag, ok := s.asrTag(hint); ok {
		hint = tag
	}

	threshold := time.Duration(s.cfg.LongAudioThresholdSec) * time.Second
	if rec.Duration() <= threshold {
		asrEngine, err := s.resolveASR(ctx, hint)
		if err != nil {
			return "", "", err
		}
		result, err := asrEngine.Transcribe(ctx, rec.WAV, hint)
		if err != nil {
			return "", "", err
		}
		return result.Text, result.DetectedLanguage, nil
	}

	return s.transcribeChunked(ctx, rec, hint)
}

// transcribeChunked splits PCM into overlapping windows so a word isn't
// lost at a chunk boundary, transcribes each independently, and
// concatenates the text. The detected language comes from the first chunk
// with a non-empty transcript.
func (s *Stage) transcribeChunked(ctx context.Context, rec pipeline.UtteranceRecord, hint string) (string, string, error) {
	asrEngine, err := s.resolveASR(ctx, hint)
	if err != nil {
		return "", "", err
	}

	chunkLen := s.cfg.LongAudioThresholdSec * rec.SampleRate
	overlap := s.cfg.ChunkOverlapSec * rec.SampleRate
	if chunkLen <= overlap {
		chunkLen = overlap + rec.SampleRate
	}
	step := chunkLen - overlap

	var texts []string
	var detected string
	for off := 0; off < len(rec.PCM); off += step {
		end := off + chunkLen
		if end > len(rec.PCM) {
			end = len(rec.PCM)
		}
		wav := audio.Encode(rec.PCM[off:end], rec.SampleRate)

		result, err := asrEngine.Transcribe(ctx, wav, hint)
		if err != nil {
			return "", "", fmt.Errorf("worker: chunk [%d:%d]: %w", off, end, err)
		}
		if strings.TrimSpace(result.Text) != "" {
			texts = append(texts, strings.TrimSpace(result.Text))
			if detected == "" {
				detected = result.DetectedLanguage
			}
		}
		if end == len(rec.PCM) {
			break
		}
	}
	return strings.Join(texts, " "), detected, nil
}

// runTranslation falls back to the source text on a translator error
// rather than abandoning the utterance. When the declared or detected
// source language already matches the destination, the MT engine is never
// invoked and the text passes through unchanged. An empty result (after
// fallback) skips synthesis.
func (s *Stage) runTranslation(ctx context.Context, job *pipeline.TranslationJob, text, detectedLang string) (string, bool) {
	sourceLang := job.Utterance.DeclaredSourceLang
	if sourceLang == "" {
		sourceLang = detectedLang
	}

	translated := text
	if sourceLang == "" || sourceLang != s.targetLang {
		start := s.now()
		mt, err := s.resolveMT(ctx, sourceLang, s.targetLang)
		if err == nil {
			translated, err = mt.Translate(ctx, text, sourceLang, s.targetLang)
		}
		job.MTLatency = time.Since(start)
		s.tel.SetMTLatencyMs(job.MTLatency.Milliseconds())
		s.recordStep(ctx, telemetry.StepTranslation, job.MTLatency, s.translator.Name(), s.targetLang, err)

		if err != nil {
			job.AddError(fmt.Sprintf("mt: %v, falling back to source text", err))
			s.tel.IncProcessingErrors()
			s.sess.Emit(session.ErrorEvent, err)
			s.log.Warn("worker: translation failed, falling back to source text", "err", err)
			translated = text
		}
	} else {
		s.log.Debug("worker: source equals destination language, skipping translation", "lang", sourceLang)
	}

	if strings.TrimSpace(translated) == "" {
		return "", false
	}

	job.TranslatedText = pipeline.Ok(translated)
	s.sess.Emit(session.TranslationReady, translated)
	return translated, true
}

// runSynthesis synthesizes translated text, decodes the engine's WAV
// response, and resamples/normalizes it to the playback rate. A TTS
// failure fails the utterance but never the pipeline.
func (s *Stage) runSynthesis(ctx context.Context, job *pipeline.TranslationJob, translated string) ([]int16, bool) {
	tag := s.targetLang
	if t, ok := s.ttsTag(s.targetLang); ok {
		tag = t
	}

	ttsEngine, err := s.resolveTTS(ctx, tag)
	if err != nil {
		job.SynthesizedPCM = pipeline.Fail[[]int16](err)
		job.AddError(fmt.Sprintf("tts: %v", err))
		s.tel.IncProcessingErrors()
		s.sess.Emit(session.ErrorEvent, err)
		s.log.Warn("worker: tts handle resolution failed, utterance dropped", "err", err)
		return nil, false
	}

	start := s.now()
	encoded, err := ttsEngine.Synthesize(ctx, translated, s.voice, tag)
	job.TTSLatency = time.Since(start)
	s.tel.SetTTSLatencyMs(job.TTSLatency.Milliseconds())
	s.recordStep(ctx, telemetry.StepSynthesis, job.TTSLatency, ttsEngine.Name(), tag, err)

	if err != nil {
		job.SynthesizedPCM = pipeline.Fail[[]int16](err)
		job.AddError(fmt.Sprintf("tts: %v", err))
		s.tel.IncProcessingErrors()
		s.sess.Emit(session.ErrorEvent, err)
		s.log.Warn("worker: synthesis failed, utterance dropped", "err", err)
		return nil, false
	}

	samples, rate, err := audio.DecodeToInt16(encoded)
	if err != nil {
		job.AddError(fmt.Sprintf("tts: decode response: %v", err))
		s.tel.IncProcessingErrors()
		return nil, false
	}

	resampled := pcm.Resample(samples, rate, s.cfg.PlaybackSampleRate)
	normalized := pcm.NormalizePeak(resampled)
	job.SynthesizedPCM = pipeline.Ok(normalized)
	return normalized, true
}

// recordStep fans one per-phase telemetry event out to the configured
// sinks, so the OTel and persistence sinks see every ASR/MT/TTS call,
// not just the capture-side counters.
func (s *Stage) recordStep(ctx context.Context, step telemetry.StepKind, latency time.Duration, model, language string, err error) {
	r := telemetry.Record{
		ThreadID:  telemetry.ThreadWorker,
		Step:      step,
		LatencyMs: float64(latency.Milliseconds()),
		ModelUsed: model,
		Language:  language,
	}
	if err != nil {
		r.Message = "step failed"
		r.Errors = []string{err.Error()}
	} else {
		r.Message = "step completed"
	}
	s.tel.Record(ctx, r)
}

// asrTag/ttsTag resolve a language's provider tag from the static
// language config. This is a plain map lookup, not a model cache entry:
// the table is read-only and fully resident, so there is nothing to
// memoize or evict. The cache's job is the handle resolution below.
func (s *Stage) asrTag(lang string) (string, bool) {
	e, ok := s.languageEntry(lang)
	if !ok || e.ASRTag == "" {
		return "", false
	}
	return e.ASRTag, true
}

func (s *Stage) ttsTag(lang string) (string, bool) {
	e, ok := s.languageEntry(lang)
	if !ok || e.TTSTag == "" {
		return "", false
	}
	return e.TTSTag, true
}

func (s *Stage) languageEntry(lang string) (config.LanguageEntry, bool) {
	if lang == "" || s.langConfig == nil {
		return config.LanguageEntry{}, false
	}
	e, ok := s.langConfig[lang]
	return e, ok
}

// resolveASR, resolveMT, and resolveTTS obtain the model handle for a
// given (kind, params) key through the model cache: ASR keyed by
// model/language tag, MT by (src, dst) pair, TTS by language tag. The
// loader returns this run's configured provider client — one ASR/MT/TTS
// provider serves the whole run, so resolution is cheap, but routing it
// through the cache gives concurrent resolutions of the same key
// single-flighted loads, LRU-bounded residency, and a Preload that
// actually populates handles instead of bypassing the cache.
func (s *Stage) resolveASR(ctx context.Context, tag string) (engines.ASREngine, error) {
	v, err := s.modelCache.Get(ctx, modelcache.Key{Kind: "asr", Params: tag}, func(ctx context.Context, key modelcache.Key) (any, error) {
		return s.asr, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(engines.ASREngine), nil
}

func (s *Stage) resolveMT(ctx context.Context, src, dst string) (engines.Translator, error) {
	v, err := s.modelCache.Get(ctx, modelcache.Key{Kind: "mt", Params: src + "->" + dst}, func(ctx context.Context, key modelcache.Key) (any, error) {
		return s.translator, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(engines.Translator), nil
}

func (s *Stage) resolveTTS(ctx context.Context, tag string) (engines.TTSEngine, error) {
	v, err := s.modelCache.Get(ctx, modelcache.Key{Kind: "tts", Params: tag}, func(ctx context.Context, key modelcache.Key) (any, error) {
		return s.ttsEngine, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(engines.TTSEngine), nil
}

// Preload eagerly resolves, through the model cache, an ASR handle and a
// TTS handle for every configured language plus an MT handle for every
// (src, dst) pair among them, so the first utterance in each language
// doesn't pay the single-flighted load's latency. onProgress may be nil;
// it otherwise receives one LoadResult per key as it completes. Errors
// per key are returned in the map; partial success is allowed. Returns
// nil if no language config was supplied.
func (s *Stage) Preload(ctx context.Context, onProgress func(modelcache.LoadResult)) map[modelcache.Key]error {
	if s.langConfig == nil {
		return nil
	}

	langs := make([]string, 0, len(s.langConfig))
	for lang := range s.langConfig {
		langs = append(langs, lang)
	}

	keys := make([]modelcache.Key, 0, len(langs)*2+len(langs)*len(langs))
	for _, lang := range langs {
		asrTag := lang
		if tag, ok := s.asrTag(lang); ok {
			asrTag = tag
		}
		keys = append(keys, modelcache.Key{Kind: "asr", Params: asrTag})

		ttsTag := lang
		if tag, ok := s.ttsTag(lang); ok {
			ttsTag = tag
		}
		keys = append(keys, modelcache.Key{Kind: "tts", Params: ttsTag})
	}
	for _, src := range langs {
		for _, dst := range langs {
			if src == dst {
				continue
			}
			keys = append(keys, modelcache.Key{Kind: "mt", Params: src + "->" + dst})
		}
	}

	loader := func(ctx context.Context, key modelcache.Key) (any, error) {
		switch key.Kind {
		case "asr":
			return s.asr, nil
		case "tts":
			return s.ttsEngine, nil
		case "mt":
			return s.translator, nil
		default:
			return nil, fmt.Errorf("worker: unknown model cache kind %q", key.Kind)
		}
	}

	return s.modelCache.LoadAll(ctx, keys, loader, onProgress)
}

// pushD2 retries TryPush with short timeouts until it succeeds or ctx is
// canceled: an effectively unbounded wait (the worker is off the
// real-time path, and playback drains continuously so backpressure here
// is rare and brief) that still can't outlive shutdown.
func (s *Stage) pushD2(ctx context.Context, out pipeline.SynthesizedAudio) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := s.d2.TryPush(out, 100*time.Millisecond); err == nil {
			return
		} else if err == queue.ErrClosed {
			return
		}
	}
}
