package model

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/semaphore"

	"mindpattern/internal/classifier"
	"mindpattern/internal/config"
)

const DefaultTokenizer = "distilbert-base-uncased"

// LoadRegistry builds every enabled adapter once, in preference order. An
// adapter that fails to load is registered as unavailable so the failure is
// visible in status and skipped at prediction time.
func LoadRegistry(ctx context.Context, cfg config.ModelsConfig) *classifier.Registry {
	gate := NewGate(cfg.Encoder.MaxConcurrent)

	var strategies []classifier.Strategy

	if cfg.Hybrid.Enabled {
		s, err := guard(func() (classifier.Strategy, error) { return loadHybrid(ctx, cfg.Encoder, cfg.Hybrid, gate) })
		if err != nil {
			log.Printf("[MODEL] Hybrid model unavailable: %v", err)
			s = classifier.Unavailable(HybridName, labelsOr(cfg.Hybrid.Labels, classifier.HybridLabels), err)
		} else {
			log.Printf("[MODEL] Hybrid model loaded with labels %v", s.Labels())
		}
		strategies = append(strategies, s)
	}

	if cfg.Single.Enabled {
		s, err := guard(func() (classifier.Strategy, error) { return loadSingle(cfg.Encoder, cfg.Single, gate) })
		if err != nil {
			log.Printf("[MODEL] Single model unavailable: %v", err)
			s = classifier.Unavailable(SingleName, labelsOr(cfg.Single.Labels, classifier.ExclusiveLabels), err)
		} else {
			log.Printf("[MODEL] Single model loaded with labels %v", s.Labels())
		}
		strategies = append(strategies, s)
	}

	return classifier.NewRegistry(strategies...)
}

// NewResolver loads the registry and puts the configured lexicon behind it.
func NewResolver(ctx context.Context, cfg *config.Config) (*classifier.Resolver, error) {
	fallback, ok := classifier.LexiconFor(cfg.Fallback.Variant)
	if !ok {
		return nil, fmt.Errorf("unknown fallback variant %q", cfg.Fallback.Variant)
	}

	reg := LoadRegistry(ctx, cfg.Models)
	log.Printf("[MODEL] %d learned strategies registered, fallback %s (%s)", reg.Len(), fallback.Name(), cfg.Fallback.Variant)

	return classifier.NewResolver(reg, fallback, classifier.WithMinLength(cfg.Fallback.MinLength)), nil
}

// guard reports a panic raised by malformed artifacts as a load error.
func guard(load func() (classifier.Strategy, error)) (s classifier.Strategy, err error) {
	defer func() {
		if p := recover(); p != nil {
			s, err = nil, fmt.Errorf("panic while loading: %v", p)
		}
	}()
	return load()
}

func labelsOr(names []string, def []classifier.Label) []classifier.Label {
	if labels := classifier.ParseLabels(names); len(labels) > 0 {
		return labels
	}
	return def
}

// prepare merges the manifest into cfg and builds the encoder chain.
func prepare(enc config.EncoderConfig, cfg config.AdapterConfig, gate *semaphore.Weighted) (config.AdapterConfig, Encoder, error) {
	if cfg.Manifest != "" {
		m, err := LoadManifest(cfg.Manifest)
		if err != nil {
			return cfg, nil, fmt.Errorf("manifest: %w", err)
		}
		cfg = m.Apply(cfg)
	}
	if cfg.Tokenizer == "" {
		cfg.Tokenizer = DefaultTokenizer
	}
	if enc.URL == "" {
		return cfg, nil, fmt.Errorf("no encoder url configured")
	}

	var e Encoder = NewRemoteEncoder(enc, cfg.Model, cfg.Tokenizer, gate)

	if cfg.WeightsPath != "" {
		format, err := ParseWeightsFormat(cfg.WeightsFormat)
		if err != nil {
			return cfg, nil, err
		}
		cp, err := LoadCheckpoint(cfg.WeightsPath, format)
		if err != nil {
			return cfg, nil, fmt.Errorf("weights: %w", err)
		}
		head, err := NewLinearHead(cp)
		if err != nil {
			return cfg, nil, fmt.Errorf("weights: %w", err)
		}
		e = NewHeadEncoder(e, head)
	}

	return cfg, e, nil
}

func loadHybrid(ctx context.Context, enc config.EncoderConfig, cfg config.AdapterConfig, gate *semaphore.Weighted) (classifier.Strategy, error) {
	cfg, e, err := prepare(enc, cfg, gate)
	if err != nil {
		return nil, err
	}

	var ens *Ensemble
	if cfg.XGBoostPath != "" {
		ens, err = LoadEnsemble(cfg.XGBoostPath)
		if err != nil {
			log.Printf("[MODEL] Tree ensemble not loaded: %v", err)
			ens = nil
		}
	}

	h, err := NewHybrid(ctx, e, ens, classifier.ParseLabels(cfg.Labels))
	if err != nil {
		return nil, err
	}
	return h, nil
}

func loadSingle(enc config.EncoderConfig, cfg config.AdapterConfig, gate *semaphore.Weighted) (classifier.Strategy, error) {
	cfg, e, err := prepare(enc, cfg, gate)
	if err != nil {
		return nil, err
	}
	single, err := NewSingle(e, classifier.ParseLabels(cfg.Labels))
	if err != nil {
		return nil, err
	}
	return single, nil
}
