package config

import (
	"math"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("poolai-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.StaticMap.Zoom != 20 || cfg.StaticMap.Width != 640 || cfg.StaticMap.Format != "png" {
		t.Errorf("unexpected staticmap defaults %+v", cfg.StaticMap)
	}
	if cfg.Dataset.TrainRatio != 0.85 || cfg.Dataset.ValidRatio != 0.10 {
		t.Errorf("unexpected dataset ratios %+v", cfg.Dataset)
	}
	if cfg.Telemetry.ServiceName != "poolai-test" {
		t.Errorf("expected service name from Load, got %q", cfg.Telemetry.ServiceName)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("POOLAI_STATICMAP_API_KEY", "from-env")
	t.Setenv("POOLAI_STATICMAP_ZOOM", "18")

	cfg, err := Load("poolai-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.StaticMap.APIKey != "from-env" || cfg.StaticMap.Zoom != 18 {
		t.Errorf("expected env overrides, got %+v", cfg.StaticMap)
	}
}

func TestLoadWithFlags(t *testing.T) {
	t.Setenv("POOLAI_STATICMAP_WIDTH", "320")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("zoom", 0, "")
	flags.Int("width", 0, "")
	flags.String("out", "", "")
	if err := flags.Parse([]string{"--zoom", "17", "--out", "./shots"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadWithFlags("poolai-test", flags, map[string]string{
		"staticmap.zoom":      "zoom",
		"staticmap.width":     "width",
		"pictures.output_dir": "out",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.StaticMap.Zoom != 17 || cfg.Pictures.OutputDir != "./shots" {
		t.Errorf("expected flag overrides, got zoom=%d out=%q", cfg.StaticMap.Zoom, cfg.Pictures.OutputDir)
	}
	// unset flag must not shadow the environment
	if cfg.StaticMap.Width != 320 {
		t.Errorf("expected width from env, got %d", cfg.StaticMap.Width)
	}
}

func TestLoadWithFlags_UnknownFlag(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	if _, err := LoadWithFlags("poolai-test", flags, map[string]string{"staticmap.zoom": "zoom"}); err == nil {
		t.Fatal("expected error for an unknown flag")
	}
}

func TestValidate(t *testing.T) {
	cfg, err := Load("poolai-test")
	if err != nil {
		t.Fatal(err)
	}

	cfg.Dataset.TrainRatio = 0.9
	cfg.Dataset.ValidRatio = 0.2
	cfg.StaticMap.Zoom = 25
	cfg.Cadastre.Keyword = ""

	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"must not exceed 1", "staticmap.zoom", "cadastre.keyword"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}

func TestValidate_NonFiniteRatios(t *testing.T) {
	cfg, err := Load("poolai-test")
	if err != nil {
		t.Fatal(err)
	}

	cfg.Dataset.TrainRatio = math.NaN()
	cfg.Dataset.ValidRatio = math.Inf(1)

	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"dataset.train_ratio must be in [0,1]", "dataset.valid_ratio must be in [0,1]"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}
