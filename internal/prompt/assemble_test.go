package prompt

import (
	"errors"
	"strings"
	"testing"

	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/domain"
)

func TestBuildSceneBlockRequiresSubjectAndAction(t *testing.T) {
	if _, err := BuildSceneBlock(SceneInput{Action: "runs"}); !errors.Is(err, domain.ErrInvalidPrompt) {
		t.Fatalf("missing subject: err = %v", err)
	}
	if _, err := BuildSceneBlock(SceneInput{Subject: "a fox"}); !errors.Is(err, domain.ErrInvalidPrompt) {
		t.Fatalf("missing action: err = %v", err)
	}
	if _, err := BuildSceneBlock(SceneInput{Subject: "  ", Action: "runs"}); !errors.Is(err, domain.ErrInvalidPrompt) {
		t.Fatalf("blank subject: err = %v", err)
	}
}

func TestBuildSceneBlockMinimal(t *testing.T) {
	got, err := BuildSceneBlock(SceneInput{Subject: "a fox", Action: "runs"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got != "Scene: a fox runs." {
		t.Fatalf("prompt = %q", got)
	}
}

func TestBuildSceneBlockWithSettingAndAspectRatio(t *testing.T) {
	got, err := BuildSceneBlock(SceneInput{
		Subject:     "a fox",
		Action:      "runs",
		Setting:     "a snowy forest",
		AspectRatio: "9:16",
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(got, "in a snowy forest.") {
		t.Fatalf("setting missing: %q", got)
	}
	if !strings.Contains(got, "Aspect ratio: 9:16.") {
		t.Fatalf("aspect ratio missing: %q", got)
	}
}

func TestBuildSceneBlockIncludesRecordSections(t *testing.T) {
	char := &domain.Character{Look: "tall, red coat", Demeanor: "playful", Voice: "warm"}
	char.Name = "tara the fox"
	env := &domain.Environment{Description: "pine forest", Lighting: "golden hour"}
	env.Name = "winter woods"
	style := &domain.SceneStyle{Aesthetic: "cinematic", CameraMovement: "slow dolly"}
	style.Name = "film look"
	brand := &domain.Brand{Tagline: "run wild", Tone: "upbeat"}
	brand.Name = "trailco"

	got, err := BuildSceneBlock(SceneInput{
		Subject:     "a fox",
		Action:      "runs",
		Character:   char,
		Environment: env,
		Style:       style,
		Brand:       brand,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	for _, want := range []string{
		"Character — Tara The Fox:",
		"look: tall, red coat.",
		"voice: warm.",
		"Environment — Winter Woods:",
		"lighting: golden hour.",
		"Style — Film Look:",
		"camera movement: slow dolly.",
		"Brand — Trailco:",
		"tagline: run wild.",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("prompt missing %q:\n%s", want, got)
		}
	}
}

func TestBuildSceneBlockSkipsEmptyFields(t *testing.T) {
	char := &domain.Character{Look: "tall"}
	char.Name = "Tara"
	got, err := BuildSceneBlock(SceneInput{Subject: "a fox", Action: "runs", Character: char})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if strings.Contains(got, "demeanor") || strings.Contains(got, "voice") {
		t.Fatalf("empty fields rendered: %q", got)
	}
}
