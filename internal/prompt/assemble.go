// Package prompt builds the SceneBlock text handed to downstream video
// models. It fills the template placeholders from saved library records and
// rejects incomplete input before any network call happens.
package prompt

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/christianpeanmd-hash/scene-weaver-sub001/internal/domain"
)

// SceneInput is everything a SceneBlock can reference. Subject and Action
// are required; the record pointers are optional and contribute their
// sections only when present.
type SceneInput struct {
	Subject     string
	Action      string
	Setting     string
	AspectRatio string
	Character   *domain.Character
	Environment *domain.Environment
	Style       *domain.SceneStyle
	Brand       *domain.Brand
}

// BuildSceneBlock assembles the prompt text. It returns
// domain.ErrInvalidPrompt when a required field is missing.
func BuildSceneBlock(in SceneInput) (string, error) {
	subject := strings.TrimSpace(in.Subject)
	action := strings.TrimSpace(in.Action)
	if subject == "" {
		return "", fmt.Errorf("subject is required: %w", domain.ErrInvalidPrompt)
	}
	if action == "" {
		return "", fmt.Errorf("action is required: %w", domain.ErrInvalidPrompt)
	}

	titler := cases.Title(language.Und)
	var b strings.Builder
	fmt.Fprintf(&b, "Scene: %s %s", subject, action)
	if setting := strings.TrimSpace(in.Setting); setting != "" {
		fmt.Fprintf(&b, " in %s", setting)
	}
	b.WriteString(".")

	if c := in.Character; c != nil {
		fmt.Fprintf(&b, "\nCharacter — %s:", titler.String(c.Name))
		appendField(&b, "look", c.Look)
		appendField(&b, "demeanor", c.Demeanor)
		appendField(&b, "voice", c.Voice)
	}
	if e := in.Environment; e != nil {
		fmt.Fprintf(&b, "\nEnvironment — %s:", titler.String(e.Name))
		appendField(&b, "description", e.Description)
		appendField(&b, "lighting", e.Lighting)
		appendField(&b, "mood", e.Mood)
	}
	if s := in.Style; s != nil {
		fmt.Fprintf(&b, "\nStyle — %s:", titler.String(s.Name))
		appendField(&b, "aesthetic", s.Aesthetic)
		appendField(&b, "camera movement", s.CameraMovement)
		appendField(&b, "color grade", s.ColorGrade)
	}
	if br := in.Brand; br != nil {
		fmt.Fprintf(&b, "\nBrand — %s:", titler.String(br.Name))
		appendField(&b, "tagline", br.Tagline)
		appendField(&b, "palette", br.Palette)
		appendField(&b, "tone", br.Tone)
	}
	if ar := strings.TrimSpace(in.AspectRatio); ar != "" {
		fmt.Fprintf(&b, "\nAspect ratio: %s.", ar)
	}

	return b.String(), nil
}

func appendField(b *strings.Builder, label, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	fmt.Fprintf(b, " %s: %s.", label, value)
}
