package domain

import "github.com/samber/lo"

// Theme is the page color scheme.
type Theme string

const (
	ThemePastel       Theme = "pastel"
	ThemeDark         Theme = "dark"
	ThemeHighContrast Theme = "high-contrast"
)

// Valid reports whether t is a known theme.
func (t Theme) Valid() bool {
	return lo.Contains([]Theme{ThemePastel, ThemeDark, ThemeHighContrast}, t)
}

// FontSize is the root font size preset.
type FontSize string

const (
	FontSizeSmall  FontSize = "small"
	FontSizeMedium FontSize = "medium"
	FontSizeLarge  FontSize = "large"
)

// Valid reports whether s is a known preset.
func (s FontSize) Valid() bool {
	return lo.Contains([]FontSize{FontSizeSmall, FontSizeMedium, FontSizeLarge}, s)
}

// Pixels returns the root font size in CSS pixels.
func (s FontSize) Pixels() int {
	switch s {
	case FontSizeSmall:
		return 14
	case FontSizeLarge:
		return 20
	default:
		return 18
	}
}

// GeneralSettings is the general preference namespace.
type GeneralSettings struct {
	DisplayName     string   `json:"displayName"`
	Pronouns        string   `json:"pronouns"`
	Bio             string   `json:"bio"`
	Avatar          string   `json:"avatar"`
	Theme           Theme    `json:"theme"`
	CaptionsEnabled bool     `json:"captions"`
	FontSize        FontSize `json:"fontSize"`
	DyslexicFont    bool     `json:"dyslexic"`
}

// DefaultGeneralSettings returns the documented defaults for every general key.
func DefaultGeneralSettings() GeneralSettings {
	return GeneralSettings{
		DisplayName:     "Alex Johnson",
		Pronouns:        "they/them",
		Theme:           ThemePastel,
		CaptionsEnabled: true,
		FontSize:        FontSizeMedium,
	}
}

// Normalize replaces out-of-range values with their defaults.
func (g GeneralSettings) Normalize() GeneralSettings {
	defaults := DefaultGeneralSettings()
	if !g.Theme.Valid() {
		g.Theme = defaults.Theme
	}
	if !g.FontSize.Valid() {
		g.FontSize = defaults.FontSize
	}
	return g
}

// FocusSettings is the focus timer preference namespace.
type FocusSettings struct {
	FocusMinutes int `json:"focusMinutes"`
	BreakMinutes int `json:"breakMinutes"`
}

const (
	DefaultFocusMinutes = 25
	DefaultBreakMinutes = 5
)

func DefaultFocusSettings() FocusSettings {
	return FocusSettings{FocusMinutes: DefaultFocusMinutes, BreakMinutes: DefaultBreakMinutes}
}

// Normalize replaces durations below one minute with their defaults.
func (f FocusSettings) Normalize() FocusSettings {
	if f.FocusMinutes < 1 {
		f.FocusMinutes = DefaultFocusMinutes
	}
	if f.BreakMinutes < 1 {
		f.BreakMinutes = DefaultBreakMinutes
	}
	return f
}

// Settings is the complete user preference record.
type Settings struct {
	GeneralSettings
	FocusSettings
}

func DefaultSettings() Settings {
	return Settings{GeneralSettings: DefaultGeneralSettings(), FocusSettings: DefaultFocusSettings()}
}

// GeneralPatch carries user-triggered changes; nil fields are left untouched.
type GeneralPatch struct {
	DisplayName     *string   `json:"displayName,omitempty"`
	Pronouns        *string   `json:"pronouns,omitempty"`
	Bio             *string   `json:"bio,omitempty"`
	Avatar          *string   `json:"avatar,omitempty"`
	Theme           *Theme    `json:"theme,omitempty"`
	CaptionsEnabled *bool     `json:"captions,omitempty"`
	FontSize        *FontSize `json:"fontSize,omitempty"`
	DyslexicFont    *bool     `json:"dyslexic,omitempty"`
}

// Apply overlays the patch on g. Invalid enum values are ignored.
func (p GeneralPatch) Apply(g GeneralSettings) GeneralSettings {
	if p.DisplayName != nil {
		g.DisplayName = *p.DisplayName
	}
	if p.Pronouns != nil {
		g.Pronouns = *p.Pronouns
	}
	if p.Bio != nil {
		g.Bio = *p.Bio
	}
	if p.Avatar != nil {
		g.Avatar = *p.Avatar
	}
	if p.Theme != nil && p.Theme.Valid() {
		g.Theme = *p.Theme
	}
	if p.CaptionsEnabled != nil {
		g.CaptionsEnabled = *p.CaptionsEnabled
	}
	if p.FontSize != nil && p.FontSize.Valid() {
		g.FontSize = *p.FontSize
	}
	if p.DyslexicFont != nil {
		g.DyslexicFont = *p.DyslexicFont
	}
	return g
}

// Appearance is the render-ready projection of the general settings.
type Appearance struct {
	Theme        Theme `json:"theme"`
	RootFontPx   int   `json:"rootFontPx"`
	DyslexicFont bool  `json:"dyslexic"`
	Captions     bool  `json:"captions"`
}

func (g GeneralSettings) Appearance() Appearance {
	return Appearance{
		Theme:        g.Theme,
		RootFontPx:   g.FontSize.Pixels(),
		DyslexicFont: g.DyslexicFont,
		Captions:     g.CaptionsEnabled,
	}
}
