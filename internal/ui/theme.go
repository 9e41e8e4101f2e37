package ui

import (
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Role is what a span of terminal text means. Themes decide how each role
// looks; callers never pick raw colors.
type Role int

const (
	RolePlain Role = iota
	RoleAccent
	RoleStrong
	RoleOK
	RoleError
	RoleWarn
	RoleInfo
	RolePast
)

// Glyphs used across the concert views.
const (
	SymbolCheck     = "✓"
	SymbolCross     = "✗"
	SymbolInfo      = "ℹ"
	SymbolWarning   = "⚠"
	SymbolMusic     = "♪"
	SymbolFollow    = "♥"
	SymbolReminder  = "🔔"
	SymbolPending   = "…"
	SymbolStar      = "★"
	SymbolStarEmpty = "☆"
)

// DefaultTheme is used when GIGS_THEME is unset or unknown.
const DefaultTheme = "stage"

var themes = map[string]map[Role][]color.Attribute{
	"stage": {
		RoleAccent: {color.FgHiCyan},
		RoleStrong: {color.Bold},
		RoleOK:     {color.FgHiGreen},
		RoleError:  {color.FgHiRed},
		RoleWarn:   {color.FgHiYellow},
		RoleInfo:   {color.FgHiBlue},
		RolePast:   {color.FgHiMagenta},
	},
	"neon": {
		RoleAccent: {color.FgHiMagenta, color.Bold},
		RoleStrong: {color.Bold, color.Underline},
		RoleOK:     {color.FgHiGreen, color.Bold},
		RoleError:  {color.FgHiRed, color.Bold},
		RoleWarn:   {color.FgHiYellow, color.Bold},
		RoleInfo:   {color.FgHiCyan, color.Bold},
		RolePast:   {color.FgWhite, color.Faint},
	},
	"plain": {},
}

var (
	themeMu sync.RWMutex
	theme   = DefaultTheme
	palette map[Role]*color.Color
)

func init() {
	SetTheme(os.Getenv("GIGS_THEME"))
}

// SetTheme switches to the named theme and returns the name in effect.
// NO_COLOR and non-terminal output are honoured by fatih/color itself.
func SetTheme(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	roles, ok := themes[name]
	if !ok {
		name, roles = DefaultTheme, themes[DefaultTheme]
	}
	next := make(map[Role]*color.Color, len(roles))
	for role, attrs := range roles {
		next[role] = color.New(attrs...)
	}
	themeMu.Lock()
	theme, palette = name, next
	themeMu.Unlock()
	return name
}

// Theme returns the active theme name.
func Theme() string {
	themeMu.RLock()
	defer themeMu.RUnlock()
	return theme
}

// Paint renders s in the style of role.
func Paint(role Role, s string) string {
	themeMu.RLock()
	c := palette[role]
	themeMu.RUnlock()
	if c == nil || s == "" {
		return s
	}
	return c.Sprint(s)
}
