package config

import "github.com/alexflint/go-arg"

// Args is the command line. Global flags override the config file and the
// environment; exactly one subcommand selects the action.
type Args struct {
	BaseURL  string `arg:"--base-url" help:"backend root URL, e.g. http://localhost:5001"`
	User     string `arg:"-u,--user" help:"user identifier sent as X-User-ID"`
	Locale   string `arg:"--locale" help:"display locale: en or zh-TW"`
	LogLevel string `arg:"--log-level" help:"debug, info, warn or error"`
	Verbose  bool   `arg:"-v,--verbose" help:"shorthand for --log-level debug"`
	EnvFile  string `arg:"--env-file" help:"dotenv file to load (default .env)"`
	Offline  bool   `arg:"--offline" help:"use the cached snapshot only; never contact the backend for reads"`
	JSON     bool   `arg:"--json" help:"print machine-readable JSON"`

	List    *ListCmd    `arg:"subcommand:list" help:"list concerts, optionally filtered by artist or venue text"`
	Follows *FollowsCmd `arg:"subcommand:follows" help:"list followed concerts"`
	Artists *ArtistsCmd `arg:"subcommand:artists" help:"list artist groups, or one artist's concerts"`
	Show    *ShowCmd    `arg:"subcommand:show" help:"show one concert with countdown and reviews"`
	Follow  *FollowCmd  `arg:"subcommand:follow" help:"toggle following a concert"`
	Remind  *RemindCmd  `arg:"subcommand:remind" help:"toggle the on-sale reminder of a concert"`
	Review  *ReviewCmd  `arg:"subcommand:review" help:"post a review for a concert"`
	Search  *SearchCmd  `arg:"subcommand:search" help:"AI-assisted free-text search"`
	Refresh *RefreshCmd `arg:"subcommand:refresh" help:"reload concerts, follows and reminders"`
	Crawl   *CrawlCmd   `arg:"subcommand:crawl" help:"ask the backend to recrawl all sources, then refresh"`
	Status  *StatusCmd  `arg:"subcommand:status" help:"backend health, cache and counters"`
	Config  *ConfigCmd  `arg:"subcommand:config" help:"show or change configuration"`
}

// ListCmd lists concerts.
type ListCmd struct {
	Query string `arg:"positional" help:"case-insensitive artist or venue filter"`
	Limit int    `arg:"-n,--limit" help:"show at most N concerts (0 = all)"`
}

// FollowsCmd lists followed concerts.
type FollowsCmd struct {
	Query string `arg:"positional" help:"case-insensitive artist or venue filter"`
}

// ArtistsCmd lists artist groups or drills into one.
type ArtistsCmd struct {
	Artist string `arg:"positional" help:"canonical artist key to drill into"`
	Query  string `arg:"-q,--query" help:"filter group names"`
	Limit  int    `arg:"-n,--limit" help:"show at most N groups (0 = all)"`
}

// ShowCmd opens one concert.
type ShowCmd struct {
	ID string `arg:"positional,required" help:"concert id"`
}

// FollowCmd toggles a follow.
type FollowCmd struct {
	ID string `arg:"positional,required" help:"concert id"`
}

// RemindCmd toggles a reminder.
type RemindCmd struct {
	ID string `arg:"positional,required" help:"concert id"`
}

// ReviewCmd posts a review.
type ReviewCmd struct {
	ID      string `arg:"positional,required" help:"concert id"`
	Rating  int    `arg:"-r,--rating,required" help:"1 to 5"`
	Comment string `arg:"-m,--comment" help:"review text, at most 500 characters"`
}

// SearchCmd runs an AI search.
type SearchCmd struct {
	Query []string `arg:"positional,required" help:"free-text query"`
	Limit int      `arg:"-n,--limit" help:"maximum results (default from config)"`
}

// RefreshCmd reloads everything from the backend.
type RefreshCmd struct{}

// CrawlCmd triggers a server-side crawl.
type CrawlCmd struct{}

// StatusCmd prints health and cache state.
type StatusCmd struct{}

// ConfigCmd shows or edits configuration.
type ConfigCmd struct {
	Show *ConfigShowCmd `arg:"subcommand:show" help:"print the resolved configuration"`
	Set  *ConfigSetCmd  `arg:"subcommand:set" help:"set one key in the config file"`
}

// ConfigShowCmd prints the configuration.
type ConfigShowCmd struct{}

// ConfigSetCmd sets one key.
type ConfigSetCmd struct {
	Key   string `arg:"positional,required" help:"JSON key, e.g. apiBaseUrl or locale"`
	Value string `arg:"positional,required"`
}

// Description implements go-arg's Described interface.
func (Args) Description() string {
	return "gigs - browse concerts, follow shows, set on-sale reminders and post reviews"
}

// ParseArgs parses os.Args, printing usage and exiting on error.
func ParseArgs() (*Args, *arg.Parser) {
	var args Args
	p := arg.MustParse(&args)
	return &args, p
}
