package domain

import "strings"

// Category labels an application by the kind of work it represents. Categories
// are derived on read from the application name and never persisted, so two
// passes over the same records always agree.
type Category string

const (
	CategoryFocus    Category = "focus"
	CategoryMeetings Category = "meetings"
	CategoryBreaks   Category = "breaks"
	CategoryOther    Category = "other"
)

// Categories lists every bucket in match-priority order. Reports emit one row
// per entry even when a bucket is empty.
var Categories = []Category{CategoryFocus, CategoryMeetings, CategoryBreaks, CategoryOther}

// Keyword tables are matched as case-insensitive substrings against the
// application name. Order matters: focus wins over meetings wins over breaks,
// so "Teams" stays a meeting app even though browsers carry it in a tab title.
var (
	focusKeywords = []string{
		"visual studio code", "visual studio", "vscode", "intellij", "pycharm",
		"webstorm", "goland", "android studio", "xcode", "sublime", "vim",
		"neovim", "emacs", "eclipse", "notepad++", "terminal", "iterm",
		"powershell", "word", "excel", "powerpoint", "onenote", "libreoffice",
		"figma", "sketch", "photoshop", "illustrator", "blender", "postman",
		"datagrip", "dbeaver", "jupyter", "rstudio", "matlab", "tableau",
		"obsidian", "notion",
	}

	meetingKeywords = []string{
		"teams", "zoom", "meet", "webex", "skype", "slack", "discord",
		"gotomeeting", "bluejeans", "outlook", "thunderbird", "mail",
		"telegram", "whatsapp",
	}

	breakKeywords = []string{
		"chrome", "firefox", "safari", "edge", "opera", "brave", "youtube",
		"netflix", "spotify", "vlc", "twitch", "steam", "epic games",
		"minecraft", "facebook", "instagram", "twitter", "reddit", "tiktok",
		"pinterest", "music", "photos", "game",
	}
)

// Categorize maps an application name to its work category. Unknown or custom
// applications fall through to CategoryOther.
func Categorize(application string) Category {
	name := strings.ToLower(strings.TrimSpace(application))
	if name == "" {
		return CategoryOther
	}

	for _, keyword := range focusKeywords {
		if strings.Contains(name, keyword) {
			return CategoryFocus
		}
	}
	for _, keyword := range meetingKeywords {
		if strings.Contains(name, keyword) {
			return CategoryMeetings
		}
	}
	for _, keyword := range breakKeywords {
		if strings.Contains(name, keyword) {
			return CategoryBreaks
		}
	}
	return CategoryOther
}
