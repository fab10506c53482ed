package config

import (
	"fmt"
)

// Asset categories of the path table.
const (
	CategoryFonts   = "fonts"
	CategoryImages  = "images"
	CategoryStyles  = "styles"
	CategoryScripts = "scripts"
	CategoryHTML    = "html"
)

// Entry maps one asset category to its source glob and destination directory.
type Entry struct {
	// Dev is the source glob, relative to the project root.
	Dev string `mapstructure:"dev" yaml:"dev" json:"dev"`

	// Dist is the destination directory, relative to the project root.
	Dist string `mapstructure:"dist" yaml:"dist" json:"dist"`
}

// ScriptEntry extends Entry with the bundle entry point.
type ScriptEntry struct {
	Entry `mapstructure:",squash" yaml:",inline"`

	// Main is the bundler entry point.
	Main string `mapstructure:"main" yaml:"main" json:"main"`
}

// StyleEntry extends Entry with the main compiled stylesheet.
type StyleEntry struct {
	Entry `mapstructure:",squash" yaml:",inline"`

	// Main is the path of the primary compiled stylesheet.
	Main string `mapstructure:"main" yaml:"main" json:"main"`
}

// PageEntry extends Entry with the glob that triggers page rebuilds.
type PageEntry struct {
	Entry `mapstructure:",squash" yaml:",inline"`

	// Watch matches every file a page may include.
	Watch string `mapstructure:"watch" yaml:"watch" json:"watch"`
}

// Paths is the static path table read by every build operation.
type Paths struct {
	Src  string `mapstructure:"src" yaml:"src" json:"src"`
	Dist string `mapstructure:"dist" yaml:"dist" json:"dist"`

	Scripts ScriptEntry `mapstructure:"scripts" yaml:"scripts" json:"scripts"`
	Styles  StyleEntry  `mapstructure:"styles" yaml:"styles" json:"styles"`
	Fonts   Entry       `mapstructure:"fonts" yaml:"fonts" json:"fonts"`
	Images  Entry       `mapstructure:"images" yaml:"images" json:"images"`
	HTML    PageEntry   `mapstructure:"html" yaml:"html" json:"html"`
}

// DefaultPaths returns the conventional src/ → dist/ layout.
func DefaultPaths() Paths {
	return Paths{
		Src:  "src",
		Dist: "dist",
		Scripts: ScriptEntry{
			Entry: Entry{Dev: "src/js/*.js", Dist: "dist/js/"},
			Main:  "src/js/main.js",
		},
		Styles: StyleEntry{
			Entry: Entry{Dev: "src/scss/*.{scss,sass}", Dist: "dist/css/"},
			Main:  "dist/css/main.min.css",
		},
		Fonts: Entry{Dev: "src/font/*.{eot,otf,svg,woff,ttf}", Dist: "dist/font/"},
		Images: Entry{
			Dev:  "src/images/*",
			Dist: "dist/images/",
		},
		HTML: PageEntry{
			Entry: Entry{Dev: "src/pages/**/*.html", Dist: "dist/"},
			Watch: "src/**/*.{html,njk}",
		},
	}
}

// Lookup returns the entry for a category.
func (p Paths) Lookup(category string) (Entry, bool) {
	switch category {
	case CategoryFonts:
		return p.Fonts, true
	case CategoryImages:
		return p.Images, true
	case CategoryStyles:
		return p.Styles.Entry, true
	case CategoryScripts:
		return p.Scripts.Entry, true
	case CategoryHTML:
		return p.HTML.Entry, true
	default:
		return Entry{}, false
	}
}

// Categories returns the category names in table order.
func Categories() []string {
	return []string{CategoryFonts, CategoryImages, CategoryStyles, CategoryScripts, CategoryHTML}
}

// Validate checks that no entry of the table is empty.
func (p Paths) Validate() error {
	if p.Src == "" {
		return fmt.Errorf("paths.src must not be empty")
	}

	if p.Dist == "" {
		return fmt.Errorf("paths.dist must not be empty")
	}

	for _, c := range Categories() {
		e, _ := p.Lookup(c)
		if e.Dev == "" {
			return fmt.Errorf("paths.%s.dev must not be empty", c)
		}

		if e.Dist == "" {
			return fmt.Errorf("paths.%s.dist must not be empty", c)
		}
	}

	if p.Scripts.Main == "" {
		return fmt.Errorf("paths.scripts.main must not be empty")
	}

	return nil
}
