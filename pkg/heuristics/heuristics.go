// Package heuristics holds the static language table that drives module
// discovery and file classification: which filenames mark a module root
// (manifests) and which suffixes mark a source file (extensions).
//
// The table is immutable data. Components receive a compiled *Profile for the
// one language selected for a run rather than reaching into package state.
package heuristics

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Language identifies a supported source language.
type Language string

const (
	LanguagePython     Language = "Python"
	LanguageJavaScript Language = "JavaScript/TypeScript"
	LanguageJava       Language = "Java"
	LanguageCSharp     Language = "C#"
	LanguageGo         Language = "GO"
	LanguageCpp        Language = "C/C++"
)

// String returns the display name of the language.
func (l Language) String() string {
	return string(l)
}

// ErrUnsupportedLanguage is returned when a selector string names no known language.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Heuristics is the manifest/extension pair for one language.
//
// Manifests are compared case-insensitively against a file's basename. An
// entry containing glob metacharacters (e.g. "*.csproj") is matched with
// doublestar semantics instead of equality.
type Heuristics struct {
	Manifests  []string
	Extensions []string
}

// languageOrder is the display order used by prompts and listings.
var languageOrder = []Language{
	LanguagePython,
	LanguageJavaScript,
	LanguageJava,
	LanguageCSharp,
	LanguageGo,
	LanguageCpp,
}

var table = map[Language]Heuristics{
	LanguagePython: {
		Manifests:  []string{"requirements.txt", "pyproject.toml", "setup.py", "Pipfile", "tox.ini"},
		Extensions: []string{".py", ".pyi"},
	},
	LanguageJavaScript: {
		Manifests: []string{
			"package.json",
			"deno.json",
			"yarn.lock",
			"pnpm-lock.yaml",
			"next.config.js",
			"vite.config.js",
			"tsconfig.json",
		},
		Extensions: []string{".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs", ".vue", ".svelte"},
	},
	LanguageJava: {
		Manifests: []string{
			"pom.xml",          // Maven
			"build.gradle",     // Gradle (Groovy)
			"build.gradle.kts", // Gradle (Kotlin)
			"settings.gradle",
			"mvnw",
			"gradlew",
		},
		Extensions: []string{".java", ".kt", ".scala", ".groovy"},
	},
	LanguageCSharp: {
		Manifests:  []string{"*.csproj", "*.sln", "*.fsproj", "*.vbproj", "global.json", "NuGet.config"},
		Extensions: []string{".cs", ".fs", ".vb", ".cshtml", ".razor"},
	},
	LanguageGo: {
		Manifests:  []string{"go.mod", "go.sum", "go.work", "main.go"},
		Extensions: []string{".go"},
	},
	LanguageCpp: {
		Manifests: []string{
			"CMakeLists.txt",
			"Makefile",
			"makefile",
			"configure.ac",
			"meson.build",
			"conanfile.txt",
			"vcpkg.json",
			".gitmodules",
		},
		Extensions: []string{".c", ".cpp", ".h", ".hpp", ".cc", ".hh", ".cxx", ".hxx", ".m", ".mm"},
	},
}

// UniversalContextFiles are high-signal files worth reading regardless of
// language. Their order is the first half of the emission priority list.
var UniversalContextFiles = []string{
	"Dockerfile",
	"docker-compose.yml",
	"docker-compose.yaml",
	"compose.yaml",
	"compose.yml",
	"Makefile",
	"Procfile",
	".env.example",
	"openapi.yaml",
	"openapi.yml",
	"openapi.json",
	"swagger.json",
	".gitlab-ci.yml",
	"Jenkinsfile",
	".tool-versions",
	".nvmrc",
	".python-version",
}

// DefaultSymbolKinds is the extractor kind allow-list. Kinds follow Universal
// Ctags naming across the supported languages.
var DefaultSymbolKinds = []string{
	"class",
	"function",
	"func",
	"method",
	"member",
	"interface",
	"struct",
	"enum",
	"type",
	"typedef",
	"trait",
	"module",
	"namespace",
	"package",
	"macro",
	"prototype",
	"generator",
}

// IgnoreDirs are directory names never descended into by in-process walkers.
var IgnoreDirs = []string{
	// Version control
	".git", ".svn", ".hg", ".bzr", ".fossil",
	// Python
	".venv", "venv", "env", ".env", "ENV", "__pycache__", ".pytest_cache", ".mypy_cache",
	".tox", ".coverage", ".hypothesis", ".ruff_cache", "htmlcov",
	// JavaScript
	"node_modules", ".npm", ".yarn", ".yarn-cache", ".pnpm-store", ".next", ".nuxt", ".astro",
	// Editors
	".idea", ".vscode", ".vs", ".eclipse", ".settings", ".metadata", ".vim", ".emacs.d",
	// Build output
	"build", "dist", "target", "out", "bin", "obj", ".gradle", ".mvn",
	"cmake-build-debug", "cmake-build-release", "cmake-build", ".deps", ".libs", "Debug", "Release",
	// Dependencies
	"vendor", ".bundle", "bower_components", ".cargo",
	// Caches
	".cache", ".tmp", ".temp", ".logs", "tmp", "temp",
	// Docs builds
	"_build", ".doctrees", "site",
	// Infrastructure
	".terraform", ".vagrant", ".docker", ".k8s",
}

// Languages returns every supported language in display order.
func Languages() []Language {
	out := make([]Language, len(languageOrder))
	copy(out, languageOrder)
	return out
}

// Lookup returns the heuristics for lang.
func Lookup(lang Language) (Heuristics, bool) {
	h, ok := table[lang]
	return h, ok
}

var languageAliases = map[string]Language{
	"py":         LanguagePython,
	"js":         LanguageJavaScript,
	"ts":         LanguageJavaScript,
	"javascript": LanguageJavaScript,
	"typescript": LanguageJavaScript,
	"cs":         LanguageCSharp,
	"csharp":     LanguageCSharp,
	"golang":     LanguageGo,
	"c":          LanguageCpp,
	"cpp":        LanguageCpp,
	"c++":        LanguageCpp,
}

// ParseLanguage resolves a selector string case-insensitively, accepting both
// display names ("JavaScript/TypeScript") and short aliases ("ts").
func ParseLanguage(s string) (Language, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return "", fmt.Errorf("%w: empty selector", ErrUnsupportedLanguage)
	}
	for _, lang := range languageOrder {
		if strings.ToLower(string(lang)) == key {
			return lang, nil
		}
	}
	if lang, ok := languageAliases[key]; ok {
		return lang, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, s)
}

// MatchName reports whether basename matches a manifest or context entry.
// Comparison is case-insensitive; entries with glob metacharacters use
// doublestar matching.
func MatchName(entry, basename string) bool {
	entry = strings.ToLower(entry)
	basename = strings.ToLower(basename)
	if !hasMeta(entry) {
		return entry == basename
	}
	ok, err := doublestar.Match(entry, basename)
	return err == nil && ok
}

func hasMeta(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}

// Profile is the compiled view of the table for one selected language.
type Profile struct {
	Language Language

	extensions    map[string]struct{}
	manifestNames map[string]struct{}
	manifestGlobs []string
	contextNames  map[string]struct{}
	contextGlobs  []string
	candidates    []string
}

// NewProfile compiles the lookup sets for lang.
func NewProfile(lang Language) (*Profile, error) {
	h, ok := table[lang]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}

	p := &Profile{
		Language:      lang,
		extensions:    make(map[string]struct{}, len(h.Extensions)),
		manifestNames: make(map[string]struct{}, len(h.Manifests)),
		contextNames:  make(map[string]struct{}, len(h.Manifests)+len(UniversalContextFiles)),
	}
	for _, ext := range h.Extensions {
		p.extensions[strings.ToLower(ext)] = struct{}{}
	}
	for _, m := range h.Manifests {
		low := strings.ToLower(m)
		if hasMeta(low) {
			p.manifestGlobs = append(p.manifestGlobs, low)
			p.contextGlobs = append(p.contextGlobs, low)
			continue
		}
		p.manifestNames[low] = struct{}{}
		p.contextNames[low] = struct{}{}
	}
	for _, name := range UniversalContextFiles {
		p.contextNames[strings.ToLower(name)] = struct{}{}
	}

	seen := make(map[string]struct{}, len(UniversalContextFiles)+len(h.Manifests))
	for _, name := range append(append([]string{}, UniversalContextFiles...), h.Manifests...) {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		p.candidates = append(p.candidates, name)
	}

	return p, nil
}

// IsSourceFile reports whether the extension of name is one of the
// language's source extensions.
func (p *Profile) IsSourceFile(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return false
	}
	_, ok := p.extensions[ext]
	return ok
}

// IsManifest reports whether basename is a manifest of the language.
func (p *Profile) IsManifest(basename string) bool {
	low := strings.ToLower(basename)
	if _, ok := p.manifestNames[low]; ok {
		return true
	}
	return matchAny(p.manifestGlobs, low)
}

// IsContextName reports whether basename is a universal context file or a
// manifest of the language.
func (p *Profile) IsContextName(basename string) bool {
	low := strings.ToLower(basename)
	if _, ok := p.contextNames[low]; ok {
		return true
	}
	return matchAny(p.contextGlobs, low)
}

// PriorityCandidates returns universal context files followed by the
// language's manifests, duplicates removed keeping the first occurrence.
func (p *Profile) PriorityCandidates() []string {
	out := make([]string, len(p.candidates))
	copy(out, p.candidates)
	return out
}

func matchAny(globs []string, name string) bool {
	for _, g := range globs {
		if ok, err := doublestar.Match(g, name); err == nil && ok {
			return true
		}
	}
	return false
}
