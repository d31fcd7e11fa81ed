package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/treykane/ssh-conn/internal/model"
	"github.com/treykane/ssh-conn/internal/util"
)

type ParseResult struct {
	Profiles []model.Profile
	Warnings []string
	// Duplicates lists ids declared by more than one Host block.
	Duplicates []string
}

type rawBlock struct {
	patterns []string
	values   map[string][]string
	source   string
}

// DefaultPath returns ~/.ssh/config.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".ssh", "config"), nil
}

// ParseFile parses a single root SSH config and expands Include directives.
func ParseFile(path string) (ParseResult, error) {
	seen := map[string]bool{}
	blocks, warnings, err := parseRecursive(path, seen, 0)
	if err != nil {
		return ParseResult{}, err
	}
	profiles, dups := compileProfiles(blocks)
	return ParseResult{Profiles: profiles, Warnings: warnings, Duplicates: dups}, nil
}

func parseRecursive(path string, seen map[string]bool, depth int) ([]rawBlock, []string, error) {
	if depth > util.MaxIncludeDepth {
		return nil, nil, fmt.Errorf("include depth exceeded at %s", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, nil, err
	}
	if seen[abs] {
		return nil, []string{fmt.Sprintf("include cycle skipped: %s", abs)}, nil
	}
	seen[abs] = true

	f, err := os.Open(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if depth == 0 {
				return nil, nil, nil
			}
			return nil, []string{fmt.Sprintf("config file not found: %s", abs)}, nil
		}
		return nil, nil, fmt.Errorf("open %s: %w", abs, err)
	}
	defer f.Close()

	var (
		blocks      []rawBlock
		warnings    []string
		current     = rawBlock{patterns: []string{"*"}, values: map[string][]string{}, source: abs}
		hasHostDecl bool
	)

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = stripInlineComment(line)
		if line == "" {
			continue
		}

		key, value, ok := splitDirective(line)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("%s:%d invalid directive", abs, lineNo))
			continue
		}
		lowerKey := strings.ToLower(key)

		switch lowerKey {
		case "include":
			for _, pattern := range strings.Fields(value) {
				incPattern := expandHome(pattern)
				if !filepath.IsAbs(incPattern) {
					incPattern = filepath.Join(filepath.Dir(abs), incPattern)
				}
				matches, globErr := filepath.Glob(incPattern)
				if globErr != nil {
					warnings = append(warnings, fmt.Sprintf("%s:%d bad include pattern %q", abs, lineNo, pattern))
					continue
				}
				if len(matches) == 0 {
					warnings = append(warnings, fmt.Sprintf("%s:%d include matched nothing: %q", abs, lineNo, pattern))
				}
				sort.Strings(matches)
				for _, m := range matches {
					childBlocks, childWarnings, childErr := parseRecursive(m, seen, depth+1)
					warnings = append(warnings, childWarnings...)
					if childErr != nil {
						warnings = append(warnings, fmt.Sprintf("include %s failed: %v", m, childErr))
						continue
					}
					blocks = append(blocks, childBlocks...)
				}
			}
		case "host":
			if hasHostDecl || len(current.values) > 0 {
				blocks = append(blocks, current)
			}
			patterns := strings.Fields(value)
			if len(patterns) == 0 {
				warnings = append(warnings, fmt.Sprintf("%s:%d Host missing patterns", abs, lineNo))
				patterns = []string{"*"}
			}
			current = rawBlock{patterns: patterns, values: map[string][]string{}, source: abs}
			hasHostDecl = true
		case "match":
			// Match criteria are evaluated by ssh at connect time; the block is
			// kept out of profile compilation.
			if hasHostDecl || len(current.values) > 0 {
				blocks = append(blocks, current)
			}
			current = rawBlock{values: map[string][]string{}, source: abs}
			hasHostDecl = true
		default:
			current.values[lowerKey] = append(current.values[lowerKey], value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, warnings, fmt.Errorf("scan %s: %w", abs, err)
	}

	if hasHostDecl || len(current.values) > 0 {
		blocks = append(blocks, current)
	}
	return blocks, warnings, nil
}

// managedKeys are the directives that map onto Profile fields; everything else
// lands in Profile.Options.
var managedKeys = map[string]bool{
	"hostname":       true,
	"user":           true,
	"port":           true,
	"proxycommand":   true,
	"proxyjump":      true,
	"identityfile":   true,
	"connecttimeout": true,
}

func compileProfiles(blocks []rawBlock) ([]model.Profile, []string) {
	aliasSet := map[string]string{}
	declared := map[string]int{}
	for _, b := range blocks {
		for _, p := range b.patterns {
			if isConcreteAlias(p) {
				declared[p]++
				if _, ok := aliasSet[p]; !ok {
					aliasSet[p] = b.source
				}
			}
		}
	}
	var dups []string
	for alias, n := range declared {
		if n > 1 {
			dups = append(dups, alias)
		}
	}
	sort.Strings(dups)

	aliases := make([]string, 0, len(aliasSet))
	for a := range aliasSet {
		aliases = append(aliases, a)
	}
	sort.Strings(aliases)

	profiles := make([]model.Profile, 0, len(aliases))
	for _, alias := range aliases {
		p := model.Profile{ID: alias, Source: aliasSet[alias]}
		// OpenSSH uses the first obtained value of each directive, so blocks
		// are applied in file order and later values never override.
		set := map[string]bool{}
		for _, b := range blocks {
			if !matchesAny(alias, b.patterns) {
				continue
			}
			for key, vals := range b.values {
				if len(vals) == 0 || set[key] {
					continue
				}
				set[key] = true
				applyDirective(&p, key, vals[0])
			}
		}
		profiles = append(profiles, p)
	}
	return profiles, dups
}

func applyDirective(p *model.Profile, key, value string) {
	switch key {
	case "hostname":
		p.Address = value
	case "user":
		p.User = value
	case "port":
		if n, err := strconv.Atoi(value); err == nil {
			p.Port = n
		}
	case "proxycommand":
		p.ProxyCommand = value
	case "proxyjump":
		p.ProxyJump = value
	case "identityfile":
		p.IdentityFile = value
	case "connecttimeout":
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			p.ConnectTimeout = n
		}
	default:
		if p.Options == nil {
			p.Options = map[string]string{}
		}
		p.Options[key] = value
	}
}

func matchesAny(alias string, patterns []string) bool {
	matched := false
	for _, p := range patterns {
		negated := strings.HasPrefix(p, "!")
		pat := strings.TrimPrefix(p, "!")
		ok := globMatch(alias, pat)
		if !ok {
			continue
		}
		if negated {
			return false
		}
		matched = true
	}
	return matched
}

func globMatch(alias, pattern string) bool {
	if pattern == "" {
		return false
	}
	ok, err := filepath.Match(pattern, alias)
	if err != nil {
		return false
	}
	return ok
}

func isConcreteAlias(pattern string) bool {
	if strings.HasPrefix(pattern, "!") {
		return false
	}
	if strings.ContainsAny(pattern, "*?") {
		return false
	}
	return pattern != ""
}

func splitDirective(line string) (key, value string, ok bool) {
	if i := strings.IndexAny(line, " \t="); i > 0 {
		key = strings.TrimSpace(line[:i])
		value = strings.TrimSpace(line[i+1:])
		value = strings.TrimSpace(strings.TrimPrefix(value, "="))
		return key, value, key != "" && value != ""
	}
	return "", "", false
}

func stripInlineComment(line string) string {
	inQuote := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			inQuote = !inQuote
		case '#':
			if !inQuote {
				return strings.TrimSpace(line[:i])
			}
		}
	}
	return strings.TrimSpace(line)
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
