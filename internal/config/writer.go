package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/treykane/ssh-conn/internal/model"
)

// FormatProfileBlock produces a Host block for the given input. extra holds
// directive lines (already indented) carried over from a previous version of
// the block.
func FormatProfileBlock(in model.ProfileInput, extra []string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Host %s\n", in.ID))
	if in.Address != "" {
		b.WriteString(fmt.Sprintf("  HostName %s\n", in.Address))
	}
	if in.User != "" {
		b.WriteString(fmt.Sprintf("  User %s\n", in.User))
	}
	if in.Port != 0 {
		b.WriteString(fmt.Sprintf("  Port %d\n", in.Port))
	}
	if in.ProxyCommand != "" {
		b.WriteString(fmt.Sprintf("  ProxyCommand %s\n", in.ProxyCommand))
	}
	if in.IdentityFile != "" {
		b.WriteString(fmt.Sprintf("  IdentityFile %s\n", in.IdentityFile))
	}
	for _, line := range extra {
		b.WriteString(line + "\n")
	}
	return b.String()
}

// blockSpan is the half-open line range [start, end) of one Host block.
type blockSpan struct {
	start    int
	end      int
	patterns []string
}

// findHostBlock locates the Host block declaring id. Trailing blank lines are
// left outside the span so the spacing between blocks survives edits.
func findHostBlock(lines []string, id string) (blockSpan, bool) {
	for i, raw := range lines {
		key, value, ok := splitDirective(stripInlineComment(strings.TrimSpace(raw)))
		if !ok || !strings.EqualFold(key, "host") {
			continue
		}
		patterns := strings.Fields(value)
		found := false
		for _, p := range patterns {
			if p == id {
				found = true
				break
			}
		}
		if !found {
			continue
		}
		end := len(lines)
		for j := i + 1; j < len(lines); j++ {
			k, _, ok := splitDirective(stripInlineComment(strings.TrimSpace(lines[j])))
			if ok && (strings.EqualFold(k, "host") || strings.EqualFold(k, "match")) {
				end = j
				break
			}
		}
		for end > i+1 && strings.TrimSpace(lines[end-1]) == "" {
			end--
		}
		return blockSpan{start: i, end: end, patterns: patterns}, true
	}
	return blockSpan{}, false
}

// unmanagedLines returns the directive lines of a block that FormatProfileBlock
// does not produce itself, so an edit keeps them.
func unmanagedLines(lines []string, span blockSpan) []string {
	var out []string
	for _, raw := range lines[span.start+1 : span.end] {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			out = append(out, "  "+trimmed)
			continue
		}
		key, _, ok := splitDirective(stripInlineComment(trimmed))
		if !ok {
			continue
		}
		switch strings.ToLower(key) {
		case "hostname", "user", "port", "proxycommand", "identityfile":
			continue
		}
		out = append(out, "  "+trimmed)
	}
	return out
}

func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// appendBlock appends block to content separated by one blank line.
func appendBlock(content, block string) string {
	if strings.TrimSpace(content) == "" {
		return block
	}
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	if !strings.HasSuffix(content, "\n\n") {
		content += "\n"
	}
	return content + block
}

// replaceBlock swaps the lines of span for block. An empty block removes the span
// along with one blank separator line.
func replaceBlock(lines []string, span blockSpan, block string) []string {
	out := append([]string(nil), lines[:span.start]...)
	if block != "" {
		out = append(out, splitLines(block)...)
		out = append(out, lines[span.end:]...)
		return out
	}
	rest := lines[span.end:]
	if len(rest) > 0 && strings.TrimSpace(rest[0]) == "" {
		rest = rest[1:]
	} else if len(out) > 0 && strings.TrimSpace(out[len(out)-1]) == "" {
		out = out[:len(out)-1]
	}
	return append(out, rest...)
}

// writeFileAtomic replaces path with data through a temp file in the same
// directory and a rename.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
